package http

import (
	"context"
	"net/http"

	"github.com/quizd/quizd/internal/catalog"
)

type CatalogStore interface {
	CreateTopic(ctx context.Context, in catalog.TopicInput) (catalog.Topic, error)
	ListTopics(ctx context.Context, skip, limit int) ([]catalog.Topic, error)
	GetTopic(ctx context.Context, id int64) (catalog.TopicDetail, error)
	UpdateTopic(ctx context.Context, id int64, in catalog.TopicUpdate) (catalog.Topic, error)
	DeleteTopic(ctx context.Context, id int64) error

	CreateQuestion(ctx context.Context, in catalog.QuestionInput) (catalog.Question, error)
	ListQuestions(ctx context.Context, f catalog.QuestionFilter) ([]catalog.Question, error)
	GetQuestion(ctx context.Context, id int64) (catalog.QuestionDetail, error)
	UpdateQuestion(ctx context.Context, id int64, in catalog.QuestionUpdate) (catalog.Question, error)
	DeleteQuestion(ctx context.Context, id int64) error
	CreateOption(ctx context.Context, questionID int64, in catalog.OptionInput) (catalog.Option, error)
}

// ---- topics ----

func CreateTopicHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalog.TopicInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		t, err := store.CreateTopic(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, t)
	}
}

func ListTopicsHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, limit := page(r)
		list, err := store.ListTopics(r.Context(), skip, limit)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func GetTopicHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "topicID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		t, err := store.GetTopic(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, t)
	}
}

func UpdateTopicHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "topicID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req catalog.TopicUpdate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		t, err := store.UpdateTopic(r.Context(), id, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, t)
	}
}

func DeleteTopicHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "topicID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.DeleteTopic(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// ---- questions ----

func CreateQuestionHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req catalog.QuestionInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		q, err := store.CreateQuestion(r.Context(), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, q)
	}
}

// GET /questions?topic_id=&difficulty=&skip=&limit=
func ListQuestionsHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, limit := page(r)
		list, err := store.ListQuestions(r.Context(), catalog.QuestionFilter{
			TopicID:    queryInt64(r, "topic_id"),
			Difficulty: parseIntDefault(r.URL.Query().Get("difficulty"), 0),
			Skip:       skip,
			Limit:      limit,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func GetQuestionHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		q, err := store.GetQuestion(r.Context(), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

func UpdateQuestionHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req catalog.QuestionUpdate
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		q, err := store.UpdateQuestion(r.Context(), id, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, q)
	}
}

func DeleteQuestionHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := store.DeleteQuestion(r.Context(), id); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func CreateOptionHandler(store CatalogStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "questionID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req catalog.OptionInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		o, err := store.CreateOption(r.Context(), id, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, o)
	}
}
