package http

import (
	"context"
	"net/http"

	"github.com/quizd/quizd/internal/analytics"
)

type AnalyticsStore interface {
	UserPerformance(ctx context.Context, userID int64, period string) (analytics.UserPerformance, error)
	TopicPerformance(ctx context.Context, userID int64) ([]analytics.TopicPerformance, error)
	QuestionDifficulty(ctx context.Context, userID, topicID int64) ([]analytics.QuestionDifficulty, error)
}

func UserPerformanceHandler(store AnalyticsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.UserPerformance(r.Context(), callerID(r), r.URL.Query().Get("period"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, p)
	}
}

func TopicPerformanceHandler(store AnalyticsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.TopicPerformance(r.Context(), callerID(r))
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}

func QuestionDifficultyHandler(store AnalyticsStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.QuestionDifficulty(r.Context(), callerID(r), queryInt64(r, "topic_id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
