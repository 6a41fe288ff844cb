package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/attempt"
	authmw "github.com/quizd/quizd/internal/auth/middleware"
)

type TestService interface {
	Start(ctx context.Context, userID int64, in attempt.StartInput) (attempt.Test, error)
	SubmitResponse(ctx context.Context, userID, testID int64, in attempt.ResponseInput) (attempt.Response, error)
	Complete(ctx context.Context, userID, testID int64) (attempt.Detail, error)
	Get(ctx context.Context, userID, testID int64) (attempt.Detail, error)
	List(ctx context.Context, userID int64, f attempt.ListFilter) ([]attempt.Test, error)
}

func callerID(r *http.Request) int64 {
	id, _ := authmw.IdentityFromContext(r.Context())
	return id.UserID
}

func StartTestHandler(svc TestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req attempt.StartInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		t, err := svc.Start(r.Context(), callerID(r), req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, t)
	}
}

func SubmitResponseHandler(svc TestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "testID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		var req attempt.ResponseInput
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
		resp, err := svc.SubmitResponse(r.Context(), callerID(r), id, req)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusCreated, resp)
	}
}

func CompleteTestHandler(svc TestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "testID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		d, err := svc.Complete(r.Context(), callerID(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}

func GetTestHandler(svc TestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r, "testID")
		if err != nil {
			writeError(w, r, err)
			return
		}
		d, err := svc.Get(r.Context(), callerID(r), id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, d)
	}
}

// GET /tests?topic_id=&completed=true|false&skip=&limit=
// Always scoped to the caller.
func ListTestsHandler(svc TestService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skip, limit := page(r)
		f := attempt.ListFilter{TopicID: queryInt64(r, "topic_id"), Skip: skip, Limit: limit}
		if v := r.URL.Query().Get("completed"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				writeError(w, r, apperr.Validation("completed must be a boolean"))
				return
			}
			f.Completed = &b
		}
		list, err := svc.List(r.Context(), callerID(r), f)
		if err != nil {
			writeError(w, r, err)
			return
		}
		respondJSON(w, http.StatusOK, list)
	}
}
