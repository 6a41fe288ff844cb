// Package attempt runs the test-taking flow: start, answer one question at
// a time, complete and score.
package attempt

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/catalog"
	"github.com/quizd/quizd/internal/db"
	"github.com/quizd/quizd/internal/eventlog"
	"github.com/quizd/quizd/internal/grading"
)

var (
	errTestNotFound  = apperr.NotFound("Test not found")
	errNotOwner      = apperr.Forbidden("Not authorized to access this test")
	errTestCompleted = apperr.Conflict("Test is already completed")
)

type Service struct {
	db  *sql.DB
	now func() time.Time
	// grader builds a Grader that reads options through the given queryer,
	// normally the transaction the response is written in.
	grader func(db.Queryer) grading.Grader
}

func NewService(dbh *sql.DB) *Service {
	return &Service{
		db:  dbh,
		now: time.Now,
		grader: func(q db.Queryer) grading.Grader {
			return grading.NewDefaultGrader(catalog.Options{Q: q})
		},
	}
}

const testCols = `id, user_id, topic_id, started_at, completed_at, score`

func scanTest(row interface{ Scan(...any) error }) (Test, error) {
	var t Test
	var started int64
	var completed sql.NullInt64
	var score sql.NullFloat64
	if err := row.Scan(&t.ID, &t.UserID, &t.TopicID, &started, &completed, &score); err != nil {
		return Test{}, err
	}
	t.StartedAt = db.FromMillis(started)
	if completed.Valid {
		at := db.FromMillis(completed.Int64)
		t.CompletedAt = &at
	}
	if score.Valid {
		t.Score = &score.Float64
	}
	return t, nil
}

// ownedTest loads a test and checks that userID owns it.
func ownedTest(ctx context.Context, q db.Queryer, id, userID int64) (Test, error) {
	t, err := scanTest(q.QueryRowContext(ctx, `SELECT `+testCols+` FROM tests WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Test{}, errTestNotFound
	}
	if err != nil {
		return Test{}, err
	}
	if t.UserID != userID {
		return Test{}, errNotOwner
	}
	return t, nil
}

// Start opens a new test on a topic for userID.
func (s *Service) Start(ctx context.Context, userID int64, in StartInput) (Test, error) {
	var t Test
	now := s.now()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := catalog.TopicExists(ctx, tx, in.TopicID); err != nil {
			return err
		}
		var err error
		t, err = scanTest(tx.QueryRowContext(ctx,
			`INSERT INTO tests (user_id, topic_id, started_at) VALUES ($1,$2,$3) RETURNING `+testCols,
			userID, in.TopicID, db.Millis(now)))
		if err != nil {
			return err
		}
		return eventlog.Append(ctx, tx, eventlog.TestStarted, eventlog.TestKey(t.ID),
			map[string]int64{"user_id": userID, "topic_id": in.TopicID}, now)
	})
	return t, err
}

// SubmitResponse grades and records one answer. The test must belong to
// userID and still be open.
func (s *Service) SubmitResponse(ctx context.Context, userID, testID int64, in ResponseInput) (Response, error) {
	var r Response
	now := s.now()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := ownedTest(ctx, tx, testID, userID)
		if err != nil {
			return err
		}
		if t.Completed() {
			return errTestCompleted
		}
		q, err := catalog.GetQuestion(ctx, tx, in.QuestionID)
		if err != nil {
			return err
		}
		optionID := in.OptionID
		if q.QuestionType == grading.TypeOpenEnded {
			optionID = nil
		}
		correct, err := s.grader(tx).Grade(ctx,
			grading.Q{ID: q.ID, Type: q.QuestionType, CorrectAnswer: q.CorrectAnswer},
			grading.Submission{OptionID: optionID, Text: in.ResponseText})
		if err != nil {
			return err
		}
		r, err = scanResponse(tx.QueryRowContext(ctx,
			`INSERT INTO user_responses (test_id, question_id, option_id, response_text, is_correct, submitted_at)
			 VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+responseCols,
			testID, q.ID, optionID, in.ResponseText, correct, db.Millis(now)))
		return err
	})
	return r, err
}

// Complete scores the test and closes it. The closing update only matches
// an open test, so two concurrent completions cannot both succeed.
func (s *Service) Complete(ctx context.Context, userID, testID int64) (Detail, error) {
	now := s.now()
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := ownedTest(ctx, tx, testID, userID)
		if err != nil {
			return err
		}
		if t.Completed() {
			return errTestCompleted
		}
		results, err := correctness(ctx, tx, testID)
		if err != nil {
			return err
		}
		score, err := grading.Score(results)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE tests SET completed_at=$1, score=$2 WHERE id=$3 AND completed_at IS NULL`,
			db.Millis(now), score, testID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errTestCompleted
		}
		return eventlog.Append(ctx, tx, eventlog.TestCompleted, eventlog.TestKey(testID),
			map[string]any{"user_id": userID, "score": score, "responses": len(results)}, now)
	})
	if err != nil {
		return Detail{}, err
	}
	return s.Get(ctx, userID, testID)
}

func correctness(ctx context.Context, q db.Queryer, testID int64) ([]bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT is_correct FROM user_responses WHERE test_id=$1`, testID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []bool
	for rows.Next() {
		var ok bool
		if err := rows.Scan(&ok); err != nil {
			return nil, err
		}
		out = append(out, ok)
	}
	return out, rows.Err()
}

// Get returns the test with its topic name and responses in submit order.
func (s *Service) Get(ctx context.Context, userID, testID int64) (Detail, error) {
	t, err := ownedTest(ctx, s.db, testID, userID)
	if err != nil {
		return Detail{}, err
	}
	d := Detail{Test: t, Responses: []Response{}}
	if err := s.db.QueryRowContext(ctx, `SELECT name FROM topics WHERE id=$1`, t.TopicID).Scan(&d.TopicName); err != nil {
		return Detail{}, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+responseCols+` FROM user_responses WHERE test_id=$1 ORDER BY id`, testID)
	if err != nil {
		return Detail{}, err
	}
	defer rows.Close()
	for rows.Next() {
		r, err := scanResponse(rows)
		if err != nil {
			return Detail{}, err
		}
		d.Responses = append(d.Responses, r)
	}
	return d, rows.Err()
}

// List returns the caller's tests, most recently started first.
func (s *Service) List(ctx context.Context, userID int64, f ListFilter) ([]Test, error) {
	where := []string{"user_id=$1"}
	args := []any{userID}
	if f.TopicID > 0 {
		args = append(args, f.TopicID)
		where = append(where, "topic_id=$"+strconv.Itoa(len(args)))
	}
	if f.Completed != nil {
		if *f.Completed {
			where = append(where, "completed_at IS NOT NULL")
		} else {
			where = append(where, "completed_at IS NULL")
		}
	}
	args = append(args, f.Limit, f.Skip)
	q := `SELECT ` + testCols + ` FROM tests WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY started_at DESC, id DESC LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Test{}
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

const responseCols = `id, test_id, question_id, option_id, response_text, is_correct, submitted_at`

func scanResponse(row interface{ Scan(...any) error }) (Response, error) {
	var r Response
	var opt sql.NullInt64
	var text sql.NullString
	var at int64
	if err := row.Scan(&r.ID, &r.TestID, &r.QuestionID, &opt, &text, &r.IsCorrect, &at); err != nil {
		return Response{}, err
	}
	if opt.Valid {
		r.OptionID = &opt.Int64
	}
	if text.Valid {
		r.ResponseText = &text.String
	}
	r.SubmittedAt = db.FromMillis(at)
	return r, nil
}
