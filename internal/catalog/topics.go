package catalog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/db"
)

// Store is the SQL-backed catalog of topics, questions and options.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbh *sql.DB) *Store {
	return &Store{db: dbh, now: time.Now}
}

var errTopicNotFound = apperr.NotFound("Topic not found")

const topicCols = `id, name, description, created_at`

func scanTopic(row interface{ Scan(...any) error }) (Topic, error) {
	var t Topic
	var desc sql.NullString
	var created int64
	if err := row.Scan(&t.ID, &t.Name, &desc, &created); err != nil {
		return Topic{}, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	t.CreatedAt = db.FromMillis(created)
	return t, nil
}

func (s *Store) CreateTopic(ctx context.Context, in TopicInput) (Topic, error) {
	var t Topic
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := topicNameFree(ctx, tx, in.Name, 0); err != nil {
			return err
		}
		var err error
		t, err = scanTopic(tx.QueryRowContext(ctx,
			`INSERT INTO topics (name, description, created_at) VALUES ($1,$2,$3) RETURNING `+topicCols,
			in.Name, in.Description, db.Millis(s.now())))
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("Topic with this name already exists")
		}
		return err
	})
	return t, err
}

func topicNameFree(ctx context.Context, q db.Queryer, name string, except int64) error {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT id FROM topics WHERE name=$1 AND id<>$2`, name, except).Scan(&id)
	switch {
	case err == nil:
		return apperr.Conflict("Topic with this name already exists")
	case errors.Is(err, sql.ErrNoRows):
		return nil
	default:
		return err
	}
}

func (s *Store) ListTopics(ctx context.Context, skip, limit int) ([]Topic, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+topicCols+` FROM topics ORDER BY id LIMIT $1 OFFSET $2`, limit, skip)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Topic{}
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetTopic returns the topic with the number of questions it holds.
func (s *Store) GetTopic(ctx context.Context, id int64) (TopicDetail, error) {
	t, err := getTopic(ctx, s.db, id)
	if err != nil {
		return TopicDetail{}, err
	}
	d := TopicDetail{Topic: t}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions WHERE topic_id=$1`, id).Scan(&d.QuestionCount)
	return d, err
}

func getTopic(ctx context.Context, q db.Queryer, id int64) (Topic, error) {
	t, err := scanTopic(q.QueryRowContext(ctx, `SELECT `+topicCols+` FROM topics WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Topic{}, errTopicNotFound
	}
	return t, err
}

// TopicExists is used by other components that reference topics.
func TopicExists(ctx context.Context, q db.Queryer, id int64) error {
	_, err := getTopic(ctx, q, id)
	return err
}

func (s *Store) UpdateTopic(ctx context.Context, id int64, in TopicUpdate) (Topic, error) {
	var t Topic
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if t, err = getTopic(ctx, tx, id); err != nil {
			return err
		}
		if in.Name != nil && *in.Name != "" && *in.Name != t.Name {
			if err := topicNameFree(ctx, tx, *in.Name, id); err != nil {
				return err
			}
			t.Name = *in.Name
		}
		if in.Description != nil && *in.Description != "" {
			t.Description = in.Description
		}
		_, err = tx.ExecContext(ctx, `UPDATE topics SET name=$1, description=$2 WHERE id=$3`, t.Name, t.Description, id)
		if db.IsUniqueViolation(err) {
			return apperr.Conflict("Topic with this name already exists")
		}
		return err
	})
	return t, err
}

// DeleteTopic removes the topic; questions, options and tests cascade.
func (s *Store) DeleteTopic(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM topics WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errTopicNotFound
	}
	return nil
}
