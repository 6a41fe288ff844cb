package analytics

import (
	"context"
	"database/sql"
	"time"

	"github.com/quizd/quizd/internal/db"
	"github.com/quizd/quizd/internal/grading"
)

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbh *sql.DB) *Store {
	return &Store{db: dbh, now: time.Now}
}

// UserPerformance reports on userID's tests completed within period.
func (s *Store) UserPerformance(ctx context.Context, userID int64, period string) (UserPerformance, error) {
	from, err := WindowStart(period, s.now())
	if err != nil {
		return UserPerformance{}, err
	}
	var since int64
	if !from.IsZero() {
		since = db.Millis(from)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT completed_at, score FROM tests
		 WHERE user_id=$1 AND completed_at IS NOT NULL AND completed_at >= $2
		 ORDER BY completed_at DESC, id DESC`, userID, since)
	if err != nil {
		return UserPerformance{}, err
	}
	defer rows.Close()
	var completed []ScoreRecord
	for rows.Next() {
		var at int64
		var score sql.NullFloat64
		if err := rows.Scan(&at, &score); err != nil {
			return UserPerformance{}, err
		}
		completed = append(completed, ScoreRecord{Date: db.FromMillis(at), Score: score.Float64})
	}
	if err := rows.Err(); err != nil {
		return UserPerformance{}, err
	}

	var started int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tests WHERE user_id=$1`, userID).Scan(&started); err != nil {
		return UserPerformance{}, err
	}
	return Summarize(completed, started), nil
}

// TopicPerformance reports per topic in which userID completed a test.
func (s *Store) TopicPerformance(ctx context.Context, userID int64) ([]TopicPerformance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tp.id, tp.name, COUNT(t.id), AVG(t.score), MAX(t.score),
		        (SELECT COUNT(*) FROM questions q WHERE q.topic_id = tp.id),
		        SUM(CASE WHEN t.score = 100 THEN 1 ELSE 0 END)
		 FROM topics tp JOIN tests t ON t.topic_id = tp.id
		 WHERE t.user_id=$1 AND t.completed_at IS NOT NULL
		 GROUP BY tp.id, tp.name
		 ORDER BY tp.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []TopicPerformance{}
	for rows.Next() {
		var p TopicPerformance
		var avg, best sql.NullFloat64
		if err := rows.Scan(&p.TopicID, &p.TopicName, &p.TestsTaken, &avg, &best, &p.QuestionCount, &p.PerfectScores); err != nil {
			return nil, err
		}
		p.AverageScore = grading.Round2(avg.Float64)
		p.BestScore = best.Float64
		out = append(out, p)
	}
	return out, rows.Err()
}

// QuestionDifficulty reports on every question userID answered, optionally
// limited to one topic, hardest first.
func (s *Store) QuestionDifficulty(ctx context.Context, userID, topicID int64) ([]QuestionDifficulty, error) {
	q := `SELECT qn.id, qn.question_text, qn.difficulty, COUNT(r.id),
	             SUM(CASE WHEN r.is_correct THEN 1 ELSE 0 END)
	      FROM questions qn
	      JOIN user_responses r ON r.question_id = qn.id
	      JOIN tests t ON t.id = r.test_id
	      WHERE t.user_id=$1`
	args := []any{userID}
	if topicID > 0 {
		q += ` AND qn.topic_id=$2`
		args = append(args, topicID)
	}
	q += ` GROUP BY qn.id, qn.question_text, qn.difficulty ORDER BY qn.id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tallies []questionTally
	for rows.Next() {
		var t questionTally
		if err := rows.Scan(&t.ID, &t.Text, &t.Difficulty, &t.Attempts, &t.Correct); err != nil {
			return nil, err
		}
		tallies = append(tallies, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rankDifficulty(tallies), nil
}
