package catalog

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/db"
	"github.com/quizd/quizd/internal/grading"
)

var (
	errQuestionNotFound = apperr.NotFound("Question not found")
	errOptionNotFound   = apperr.NotFound("Option not found or does not belong to this question")
)

const questionCols = `id, topic_id, question_text, question_type, difficulty, correct_answer`

func scanQuestion(row interface{ Scan(...any) error }) (Question, error) {
	var q Question
	var answer sql.NullString
	if err := row.Scan(&q.ID, &q.TopicID, &q.QuestionText, &q.QuestionType, &q.Difficulty, &answer); err != nil {
		return Question{}, err
	}
	if answer.Valid {
		q.CorrectAnswer = &answer.String
	}
	return q, nil
}

func checkTypeAndDifficulty(typ string, difficulty int) error {
	if !grading.ValidType(typ) {
		return apperr.Validation("Question type must be one of: %s", strings.Join(grading.Types, ", "))
	}
	if difficulty < 1 || difficulty > 5 {
		return apperr.Validation("Difficulty must be between 1 and 5")
	}
	return nil
}

// CreateQuestion stores a question. correct_answer is kept only for
// open-ended questions.
func (s *Store) CreateQuestion(ctx context.Context, in QuestionInput) (Question, error) {
	if err := checkTypeAndDifficulty(in.QuestionType, in.Difficulty); err != nil {
		return Question{}, err
	}
	answer := in.CorrectAnswer
	if in.QuestionType != grading.TypeOpenEnded {
		answer = nil
	}
	var q Question
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := TopicExists(ctx, tx, in.TopicID); err != nil {
			return err
		}
		var err error
		q, err = scanQuestion(tx.QueryRowContext(ctx,
			`INSERT INTO questions (topic_id, question_text, question_type, difficulty, correct_answer)
			 VALUES ($1,$2,$3,$4,$5) RETURNING `+questionCols,
			in.TopicID, in.QuestionText, in.QuestionType, in.Difficulty, answer))
		return err
	})
	return q, err
}

func (s *Store) ListQuestions(ctx context.Context, f QuestionFilter) ([]Question, error) {
	var where []string
	var args []any
	if f.TopicID > 0 {
		args = append(args, f.TopicID)
		where = append(where, "topic_id="+placeholder(len(args)))
	}
	if f.Difficulty > 0 {
		args = append(args, f.Difficulty)
		where = append(where, "difficulty="+placeholder(len(args)))
	}
	q := `SELECT ` + questionCols + ` FROM questions`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Skip)
	q += " ORDER BY id LIMIT " + placeholder(len(args)-1) + " OFFSET " + placeholder(len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Question{}
	for rows.Next() {
		qq, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, qq)
	}
	return out, rows.Err()
}

func (s *Store) GetQuestion(ctx context.Context, id int64) (QuestionDetail, error) {
	q, err := GetQuestion(ctx, s.db, id)
	if err != nil {
		return QuestionDetail{}, err
	}
	opts, err := s.listOptions(ctx, id)
	if err != nil {
		return QuestionDetail{}, err
	}
	return QuestionDetail{Question: q, Options: opts}, nil
}

// GetQuestion loads a single question through q, which may be a transaction.
func GetQuestion(ctx context.Context, q db.Queryer, id int64) (Question, error) {
	qq, err := scanQuestion(q.QueryRowContext(ctx, `SELECT `+questionCols+` FROM questions WHERE id=$1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, errQuestionNotFound
	}
	return qq, err
}

// UpdateQuestion applies a partial update. Setting correct_answer is only
// allowed when the resulting type is open-ended; moving a question away
// from open-ended drops its stored answer.
func (s *Store) UpdateQuestion(ctx context.Context, id int64, in QuestionUpdate) (Question, error) {
	var q Question
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if q, err = GetQuestion(ctx, tx, id); err != nil {
			return err
		}
		if in.TopicID != nil && *in.TopicID != 0 {
			if err := TopicExists(ctx, tx, *in.TopicID); err != nil {
				return err
			}
			q.TopicID = *in.TopicID
		}
		if in.QuestionText != nil && *in.QuestionText != "" {
			q.QuestionText = *in.QuestionText
		}
		if in.QuestionType != nil && *in.QuestionType != "" {
			q.QuestionType = *in.QuestionType
		}
		if in.Difficulty != nil && *in.Difficulty != 0 {
			q.Difficulty = *in.Difficulty
		}
		if err := checkTypeAndDifficulty(q.QuestionType, q.Difficulty); err != nil {
			return err
		}
		if in.CorrectAnswer != nil {
			if q.QuestionType != grading.TypeOpenEnded {
				return apperr.Validation("Correct answer can only be set for open-ended questions")
			}
			q.CorrectAnswer = in.CorrectAnswer
		}
		if q.QuestionType != grading.TypeOpenEnded {
			q.CorrectAnswer = nil
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE questions SET topic_id=$1, question_text=$2, question_type=$3, difficulty=$4, correct_answer=$5 WHERE id=$6`,
			q.TopicID, q.QuestionText, q.QuestionType, q.Difficulty, q.CorrectAnswer, id)
		return err
	})
	return q, err
}

func (s *Store) DeleteQuestion(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errQuestionNotFound
	}
	return nil
}

// CreateOption adds a choice to a multiple-choice or true/false question.
func (s *Store) CreateOption(ctx context.Context, questionID int64, in OptionInput) (Option, error) {
	var o Option
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		q, err := GetQuestion(ctx, tx, questionID)
		if err != nil {
			return err
		}
		if q.QuestionType == grading.TypeOpenEnded {
			return apperr.Validation("Cannot add options to open-ended questions")
		}
		return tx.QueryRowContext(ctx,
			`INSERT INTO options (question_id, option_text, is_correct) VALUES ($1,$2,$3)
			 RETURNING id, question_id, option_text, is_correct`,
			questionID, in.OptionText, in.IsCorrect).Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect)
	})
	return o, err
}

func (s *Store) listOptions(ctx context.Context, questionID int64) ([]Option, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_id, option_text, is_correct FROM options WHERE question_id=$1 ORDER BY id`, questionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Option{}
	for rows.Next() {
		var o Option
		if err := rows.Scan(&o.ID, &o.QuestionID, &o.OptionText, &o.IsCorrect); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Options resolves options for grading through q, which is usually the
// transaction the response is being written in.
type Options struct{ Q db.Queryer }

// OptionCorrect reports the option's is_correct flag. An option that does
// not exist or belongs to another question is not found.
func (o Options) OptionCorrect(ctx context.Context, questionID, optionID int64) (bool, error) {
	var ok bool
	err := o.Q.QueryRowContext(ctx,
		`SELECT is_correct FROM options WHERE id=$1 AND question_id=$2`, optionID, questionID).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return false, errOptionNotFound
	}
	return ok, err
}

func placeholder(n int) string { return "$" + strconv.Itoa(n) }
