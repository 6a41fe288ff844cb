package grading

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/quizd/quizd/internal/apperr"
)

const (
	TypeMultipleChoice = "multiple_choice"
	TypeTrueFalse      = "true_false"
	TypeOpenEnded      = "open_ended"
)

// Types lists the accepted question types in display order.
var Types = []string{TypeMultipleChoice, TypeTrueFalse, TypeOpenEnded}

// ValidType reports whether t is one of Types.
func ValidType(t string) bool {
	for _, v := range Types {
		if v == t {
			return true
		}
	}
	return false
}

// Q is the view of a question needed for grading.
type Q struct {
	ID            int64
	Type          string
	CorrectAnswer *string
}

// Submission is one answer as sent by the test taker.
type Submission struct {
	OptionID *int64
	Text     *string
}

// OptionLookup resolves an option scoped to its question. It must return an
// error wrapping apperr.ErrNotFound when the option does not exist or
// belongs to another question.
type OptionLookup interface {
	OptionCorrect(ctx context.Context, questionID, optionID int64) (bool, error)
}

// Strategy grades a single question type.
type Strategy interface {
	Grade(ctx context.Context, q Q, s Submission) (bool, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Grade(ctx context.Context, q Q, s Submission) (bool, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, s Submission) (bool, error) {
	st, ok := g.strategies[q.Type]
	if !ok {
		return false, apperr.Validation("unsupported question type %q", q.Type)
	}
	return st.Grade(ctx, q, s)
}

// NewDefaultGrader installs the built-in strategies. Choice questions look
// their options up through options.
func NewDefaultGrader(options OptionLookup) Grader {
	choice := choiceStrategy{options: options}
	return &defaultGrader{
		strategies: map[string]Strategy{
			TypeMultipleChoice: choice,
			TypeTrueFalse:      choice,
			TypeOpenEnded:      openEndedStrategy{},
		},
	}
}

// --- Strategies ---

type choiceStrategy struct{ options OptionLookup }

func (s choiceStrategy) Grade(ctx context.Context, q Q, sub Submission) (bool, error) {
	if sub.OptionID == nil {
		return false, nil
	}
	return s.options.OptionCorrect(ctx, q.ID, *sub.OptionID)
}

type openEndedStrategy struct{}

func (openEndedStrategy) Grade(_ context.Context, q Q, sub Submission) (bool, error) {
	if sub.Text == nil || *sub.Text == "" || q.CorrectAnswer == nil || *q.CorrectAnswer == "" {
		return false, nil
	}
	return strings.EqualFold(*sub.Text, *q.CorrectAnswer), nil
}

// --- scoring ---

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// Percent returns part/whole*100 rounded to two decimals, or 0 when whole is 0.
func Percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return decimal.NewFromInt(int64(part)).
		Mul(decimal.NewFromInt(100)).
		DivRound(decimal.NewFromInt(int64(whole)), 2).
		InexactFloat64()
}

// Score is the share of correct answers as a 0-100 value. An empty set of
// answers cannot be scored.
func Score(correct []bool) (float64, error) {
	if len(correct) == 0 {
		return 0, apperr.Conflict("No responses found for this test")
	}
	n := 0
	for _, c := range correct {
		if c {
			n++
		}
	}
	return Percent(n, len(correct)), nil
}
