package grading_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/grading"
)

// fakeOptions maps questionID -> optionID -> is_correct.
type fakeOptions map[int64]map[int64]bool

func (f fakeOptions) OptionCorrect(_ context.Context, questionID, optionID int64) (bool, error) {
	ok, found := f[questionID][optionID]
	if !found {
		return false, apperr.NotFound("Option not found or does not belong to this question")
	}
	return ok, nil
}

func ptr[T any](v T) *T { return &v }

func TestGradeOpenEnded(t *testing.T) {
	g := grading.NewDefaultGrader(fakeOptions{})
	q := grading.Q{ID: 1, Type: grading.TypeOpenEnded, CorrectAnswer: ptr("Paris")}

	cases := []struct {
		name string
		text *string
		want bool
	}{
		{"case-insensitive match", ptr("paris"), true},
		{"exact match", ptr("Paris"), true},
		{"typo", ptr("Pariss"), false},
		{"no fuzzy trimming", ptr(" Paris"), false},
		{"missing text", nil, false},
		{"empty text", ptr(""), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := g.Grade(context.Background(), q, grading.Submission{Text: tc.text})
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestGradeOpenEndedWithoutStoredAnswer(t *testing.T) {
	g := grading.NewDefaultGrader(fakeOptions{})
	got, err := g.Grade(context.Background(), grading.Q{ID: 1, Type: grading.TypeOpenEnded}, grading.Submission{Text: ptr("anything")})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestGradeChoice(t *testing.T) {
	opts := fakeOptions{
		1: {10: true, 11: false},
		2: {20: true},
	}
	g := grading.NewDefaultGrader(opts)
	ctx := context.Background()

	for _, typ := range []string{grading.TypeMultipleChoice, grading.TypeTrueFalse} {
		q := grading.Q{ID: 1, Type: typ}

		got, err := g.Grade(ctx, q, grading.Submission{OptionID: ptr(int64(10))})
		require.NoError(t, err)
		assert.True(t, got, typ)

		got, err = g.Grade(ctx, q, grading.Submission{OptionID: ptr(int64(11))})
		require.NoError(t, err)
		assert.False(t, got, typ)

		got, err = g.Grade(ctx, q, grading.Submission{})
		require.NoError(t, err, "no selection is not an error")
		assert.False(t, got, typ)

		_, err = g.Grade(ctx, q, grading.Submission{OptionID: ptr(int64(20))})
		assert.ErrorIs(t, err, apperr.ErrNotFound, "option of another question")
	}
}

func TestGradeUnknownType(t *testing.T) {
	g := grading.NewDefaultGrader(fakeOptions{})
	_, err := g.Grade(context.Background(), grading.Q{Type: "essay"}, grading.Submission{})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestScore(t *testing.T) {
	s, err := grading.Score([]bool{true, true, false})
	require.NoError(t, err)
	assert.Equal(t, 66.67, s)

	s, err = grading.Score([]bool{true})
	require.NoError(t, err)
	assert.Equal(t, 100.0, s)

	s, err = grading.Score([]bool{false, false})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s)

	_, err = grading.Score(nil)
	assert.ErrorIs(t, err, apperr.ErrConflict)
}

func TestPercentAndRound(t *testing.T) {
	assert.Equal(t, 33.33, grading.Percent(1, 3))
	assert.Equal(t, 25.0, grading.Percent(1, 4))
	assert.Equal(t, 0.0, grading.Percent(3, 0))
	assert.Equal(t, 66.67, grading.Round2(66.666666))
	assert.Equal(t, 2.01, grading.Round2(2.005))
}

func TestValidType(t *testing.T) {
	assert.True(t, grading.ValidType("open_ended"))
	assert.False(t, grading.ValidType("essay"))
}
