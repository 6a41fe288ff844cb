// Package analytics aggregates a user's completed tests and answers into
// performance reports. The arithmetic is kept in pure functions; Store only
// fetches rows.
package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/quizd/quizd/internal/apperr"
	"github.com/quizd/quizd/internal/grading"
)

const recentLimit = 5

type ScoreRecord struct {
	Date  time.Time `json:"date"`
	Score float64   `json:"score"`
}

type UserPerformance struct {
	TotalTests     int           `json:"total_tests"`
	AverageScore   float64       `json:"average_score"`
	BestScore      float64       `json:"best_score"`
	WorstScore     float64       `json:"worst_score"`
	RecentScores   []ScoreRecord `json:"recent_scores"`
	CompletionRate float64       `json:"completion_rate"`
}

type TopicPerformance struct {
	TopicID       int64   `json:"topic_id"`
	TopicName     string  `json:"topic_name"`
	TestsTaken    int     `json:"tests_taken"`
	AverageScore  float64 `json:"average_score"`
	BestScore     float64 `json:"best_score"`
	QuestionCount int     `json:"question_count"`
	PerfectScores int     `json:"perfect_scores"`
}

type QuestionDifficulty struct {
	QuestionID          int64   `json:"question_id"`
	QuestionText        string  `json:"question_text"`
	RatedDifficulty     int     `json:"rated_difficulty"`
	Attempts            int     `json:"attempts"`
	SuccessRate         float64 `json:"success_rate"`
	PerceivedDifficulty int     `json:"perceived_difficulty"`
}

var periods = map[string]int{
	"week":  7,
	"month": 30,
	"year":  365,
	"all":   0,
}

// WindowStart returns the earliest completion time counted for period, or
// the zero time for "all". An empty period means "all".
func WindowStart(period string, now time.Time) (time.Time, error) {
	if period == "" {
		period = "all"
	}
	days, ok := periods[period]
	if !ok {
		return time.Time{}, apperr.Validation("period must be one of: week, month, year, all")
	}
	if days == 0 {
		return time.Time{}, nil
	}
	return now.AddDate(0, 0, -days), nil
}

// Summarize builds the user report from the completed tests in the window,
// newest first, and the number of tests the user ever started.
func Summarize(completed []ScoreRecord, started int) UserPerformance {
	if len(completed) == 0 {
		return UserPerformance{RecentScores: []ScoreRecord{}}
	}
	sum := decimal.Zero
	best, worst := completed[0].Score, completed[0].Score
	for _, c := range completed {
		sum = sum.Add(decimal.NewFromFloat(c.Score))
		best = max(best, c.Score)
		worst = min(worst, c.Score)
	}
	recent := completed
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	return UserPerformance{
		TotalTests:     len(completed),
		AverageScore:   sum.DivRound(decimal.NewFromInt(int64(len(completed))), 2).InexactFloat64(),
		BestScore:      best,
		WorstScore:     worst,
		RecentScores:   append([]ScoreRecord(nil), recent...),
		CompletionRate: grading.Percent(len(completed), started),
	}
}

// SuccessRate is correct/attempts as a percentage with two decimals.
func SuccessRate(correct, attempts int) float64 {
	return grading.Percent(correct, attempts)
}

// PerceivedDifficulty maps the raw success ratio onto 1..5, where 5 means
// nobody got it right.
func PerceivedDifficulty(correct, attempts int) int {
	if attempts <= 0 {
		return 5
	}
	return 5 - (4*correct)/attempts
}

type questionTally struct {
	ID         int64
	Text       string
	Difficulty int
	Attempts   int
	Correct    int
}

// rankDifficulty converts tallies to reports, hardest first.
func rankDifficulty(tallies []questionTally) []QuestionDifficulty {
	out := make([]QuestionDifficulty, 0, len(tallies))
	for _, t := range tallies {
		out = append(out, QuestionDifficulty{
			QuestionID:          t.ID,
			QuestionText:        t.Text,
			RatedDifficulty:     t.Difficulty,
			Attempts:            t.Attempts,
			SuccessRate:         SuccessRate(t.Correct, t.Attempts),
			PerceivedDifficulty: PerceivedDifficulty(t.Correct, t.Attempts),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SuccessRate != out[j].SuccessRate {
			return out[i].SuccessRate < out[j].SuccessRate
		}
		return out[i].QuestionID < out[j].QuestionID
	})
	return out
}
