package attempt

import "time"

type Test struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TopicID     int64      `json:"topic_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Score       *float64   `json:"score"`
}

// Completed reports whether the test has been scored.
func (t Test) Completed() bool { return t.CompletedAt != nil }

type Response struct {
	ID           int64     `json:"id"`
	TestID       int64     `json:"test_id"`
	QuestionID   int64     `json:"question_id"`
	OptionID     *int64    `json:"option_id"`
	ResponseText *string   `json:"response_text"`
	IsCorrect    bool      `json:"is_correct"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

type Detail struct {
	Test
	TopicName string     `json:"topic_name"`
	Responses []Response `json:"responses"`
}

type StartInput struct {
	TopicID int64 `json:"topic_id" validate:"required"`
}

type ResponseInput struct {
	QuestionID   int64   `json:"question_id" validate:"required"`
	OptionID     *int64  `json:"option_id"`
	ResponseText *string `json:"response_text"`
}

type ListFilter struct {
	TopicID   int64
	Completed *bool
	Skip      int
	Limit     int
}
