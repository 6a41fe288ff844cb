package catalog

import "time"

type Topic struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

type TopicDetail struct {
	Topic
	QuestionCount int `json:"question_count"`
}

type TopicInput struct {
	Name        string  `json:"name" validate:"required,max=200"`
	Description *string `json:"description"`
}

// TopicUpdate leaves a field untouched when it is nil or empty.
type TopicUpdate struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description"`
}

type Question struct {
	ID            int64   `json:"id"`
	TopicID       int64   `json:"topic_id"`
	QuestionText  string  `json:"question_text"`
	QuestionType  string  `json:"question_type"`
	Difficulty    int     `json:"difficulty"`
	CorrectAnswer *string `json:"correct_answer"`
}

type QuestionDetail struct {
	Question
	Options []Option `json:"options"`
}

type QuestionInput struct {
	TopicID       int64   `json:"topic_id" validate:"required"`
	QuestionText  string  `json:"question_text" validate:"required"`
	QuestionType  string  `json:"question_type" validate:"required,oneof=multiple_choice true_false open_ended"`
	Difficulty    int     `json:"difficulty" validate:"min=1,max=5"`
	CorrectAnswer *string `json:"correct_answer"`
}

// QuestionUpdate is a partial update; nil fields are kept.
type QuestionUpdate struct {
	TopicID       *int64  `json:"topic_id"`
	QuestionText  *string `json:"question_text"`
	QuestionType  *string `json:"question_type" validate:"omitempty,oneof=multiple_choice true_false open_ended"`
	Difficulty    *int    `json:"difficulty" validate:"omitempty,min=1,max=5"`
	CorrectAnswer *string `json:"correct_answer"`
}

type QuestionFilter struct {
	TopicID    int64
	Difficulty int
	Skip       int
	Limit      int
}

type Option struct {
	ID         int64  `json:"id"`
	QuestionID int64  `json:"question_id"`
	OptionText string `json:"option_text"`
	IsCorrect  bool   `json:"is_correct"`
}

type OptionInput struct {
	OptionText string `json:"option_text" validate:"required"`
	IsCorrect  bool   `json:"is_correct"`
}
