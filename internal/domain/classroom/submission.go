package classroom

import (
	"time"

	"github.com/google/uuid"
)

// Submission is one student's answer to one question. A student answers a
// question at most once.
type Submission struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StudentID     uuid.UUID `gorm:"type:uuid;column:student_id;not null;uniqueIndex:idx_submission_student_question" json:"student_id"`
	QuestionID    uuid.UUID `gorm:"type:uuid;column:question_id;not null;uniqueIndex:idx_submission_student_question" json:"question_id"`
	LectureID     uuid.UUID `gorm:"type:uuid;column:lecture_id;not null;index" json:"lecture_id"`
	StudentAnswer string    `gorm:"column:student_answer;not null" json:"student_answer"`
	IsCorrect     bool      `gorm:"column:is_correct;not null" json:"is_correct"`
	CreatedAt     time.Time `gorm:"not null;index" json:"created_at"`
}

func (Submission) TableName() string { return "submission" }
