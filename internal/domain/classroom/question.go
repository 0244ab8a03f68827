package classroom

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	QuestionTypeMCQ = "mcq"
	QuestionTypeTF  = "tf"
)

type Question struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LectureID     uuid.UUID      `gorm:"type:uuid;column:lecture_id;not null;index" json:"lecture_id"`
	Type          string         `gorm:"column:type;not null;index" json:"type"`
	Concept       string         `gorm:"column:concept;not null;index" json:"concept"`
	QuestionText  string         `gorm:"column:question_text;type:text;not null" json:"question_text"`
	OptionA       string         `gorm:"column:option_a" json:"option_a,omitempty"`
	OptionB       string         `gorm:"column:option_b" json:"option_b,omitempty"`
	OptionC       string         `gorm:"column:option_c" json:"option_c,omitempty"`
	OptionD       string         `gorm:"column:option_d" json:"option_d,omitempty"`
	CorrectAnswer string         `gorm:"column:correct_answer;not null" json:"correct_answer"`
	Explanation   string         `gorm:"column:explanation;type:text" json:"explanation"`
	Metadata      datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;index" json:"created_at"`
}

func (Question) TableName() string { return "question" }

// Grade compares a student answer with the stored one. Letters are compared
// case-insensitively and true/false answers accept their common spellings.
func (q *Question) Grade(answer string) bool {
	return NormalizeAnswer(q.Type, answer) == NormalizeAnswer(q.Type, q.CorrectAnswer)
}

func NormalizeAnswer(questionType, answer string) string {
	a := strings.TrimSpace(answer)
	if questionType != QuestionTypeTF {
		return strings.ToUpper(a)
	}
	switch strings.ToLower(a) {
	case "true", "t", "yes", "1", "o", "是", "對", "正確":
		return "True"
	case "false", "f", "no", "0", "x", "否", "錯", "錯誤":
		return "False"
	default:
		return a
	}
}
