package classroom

import (
	"time"

	"github.com/google/uuid"
)

type Lecture struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID uuid.UUID `gorm:"type:uuid;column:course_id;not null;index" json:"course_id"`
	Title    string    `gorm:"column:title;not null;index" json:"title"`
	Date     time.Time `gorm:"column:date;not null;index" json:"date"`

	// AudioPath is the local file the pipeline reads; AudioObject is the
	// archived GCS key when a bucket is configured.
	AudioPath   string `gorm:"column:audio_path" json:"audio_path,omitempty"`
	AudioObject string `gorm:"column:audio_object" json:"audio_object,omitempty"`

	Transcript          string `gorm:"column:transcript;type:text" json:"transcript"`
	TranscriptFinalized bool   `gorm:"column:transcript_finalized;not null;default:false" json:"transcript_finalized"`
	Summary             string `gorm:"column:summary;type:text" json:"summary"`
	QuizGenerated       bool   `gorm:"column:quiz_generated;not null;default:false" json:"quiz_generated"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Lecture) TableName() string { return "lecture" }
