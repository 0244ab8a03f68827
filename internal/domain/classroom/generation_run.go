package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"

	RunSourceAudio      = "audio"
	RunSourceTranscript = "transcript"
)

// GenerationRun is the durable queue entry for one quiz generation job.
type GenerationRun struct {
	ID          uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	LectureID   uuid.UUID      `gorm:"type:uuid;column:lecture_id;not null;index" json:"lecture_id"`
	Source      string         `gorm:"column:source;not null" json:"source"`
	Status      string         `gorm:"column:status;not null;index" json:"status"`
	Stage       string         `gorm:"column:stage;not null;index" json:"stage"`
	Progress    int            `gorm:"column:progress;not null;default:0" json:"progress"`
	NumMCQ      int            `gorm:"column:num_mcq;not null" json:"num_mcq"`
	NumTF       int            `gorm:"column:num_tf;not null" json:"num_tf"`
	Attempts    int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	Error       string         `gorm:"column:error;type:text" json:"error,omitempty"`
	LockedAt    *time.Time     `gorm:"column:locked_at;index" json:"locked_at,omitempty"`
	HeartbeatAt *time.Time     `gorm:"column:heartbeat_at;index" json:"heartbeat_at,omitempty"`
	LastErrorAt *time.Time     `gorm:"column:last_error_at" json:"last_error_at,omitempty"`
	Metadata    datatypes.JSON `gorm:"column:metadata" json:"metadata,omitempty"`
	CreatedAt   time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"not null;index" json:"updated_at"`
}

func (GenerationRun) TableName() string { return "generation_run" }

// Active reports whether the run still occupies its lecture.
func (r *GenerationRun) Active() bool {
	return r != nil && (r.Status == RunStatusQueued || r.Status == RunStatusRunning)
}
