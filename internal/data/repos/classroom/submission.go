package classroom

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// GradedAnswer is a submission joined with its question and lecture, the row
// shape every report is computed from.
type GradedAnswer struct {
	StudentID    uuid.UUID `gorm:"column:student_id"`
	LectureID    uuid.UUID `gorm:"column:lecture_id"`
	LectureTitle string    `gorm:"column:lecture_title"`
	QuestionID   uuid.UUID `gorm:"column:question_id"`
	QuestionText string    `gorm:"column:question_text"`
	Concept      string    `gorm:"column:concept"`
	IsCorrect    bool      `gorm:"column:is_correct"`
}

type SubmissionRepo interface {
	Create(dbc dbctx.Context, subs []*types.Submission) ([]*types.Submission, error)
	ListByStudentLecture(dbc dbctx.Context, studentID, lectureID uuid.UUID) ([]*types.Submission, error)
	ListGraded(dbc dbctx.Context, studentID *uuid.UUID) ([]GradedAnswer, error)
	DeleteByLectureIDs(dbc dbctx.Context, lectureIDs []uuid.UUID) error
}

type submissionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return &submissionRepo{db: db, log: baseLog.With("repo", "SubmissionRepo")}
}

func (r *submissionRepo) Create(dbc dbctx.Context, subs []*types.Submission) ([]*types.Submission, error) {
	if len(subs) == 0 {
		return []*types.Submission{}, nil
	}
	if err := dbc.DB(r.db).Create(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *submissionRepo) ListByStudentLecture(dbc dbctx.Context, studentID, lectureID uuid.UUID) ([]*types.Submission, error) {
	var out []*types.Submission
	err := dbc.DB(r.db).
		Where("student_id = ? AND lecture_id = ?", studentID, lectureID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListGraded returns all graded answers, optionally for one student. Rows
// whose question or lecture no longer exists are skipped by the inner joins.
func (r *submissionRepo) ListGraded(dbc dbctx.Context, studentID *uuid.UUID) ([]GradedAnswer, error) {
	q := dbc.DB(r.db).
		Table("submission AS s").
		Select(`s.student_id, s.lecture_id, l.title AS lecture_title, s.question_id,
			q.question_text, q.concept, s.is_correct`).
		Joins("JOIN question AS q ON q.id = s.question_id").
		Joins("JOIN lecture AS l ON l.id = s.lecture_id")
	if studentID != nil {
		q = q.Where("s.student_id = ?", *studentID)
	}
	var out []GradedAnswer
	if err := q.Order("l.date ASC, s.created_at ASC").Scan(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *submissionRepo) DeleteByLectureIDs(dbc dbctx.Context, lectureIDs []uuid.UUID) error {
	if len(lectureIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("lecture_id IN ?", lectureIDs).Delete(&types.Submission{}).Error
}
