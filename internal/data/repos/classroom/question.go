package classroom

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type QuestionRepo interface {
	Create(dbc dbctx.Context, questions []*types.Question) ([]*types.Question, error)
	ListByLecture(dbc dbctx.Context, lectureID uuid.UUID) ([]*types.Question, error)
	CountByLecture(dbc dbctx.Context, lectureID uuid.UUID) (int64, error)
	// CountByRun counts questions of one type saved by a generation run.
	CountByRun(dbc dbctx.Context, lectureID, runID uuid.UUID, questionType string) (int64, error)
	DeleteByLectureIDs(dbc dbctx.Context, lectureIDs []uuid.UUID) error
}

type questionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return &questionRepo{db: db, log: baseLog.With("repo", "QuestionRepo")}
}

func (r *questionRepo) Create(dbc dbctx.Context, questions []*types.Question) ([]*types.Question, error) {
	if len(questions) == 0 {
		return []*types.Question{}, nil
	}
	if err := dbc.DB(r.db).Create(&questions).Error; err != nil {
		return nil, err
	}
	return questions, nil
}

// ListByLecture returns questions in creation order: MCQ batches before TF.
func (r *questionRepo) ListByLecture(dbc dbctx.Context, lectureID uuid.UUID) ([]*types.Question, error) {
	var out []*types.Question
	err := dbc.DB(r.db).
		Where("lecture_id = ?", lectureID).
		Order("created_at ASC, type ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *questionRepo) CountByLecture(dbc dbctx.Context, lectureID uuid.UUID) (int64, error) {
	var count int64
	if err := dbc.DB(r.db).Model(&types.Question{}).Where("lecture_id = ?", lectureID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *questionRepo) CountByRun(dbc dbctx.Context, lectureID, runID uuid.UUID, questionType string) (int64, error) {
	var count int64
	err := dbc.DB(r.db).Model(&types.Question{}).
		Where("lecture_id = ? AND type = ?", lectureID, questionType).
		Where(datatypes.JSONQuery("metadata").Equals(runID.String(), "run_id")).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *questionRepo) DeleteByLectureIDs(dbc dbctx.Context, lectureIDs []uuid.UUID) error {
	if len(lectureIDs) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("lecture_id IN ?", lectureIDs).Delete(&types.Question{}).Error
}
