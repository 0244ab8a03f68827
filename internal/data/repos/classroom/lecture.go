package classroom

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type LectureFilter struct {
	CourseID *uuid.UUID

	// Title matches case-insensitively anywhere in the title.
	Title string
}

type LectureRepo interface {
	Create(dbc dbctx.Context, lecture *types.Lecture) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lecture, error)
	GetByCourseAndTitle(dbc dbctx.Context, courseID uuid.UUID, title string) (*types.Lecture, error)
	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lecture, error)
	List(dbc dbctx.Context, filter LectureFilter) ([]*types.Lecture, error)
	IDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	AppendTranscript(dbc dbctx.Context, id uuid.UUID, piece string) (bool, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error
}

type lectureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLectureRepo(db *gorm.DB, baseLog *logger.Logger) LectureRepo {
	return &lectureRepo{db: db, log: baseLog.With("repo", "LectureRepo")}
}

func (r *lectureRepo) Create(dbc dbctx.Context, lecture *types.Lecture) error {
	return dbc.DB(r.db).Create(lecture).Error
}

func (r *lectureRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Lecture, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var l types.Lecture
	if err := dbc.DB(r.db).Where("id = ?", id).Limit(1).Find(&l).Error; err != nil {
		return nil, err
	}
	if l.ID == uuid.Nil {
		return nil, nil
	}
	return &l, nil
}

func (r *lectureRepo) GetByCourseAndTitle(dbc dbctx.Context, courseID uuid.UUID, title string) (*types.Lecture, error) {
	var l types.Lecture
	err := dbc.DB(r.db).
		Where("course_id = ? AND title = ?", courseID, title).
		Order("created_at ASC").
		Limit(1).
		Find(&l).Error
	if err != nil {
		return nil, err
	}
	if l.ID == uuid.Nil {
		return nil, nil
	}
	return &l, nil
}

func (r *lectureRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*types.Lecture, error) {
	var out []*types.Lecture
	if len(ids) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lectureRepo) List(dbc dbctx.Context, filter LectureFilter) ([]*types.Lecture, error) {
	q := dbc.DB(r.db).Model(&types.Lecture{})
	if filter.CourseID != nil && *filter.CourseID != uuid.Nil {
		q = q.Where("course_id = ?", *filter.CourseID)
	}
	if t := strings.TrimSpace(filter.Title); t != "" {
		q = q.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(t)+"%")
	}
	var out []*types.Lecture
	if err := q.Order("date DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *lectureRepo) IDsByCourse(dbc dbctx.Context, courseID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := dbc.DB(r.db).Model(&types.Lecture{}).Where("course_id = ?", courseID).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *lectureRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).Model(&types.Lecture{}).Where("id = ?", id).Updates(updates).Error
}

// AppendTranscript concatenates piece onto the stored transcript in one
// statement, skipping finalized lectures. It reports whether a row changed.
func (r *lectureRepo) AppendTranscript(dbc dbctx.Context, id uuid.UUID, piece string) (bool, error) {
	res := dbc.DB(r.db).Model(&types.Lecture{}).
		Where("id = ? AND transcript_finalized = ?", id, false).
		Updates(map[string]interface{}{
			"transcript": gorm.Expr("COALESCE(transcript, '') || ?", piece),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *lectureRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return dbc.DB(r.db).Where("id IN ?", ids).Delete(&types.Lecture{}).Error
}
