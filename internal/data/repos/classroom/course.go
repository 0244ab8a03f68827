package classroom

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type CourseRepo interface {
	Create(dbc dbctx.Context, course *types.Course) error
	GetByID(dbc dbctx.Context, id uuid.UUID, withLectures bool) (*types.Course, error)
	List(dbc dbctx.Context) ([]*types.Course, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	Delete(dbc dbctx.Context, id uuid.UUID) error
}

type courseRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return &courseRepo{db: db, log: baseLog.With("repo", "CourseRepo")}
}

func (r *courseRepo) Create(dbc dbctx.Context, course *types.Course) error {
	return dbc.DB(r.db).Create(course).Error
}

func (r *courseRepo) GetByID(dbc dbctx.Context, id uuid.UUID, withLectures bool) (*types.Course, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	q := dbc.DB(r.db)
	if withLectures {
		q = q.Preload("Lectures", func(db *gorm.DB) *gorm.DB {
			return db.Order("date DESC, created_at DESC")
		})
	}
	var c types.Course
	if err := q.Where("id = ?", id).Limit(1).Find(&c).Error; err != nil {
		return nil, err
	}
	if c.ID == uuid.Nil {
		return nil, nil
	}
	return &c, nil
}

// List returns courses newest first.
func (r *courseRepo) List(dbc dbctx.Context) ([]*types.Course, error) {
	var out []*types.Course
	if err := dbc.DB(r.db).Order("date DESC, created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *courseRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).Model(&types.Course{}).Where("id = ?", id).Updates(updates).Error
}

func (r *courseRepo) Delete(dbc dbctx.Context, id uuid.UUID) error {
	return dbc.DB(r.db).Where("id = ?", id).Delete(&types.Course{}).Error
}
