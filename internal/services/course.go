package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type CourseInput struct {
	Name        string
	Date        time.Time
	Description string
}

// CourseUpdate applies only the non-nil fields.
type CourseUpdate struct {
	Name        *string
	Date        *time.Time
	Description *string
}

type CourseService interface {
	Create(ctx context.Context, in CourseInput) (*types.Course, error)
	List(ctx context.Context) ([]*types.Course, error)
	Get(ctx context.Context, id uuid.UUID) (*types.Course, error)
	Update(ctx context.Context, id uuid.UUID, in CourseUpdate) (*types.Course, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type courseService struct {
	db         *gorm.DB
	log        *logger.Logger
	courseRepo repos.CourseRepo
	cascade    *lectureCascade
}

func NewCourseService(
	db *gorm.DB,
	log *logger.Logger,
	courseRepo repos.CourseRepo,
	lectureRepo repos.LectureRepo,
	questionRepo repos.QuestionRepo,
	submissionRepo repos.SubmissionRepo,
	runRepo repos.GenerationRunRepo,
	audio AudioStore,
) CourseService {
	return &courseService{
		db:         db,
		log:        log.With("service", "CourseService"),
		courseRepo: courseRepo,
		cascade: &lectureCascade{
			lectureRepo:    lectureRepo,
			questionRepo:   questionRepo,
			submissionRepo: submissionRepo,
			runRepo:        runRepo,
			audio:          audio,
		},
	}
}

func (cs *courseService) Create(ctx context.Context, in CourseInput) (*types.Course, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, apierr.BadRequest("missing_name", "course name is required")
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	course := &types.Course{Name: name, Date: date, Description: strings.TrimSpace(in.Description)}
	if err := cs.courseRepo.Create(dbctx.Of(ctx), course); err != nil {
		return nil, repos.MapError("create course", err)
	}
	cs.log.Info("Course created", "course_id", course.ID.String())
	return course, nil
}

func (cs *courseService) List(ctx context.Context) ([]*types.Course, error) {
	out, err := cs.courseRepo.List(dbctx.Of(ctx))
	if err != nil {
		return nil, repos.MapError("list courses", err)
	}
	return out, nil
}

func (cs *courseService) Get(ctx context.Context, id uuid.UUID) (*types.Course, error) {
	course, err := cs.courseRepo.GetByID(dbctx.Of(ctx), id, true)
	if err != nil {
		return nil, repos.MapError("get course", err)
	}
	if course == nil {
		return nil, apierr.NotFound("course_not_found", "course")
	}
	return course, nil
}

func (cs *courseService) Update(ctx context.Context, id uuid.UUID, in CourseUpdate) (*types.Course, error) {
	dbc := dbctx.Of(ctx)
	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, apierr.BadRequest("missing_name", "course name cannot be empty")
		}
		updates["name"] = name
	}
	if in.Date != nil && !in.Date.IsZero() {
		updates["date"] = *in.Date
	}
	if in.Description != nil {
		updates["description"] = strings.TrimSpace(*in.Description)
	}

	existing, err := cs.courseRepo.GetByID(dbc, id, false)
	if err != nil {
		return nil, repos.MapError("get course", err)
	}
	if existing == nil {
		return nil, apierr.NotFound("course_not_found", "course")
	}
	if err := cs.courseRepo.UpdateFields(dbc, id, updates); err != nil {
		return nil, repos.MapError("update course", err)
	}
	return cs.Get(ctx, id)
}

func (cs *courseService) Delete(ctx context.Context, id uuid.UUID) error {
	var lectures []*types.Lecture
	err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		course, err := cs.courseRepo.GetByID(dbc, id, true)
		if err != nil {
			return repos.MapError("get course", err)
		}
		if course == nil {
			return apierr.NotFound("course_not_found", "course")
		}
		for i := range course.Lectures {
			lectures = append(lectures, &course.Lectures[i])
		}
		if err := cs.cascade.deleteRows(ctx, tx, lectures); err != nil {
			return err
		}
		if err := cs.courseRepo.Delete(dbc, id); err != nil {
			return repos.MapError("delete course", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	cs.cascade.removeAudio(ctx, lectures)
	cs.log.Info("Course deleted", "course_id", id.String(), "lectures", len(lectures))
	return nil
}
