package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos/classroom"
	"github.com/yungbote/lectern-backend/internal/data/repos/jobs"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type UserRepo = classroom.UserRepo
type CourseRepo = classroom.CourseRepo
type LectureRepo = classroom.LectureRepo
type LectureFilter = classroom.LectureFilter
type QuestionRepo = classroom.QuestionRepo
type SubmissionRepo = classroom.SubmissionRepo
type GradedAnswer = classroom.GradedAnswer

type GenerationRunRepo = jobs.GenerationRunRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
	return classroom.NewUserRepo(db, baseLog)
}

func NewCourseRepo(db *gorm.DB, baseLog *logger.Logger) CourseRepo {
	return classroom.NewCourseRepo(db, baseLog)
}

func NewLectureRepo(db *gorm.DB, baseLog *logger.Logger) LectureRepo {
	return classroom.NewLectureRepo(db, baseLog)
}

func NewQuestionRepo(db *gorm.DB, baseLog *logger.Logger) QuestionRepo {
	return classroom.NewQuestionRepo(db, baseLog)
}

func NewSubmissionRepo(db *gorm.DB, baseLog *logger.Logger) SubmissionRepo {
	return classroom.NewSubmissionRepo(db, baseLog)
}

func NewGenerationRunRepo(db *gorm.DB, baseLog *logger.Logger) GenerationRunRepo {
	return jobs.NewGenerationRunRepo(db, baseLog)
}
