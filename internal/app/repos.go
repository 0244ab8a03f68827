package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type Repos struct {
	User          repos.UserRepo
	Course        repos.CourseRepo
	Lecture       repos.LectureRepo
	Question      repos.QuestionRepo
	Submission    repos.SubmissionRepo
	GenerationRun repos.GenerationRunRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:          repos.NewUserRepo(db, log),
		Course:        repos.NewCourseRepo(db, log),
		Lecture:       repos.NewLectureRepo(db, log),
		Question:      repos.NewQuestionRepo(db, log),
		Submission:    repos.NewSubmissionRepo(db, log),
		GenerationRun: repos.NewGenerationRunRepo(db, log),
	}
}
