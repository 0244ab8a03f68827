package app

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/jobs/worker"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/services"
)

type Services struct {
	Auth       services.AuthService
	Course     services.CourseService
	Lecture    services.LectureService
	Generation services.GenerationService
	Quiz       services.QuizService
	Report     services.ReportService
	Worker     *worker.Worker
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, r Repos, c Clients) (Services, error) {
	log.Info("Wiring services...")

	audio, err := services.NewAudioStore(log, cfg.AudioDir, c.AudioBucket)
	if err != nil {
		return Services{}, fmt.Errorf("init audio store: %w", err)
	}
	prompts, err := steps.LoadPrompts(log)
	if err != nil {
		return Services{}, fmt.Errorf("load prompts: %w", err)
	}
	pipeline, err := quizgen.New(quizgen.Deps{
		Log:         log,
		Transcriber: c.Transcriber,
		LLM:         c.OpenAI,
		Prompts:     prompts,
		Locker:      c.Locker,
		Config:      cfg.Pipeline,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init quiz pipeline: %w", err)
	}
	chart, err := services.NewChartRenderer(log, cfg.ChartFont)
	if err != nil {
		return Services{}, fmt.Errorf("init chart renderer: %w", err)
	}
	auth, err := services.NewAuthService(log, r.User, cfg.Auth)
	if err != nil {
		return Services{}, fmt.Errorf("init auth service: %w", err)
	}

	generation := services.NewGenerationService(db, log, r.GenerationRun, r.Lecture, r.Question, audio, pipeline, cfg.Generation)
	lecture := services.NewLectureService(services.LectureServiceDeps{
		DB:               db,
		Log:              log,
		CourseRepo:       r.Course,
		LectureRepo:      r.Lecture,
		QuestionRepo:     r.Question,
		SubmissionRepo:   r.Submission,
		RunRepo:          r.GenerationRun,
		Audio:            audio,
		Generation:       generation,
		LiveTranscriber:  c.Transcriber,
		LiveChunkTimeout: cfg.LiveChunkTimeout,
	})

	return Services{
		Auth:       auth,
		Course:     services.NewCourseService(db, log, r.Course, r.Lecture, r.Question, r.Submission, r.GenerationRun, audio),
		Lecture:    lecture,
		Generation: generation,
		Quiz:       services.NewQuizService(db, log, r.Lecture, r.Question, r.Submission),
		Report:     services.NewReportService(log, r.User, r.Submission, chart),
		Worker:     worker.NewWorker(log, generation, cfg.Worker),
	}, nil
}
