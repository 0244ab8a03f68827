package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/http"
	httpH "github.com/yungbote/lectern-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lectern-backend/internal/http/middleware"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health  *httpH.HealthHandler
	Auth    *httpH.AuthHandler
	Course  *httpH.CourseHandler
	Lecture *httpH.LectureHandler
	Quiz    *httpH.QuizHandler
	Report  *httpH.ReportHandler
}

func wireHandlers(log *logger.Logger, db *gorm.DB, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(dbPinger(db)),
		Auth:    httpH.NewAuthHandler(services.Auth),
		Course:  httpH.NewCourseHandler(log, services.Course),
		Lecture: httpH.NewLectureHandler(log, services.Lecture, services.Generation),
		Quiz:    httpH.NewQuizHandler(services.Quiz),
		Report:  httpH.NewReportHandler(log, services.Report),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:            log,
		ServiceName:    cfg.Otel.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
		AuthMiddleware: middleware.Auth,
		HealthHandler:  handlers.Health,
		AuthHandler:    handlers.Auth,
		CourseHandler:  handlers.Course,
		LectureHandler: handlers.Lecture,
		QuizHandler:    handlers.Quiz,
		ReportHandler:  handlers.Report,
	})
}

func dbPinger(db *gorm.DB) httpH.Pinger {
	return func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}
}
