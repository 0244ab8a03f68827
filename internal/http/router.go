package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	types "github.com/yungbote/lectern-backend/internal/domain"
	httpH "github.com/yungbote/lectern-backend/internal/http/handlers"
	httpMW "github.com/yungbote/lectern-backend/internal/http/middleware"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	ServiceName    string
	CORSOrigins    []string
	MaxUploadBytes int64

	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler  *httpH.HealthHandler
	AuthHandler    *httpH.AuthHandler
	CourseHandler  *httpH.CourseHandler
	LectureHandler *httpH.LectureHandler
	QuizHandler    *httpH.QuizHandler
	ReportHandler  *httpH.ReportHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "lectern"
	}
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.Correlate())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS(cfg.CORSOrigins))
	if cfg.MaxUploadBytes > 0 {
		r.Use(httpMW.MaxBodyBytes(cfg.MaxUploadBytes))
	}

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
		}
	}

	protected := api.Group("/")
	teacher := func(h gin.HandlerFunc) []gin.HandlerFunc { return []gin.HandlerFunc{h} }
	if cfg.AuthMiddleware != nil {
		protected.Use(cfg.AuthMiddleware.RequireAuth())
		requireTeacher := cfg.AuthMiddleware.RequireRole(types.RoleTeacher)
		teacher = func(h gin.HandlerFunc) []gin.HandlerFunc { return []gin.HandlerFunc{requireTeacher, h} }
	}
	{
		if cfg.AuthHandler != nil {
			protected.GET("/me", cfg.AuthHandler.Me)
		}

		// Courses
		if h := cfg.CourseHandler; h != nil {
			protected.GET("/courses", h.List)
			protected.GET("/courses/:id", h.Get)
			protected.POST("/courses", teacher(h.Create)...)
			protected.PATCH("/courses/:id", teacher(h.Update)...)
			protected.DELETE("/courses/:id", teacher(h.Delete)...)
		}

		// Lectures
		if h := cfg.LectureHandler; h != nil {
			protected.GET("/lectures", h.List)
			protected.GET("/lectures/:id", h.Get)
			protected.GET("/lectures/:id/runs/latest", h.LatestRun)
			protected.POST("/courses/:id/lectures", teacher(h.Upload)...)
			protected.POST("/lectures/live-chunk", teacher(h.LiveChunk)...)
			protected.POST("/lectures/:id/finalize", teacher(h.Finalize)...)
			protected.PATCH("/lectures/:id/title", teacher(h.UpdateTitle)...)
			protected.PATCH("/lectures/:id/summary", teacher(h.UpdateSummary)...)
			protected.DELETE("/lectures/:id", teacher(h.Delete)...)
		}

		// Quiz
		if h := cfg.QuizHandler; h != nil {
			protected.GET("/lectures/:id/quiz", h.Get)
			protected.POST("/lectures/:id/quiz", h.Submit)
			protected.GET("/lectures/:id/result", h.Result)
		}

		// Reports
		if h := cfg.ReportHandler; h != nil {
			protected.GET("/me/report", h.MyReport)
			protected.GET("/me/report/chart.png", h.MyChart)
			protected.GET("/students", teacher(h.Students)...)
			protected.GET("/students/:id/report", teacher(h.StudentReport)...)
			protected.GET("/analytics", teacher(h.Analytics)...)
		}
	}

	return r
}
