package app

import (
	"strings"
	"time"

	"github.com/yungbote/lectern-backend/internal/clients/gcp"
	"github.com/yungbote/lectern-backend/internal/clients/openai"
	"github.com/yungbote/lectern-backend/internal/jobs/worker"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen"
	"github.com/yungbote/lectern-backend/internal/observability"
	"github.com/yungbote/lectern-backend/internal/platform/envutil"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
	"github.com/yungbote/lectern-backend/internal/services"
)

const (
	TranscribeOpenAI = "openai"
	TranscribeGCP    = "gcp"
)

type Config struct {
	Port string

	// SQLitePath selects the SQLite backend when DATABASE_URL is unset.
	SQLitePath string

	Auth   services.AuthConfig
	OpenAI openai.Config

	TranscribeProvider string
	Speech             gcp.SpeechConfig
	AudioBucket        string
	AudioDir           string
	RedisAddr          string
	ChartFont          string
	LiveChunkTimeout   time.Duration

	Pipeline   quizgen.Config
	Generation services.GenerationConfig
	Worker     worker.Config

	CORSOrigins    []string
	MaxUploadBytes int64

	Otel observability.OtelConfig
}

func LoadConfig(log *logger.Logger) Config {
	sqlitePath := ""
	if envutil.String("DATABASE_URL", "", log) == "" {
		sqlitePath = envutil.String("SQLITE_PATH", "", log)
	}
	return Config{
		Port:       envutil.String("PORT", "8000", log),
		SQLitePath: sqlitePath,
		Auth: services.AuthConfig{
			JWTSecret:   envutil.String("JWT_SECRET_KEY", "", log),
			AccessTTL:   envutil.Seconds("ACCESS_TOKEN_TTL", 24*time.Hour, log),
			TeacherCode: envutil.String("TEACHER_SIGNUP_CODE", "", log),
		},
		OpenAI:             openai.ConfigFromEnv(log),
		TranscribeProvider: strings.ToLower(envutil.String("TRANSCRIBE_PROVIDER", TranscribeOpenAI, log)),
		Speech: gcp.SpeechConfig{
			LanguageCode:               envutil.String("GCP_SPEECH_LANGUAGE", "zh-TW", log),
			Model:                      envutil.String("GCP_SPEECH_MODEL", "", log),
			UseEnhanced:                envutil.Bool("GCP_SPEECH_ENHANCED", false, log),
			EnableAutomaticPunctuation: envutil.Bool("GCP_SPEECH_PUNCTUATION", true, log),
			SampleRateHertz:            envutil.Int("GCP_SPEECH_SAMPLE_RATE", 0, log),
			AudioChannelCount:          envutil.Int("GCP_SPEECH_CHANNELS", 0, log),
		},
		AudioBucket:      envutil.String("AUDIO_GCS_BUCKET", "", log),
		AudioDir:         envutil.String("DATA_DIR", "data/audio", log),
		RedisAddr:        envutil.String("REDIS_ADDR", "", log),
		ChartFont:        envutil.String("CHART_FONT", "", log),
		LiveChunkTimeout: envutil.Seconds("LIVE_CHUNK_TIMEOUT_SECONDS", 2*time.Minute, log),
		Pipeline: quizgen.Config{
			ChunkMin:           envutil.Int("CHUNK_MIN_CHARS", 0, log),
			ChunkMax:           envutil.Int("CHUNK_MAX_CHARS", 0, log),
			SummaryConcurrency: envutil.Int("SUMMARY_CONCURRENCY", 1, log),
			CallTimeout:        envutil.Seconds("LLM_CALL_TIMEOUT_SECONDS", 120*time.Second, log),
			TranscribeTimeout:  envutil.Seconds("TRANSCRIBE_TIMEOUT_SECONDS", 600*time.Second, log),
			LockTTL:            envutil.Duration("LECTURE_LOCK_TTL", 45*time.Minute, log),
		},
		Generation: services.GenerationConfig{
			MaxAttempts:    envutil.Int("GENERATION_MAX_ATTEMPTS", 3, log),
			RetryDelay:     envutil.Duration("GENERATION_RETRY_DELAY", 30*time.Second, log),
			StaleRunning:   envutil.Duration("GENERATION_STALE_AFTER", 30*time.Minute, log),
			HeartbeatEvery: envutil.Duration("GENERATION_HEARTBEAT", 30*time.Second, log),
		},
		Worker: worker.Config{
			Concurrency:  envutil.Int("WORKER_CONCURRENCY", 1, log),
			PollInterval: envutil.Duration("WORKER_POLL_INTERVAL", time.Second, log),
		},
		CORSOrigins:    splitList(envutil.String("CORS_ORIGINS", "", log)),
		MaxUploadBytes: int64(envutil.Int("MAX_UPLOAD_MB", 200, log)) << 20,
		Otel: observability.OtelConfig{
			Enabled:     envutil.Bool("OTEL_ENABLED", false, log),
			ServiceName: envutil.String("OTEL_SERVICE_NAME", "lectern", log),
			Environment: envutil.String("APP_ENV", "development", log),
			Version:     envutil.String("APP_VERSION", "dev", log),
			Endpoint:    envutil.String("OTEL_EXPORTER_OTLP_ENDPOINT", "", log),
			Headers:     envutil.String("OTEL_EXPORTER_OTLP_HEADERS", "", log),
			Insecure:    envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", false, log),
			SampleRatio: envutil.Float("OTEL_SAMPLER_RATIO", 0.1, log),
		},
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
