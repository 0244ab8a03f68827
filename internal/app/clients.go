package app

import (
	"fmt"

	"github.com/yungbote/lectern-backend/internal/clients/gcp"
	"github.com/yungbote/lectern-backend/internal/clients/openai"
	"github.com/yungbote/lectern-backend/internal/clients/redis"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type Clients struct {
	OpenAI      openai.Client
	Transcriber steps.Transcriber
	AudioBucket gcp.AudioBucket
	Speech      gcp.Speech
	Locker      quizgen.Locker
	redisLocker *redis.Locker
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	// Openai
	openaiClient, err := openai.NewClient(log, cfg.OpenAI)
	if err != nil {
		return Clients{}, fmt.Errorf("init openai client: %w", err)
	}
	out := Clients{OpenAI: openaiClient, Transcriber: openaiClient}

	// Gcs
	if cfg.AudioBucket != "" {
		bucket, err := gcp.NewAudioBucket(log, cfg.AudioBucket)
		if err != nil {
			return Clients{}, fmt.Errorf("init audio bucket: %w", err)
		}
		out.AudioBucket = bucket
	}

	// Gcp speech
	switch cfg.TranscribeProvider {
	case TranscribeOpenAI:
	case TranscribeGCP:
		speech, err := gcp.NewSpeech(log, cfg.Speech, out.AudioBucket)
		if err != nil {
			out.Close()
			return Clients{}, fmt.Errorf("init speech client: %w", err)
		}
		out.Speech = speech
		out.Transcriber = speech
	default:
		out.Close()
		return Clients{}, fmt.Errorf("unknown TRANSCRIBE_PROVIDER %q", cfg.TranscribeProvider)
	}

	// Redis
	out.Locker = quizgen.NewMemoryLocker()
	if cfg.RedisAddr != "" {
		locker, err := redis.NewLocker(log, cfg.RedisAddr, "lectern")
		if err != nil {
			log.Warn("redis lock unavailable, using in-process lock", "error", err)
		} else {
			out.Locker = locker
			out.redisLocker = locker
		}
	}
	return out, nil
}

func (c Clients) Close() {
	if c.redisLocker != nil {
		_ = c.redisLocker.Close()
	}
	if c.Speech != nil {
		_ = c.Speech.Close()
	}
	if c.AudioBucket != nil {
		_ = c.AudioBucket.Close()
	}
}
