package gcp

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// Inline recognition content is capped by the API; larger files go through GCS.
const maxInlineAudioBytes = 10 << 20

type SpeechConfig struct {
	LanguageCode               string
	Model                      string
	UseEnhanced                bool
	EnableAutomaticPunctuation bool
	SampleRateHertz            int
	AudioChannelCount          int
	Encoding                   speechpb.RecognitionConfig_AudioEncoding
}

// Speech transcribes local audio files with Cloud Speech-to-Text.
type Speech interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
	Close() error
}

type recognizeFunc func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error)

type speechService struct {
	log        *logger.Logger
	client     *speech.Client
	recognize  recognizeFunc
	bucket     AudioBucket
	cfg        SpeechConfig
	maxRetries int
	backoff    time.Duration
}

// NewSpeech builds the transcriber. bucket may be nil, in which case files above
// the inline limit are rejected.
func NewSpeech(log *logger.Logger, cfg SpeechConfig, bucket AudioBucket) (Speech, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	c, err := speech.NewClient(context.Background(), ClientOptionsFromEnv()...)
	if err != nil {
		return nil, fmt.Errorf("speech client: %w", err)
	}
	s := newSpeechService(log, cfg, bucket, func(ctx context.Context, req *speechpb.LongRunningRecognizeRequest) (*speechpb.LongRunningRecognizeResponse, error) {
		op, err := c.LongRunningRecognize(ctx, req)
		if err != nil {
			return nil, err
		}
		return op.Wait(ctx)
	})
	s.client = c
	return s, nil
}

func newSpeechService(log *logger.Logger, cfg SpeechConfig, bucket AudioBucket, recognize recognizeFunc) *speechService {
	return &speechService{
		log:        log.With("service", "gcp.Speech"),
		recognize:  recognize,
		bucket:     bucket,
		cfg:        cfg,
		maxRetries: 4,
		backoff:    750 * time.Millisecond,
	}
}

func (s *speechService) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *speechService) Transcribe(ctx context.Context, audioPath string) (string, error) {
	ctx = ctxutil.Default(ctx)
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("audio file %s is empty", filepath.Base(audioPath))
	}

	req := &speechpb.LongRunningRecognizeRequest{
		Config: buildSpeechRecognitionConfig(audioPath, s.cfg),
	}
	if len(audio) <= maxInlineAudioBytes {
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Content{Content: audio}}
	} else {
		if s.bucket == nil {
			return "", fmt.Errorf("audio is %d bytes; files above %d bytes need AUDIO_GCS_BUCKET", len(audio), maxInlineAudioBytes)
		}
		key := "speech-staging/" + uuid.NewString() + filepath.Ext(audioPath)
		if err := s.bucket.Upload(ctx, key, bytes.NewReader(audio)); err != nil {
			return "", fmt.Errorf("stage audio: %w", err)
		}
		defer func() {
			if err := s.bucket.Delete(context.WithoutCancel(ctx), key); err != nil {
				s.log.Warn("staged audio cleanup failed", "key", key, "error", err.Error())
			}
		}()
		req.Audio = &speechpb.RecognitionAudio{AudioSource: &speechpb.RecognitionAudio_Uri{Uri: s.bucket.URI(key)}}
	}

	resp, err := s.retryLR(ctx, func() (*speechpb.LongRunningRecognizeResponse, error) {
		return s.recognize(ctx, req)
	})
	if err != nil {
		return "", fmt.Errorf("speech longrunningrecognize: %w", err)
	}
	text := parseSpeechResponse(resp)
	if text == "" {
		return "", fmt.Errorf("speech returned no transcript for %s", filepath.Base(audioPath))
	}
	return text, nil
}

func buildSpeechRecognitionConfig(audioPath string, cfg SpeechConfig) *speechpb.RecognitionConfig {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "zh-TW"
	}
	enc := cfg.Encoding
	if enc == speechpb.RecognitionConfig_ENCODING_UNSPECIFIED {
		enc = inferSpeechEncoding(audioPath)
	}
	return &speechpb.RecognitionConfig{
		LanguageCode:               cfg.LanguageCode,
		Model:                      cfg.Model,
		UseEnhanced:                cfg.UseEnhanced,
		EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
		Encoding:                   enc,
		SampleRateHertz:            int32(max0(cfg.SampleRateHertz)),
		AudioChannelCount:          int32(max0(cfg.AudioChannelCount)),
	}
}

func inferSpeechEncoding(audioPath string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToLower(filepath.Ext(audioPath)) {
	case ".wav":
		return speechpb.RecognitionConfig_LINEAR16
	case ".flac":
		return speechpb.RecognitionConfig_FLAC
	case ".mp3":
		return speechpb.RecognitionConfig_MP3
	case ".ogg", ".opus":
		return speechpb.RecognitionConfig_OGG_OPUS
	case ".webm":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED
	}
}

// parseSpeechResponse joins the top alternative of every result. Chinese
// transcripts carry their own punctuation, so segments are concatenated
// without separators when they already end a sentence.
func parseSpeechResponse(resp *speechpb.LongRunningRecognizeResponse) string {
	if resp == nil {
		return ""
	}
	var full strings.Builder
	for _, r := range resp.Results {
		if r == nil || len(r.Alternatives) == 0 || r.Alternatives[0] == nil {
			continue
		}
		t := strings.TrimSpace(r.Alternatives[0].Transcript)
		if t == "" {
			continue
		}
		if full.Len() > 0 && !endsWithCJKPunct(full.String()) {
			full.WriteString(" ")
		}
		full.WriteString(t)
	}
	return strings.TrimSpace(full.String())
}

func endsWithCJKPunct(s string) bool {
	return strings.HasSuffix(s, "。") || strings.HasSuffix(s, "！") || strings.HasSuffix(s, "？") || strings.HasSuffix(s, "，")
}

func (s *speechService) retryLR(ctx context.Context, fn func() (*speechpb.LongRunningRecognizeResponse, error)) (*speechpb.LongRunningRecognizeResponse, error) {
	backoff := s.backoff
	var last error
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		resp, err := fn()
		if err == nil {
			return resp, nil
		}
		last = err

		code := status.Code(err)
		if code != codes.Unavailable && code != codes.ResourceExhausted && code != codes.DeadlineExceeded {
			return nil, err
		}
		if attempt == s.maxRetries {
			break
		}
		s.log.Warn("speech request retrying", "attempt", attempt+1, "code", code.String())
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > 10*time.Second {
			backoff = 10 * time.Second
		}
	}
	return nil, last
}

func max0(x int) int {
	if x < 0 {
		return 0
	}
	return x
}
