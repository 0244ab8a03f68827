package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/platform/envutil"
	"github.com/yungbote/lectern-backend/internal/platform/httpx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// Client is the OpenAI API surface used by the quiz pipeline.
type Client interface {
	steps.Completer
	steps.Transcriber
}

type Config struct {
	APIKey          string
	BaseURL         string
	Model           string
	TranscribeModel string
	Language        string
	Timeout         time.Duration
	MaxRetries      int
}

// ConfigFromEnv reads OPENAI_* variables. Validation happens in NewClient.
func ConfigFromEnv(log *logger.Logger) Config {
	return Config{
		APIKey:          strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		BaseURL:         envutil.String("OPENAI_BASE_URL", "https://api.openai.com", log),
		Model:           envutil.String("OPENAI_MODEL", "gpt-4o-mini", log),
		TranscribeModel: envutil.String("OPENAI_TRANSCRIBE_MODEL", "whisper-1", log),
		Language:        envutil.String("TRANSCRIBE_LANGUAGE", "zh", log),
		Timeout:         envutil.Seconds("OPENAI_TIMEOUT_SECONDS", 180*time.Second, log),
		MaxRetries:      envutil.Int("OPENAI_MAX_RETRIES", 4, log),
	}
}

var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")

type client struct {
	log             *logger.Logger
	baseURL         string
	apiKey          string
	model           string
	transcribeModel string
	language        string
	httpClient      *http.Client
	maxRetries      int
	backoff         time.Duration
}

func NewClient(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" || strings.EqualFold(key, "EMPTY") {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	transcribeModel := strings.TrimSpace(cfg.TranscribeModel)
	if transcribeModel == "" {
		transcribeModel = "whisper-1"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &client{
		log:             log.With("service", "OpenAIClient"),
		baseURL:         baseURL,
		apiKey:          key,
		model:           model,
		transcribeModel: transcribeModel,
		language:        strings.TrimSpace(cfg.Language),
		httpClient:      &http.Client{Timeout: timeout},
		maxRetries:      maxRetries,
		backoff:         time.Second,
	}, nil
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// request builds a fresh *http.Request for every attempt so bodies can be replayed.
type request func(ctx context.Context) (*http.Request, error)

func (c *client) doOnce(ctx context.Context, build request) (*http.Response, []byte, error) {
	req, err := build(ctx)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &openAIHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, path string, build request, out any) error {
	backoff := c.backoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, build)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("openai decode error: %w; raw=%s", uErr, string(raw))
			}
			return nil
		}

		if !httpx.IsRetryableError(err) || attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return err
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) jsonRequest(path string, body any) (request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, nil
}

// -------------------- Chat completions --------------------

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) Complete(ctx context.Context, in steps.CompletionRequest) (string, error) {
	msgs := make([]chatMessage, 0, 2)
	if strings.TrimSpace(in.System) != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: in.System})
	}
	msgs = append(msgs, chatMessage{Role: "user", Content: in.User})

	build, err := c.jsonRequest("/v1/chat/completions", chatRequest{
		Model:       c.model,
		Messages:    msgs,
		Temperature: in.Temperature,
		MaxTokens:   in.MaxTokens,
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := c.do(ctx, "/v1/chat/completions", build, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", steps.ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// -------------------- Audio transcription --------------------

type transcriptionResponse struct {
	Text string `json:"text"`
}

func (c *client) Transcribe(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return "", fmt.Errorf("audio file %s is empty", filepath.Base(audioPath))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fields := map[string]string{"model": c.transcribeModel, "response_format": "json"}
	if c.language != "" {
		fields["language"] = c.language
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return "", err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	payload := body.Bytes()
	contentType := mw.FormDataContentType()

	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/audio/transcriptions", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	}

	var resp transcriptionResponse
	if err := c.do(ctx, "/v1/audio/transcriptions", build, &resp); err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", steps.ErrEmptyCompletion
	}
	c.log.Debug("Transcription finished", "file", filepath.Base(audioPath), "chars", len([]rune(text)))
	return text, nil
}
