package quizgen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type Stage string

const (
	StageTranscribing   Stage = "transcribing"
	StageSummarizing    Stage = "summarizing"
	StageQuizGenerating Stage = "quiz_generating"
	StageDone           Stage = "done"
	StageFailed         Stage = "failed"
)

// Progress is the coarse completion percentage reported when a stage starts.
func (s Stage) Progress() int {
	switch s {
	case StageTranscribing:
		return 5
	case StageSummarizing:
		return 30
	case StageQuizGenerating:
		return 70
	case StageDone, StageFailed:
		return 100
	default:
		return 0
	}
}

var (
	ErrNoSource        = errors.New("job has neither transcript nor audio")
	ErrEmptyTranscript = errors.New("transcription returned no text")
)

// Job describes one generation run. A non-empty Transcript starts the run at
// summarizing; otherwise AudioPath is transcribed first.
type Job struct {
	LectureID  uuid.UUID
	AudioPath  string
	Transcript string
	NumMCQ     int
	NumTF      int
}

// Sink persists the checkpoints of a run. SaveItems must store the batch
// atomically.
type Sink interface {
	EnterStage(ctx context.Context, stage Stage) error
	SaveTranscript(ctx context.Context, transcript string) error
	SaveSummary(ctx context.Context, summary string) error
	SaveItems(ctx context.Context, items []steps.QuizItem) error
}

// Report summarizes a finished run. A run that reached StageDone may still
// carry step errors: failed chunks, a failed synthesis or empty item batches.
type Report struct {
	Stage           Stage    `json:"stage"`
	FailedAt        Stage    `json:"failed_at,omitempty"`
	TranscriptRunes int      `json:"transcript_runes"`
	Chunks          int      `json:"chunks"`
	FailedChunks    int      `json:"failed_chunks"`
	SummaryFailed   bool     `json:"summary_failed"`
	MCQCreated      int      `json:"mcq_created"`
	MCQAttempts     int      `json:"mcq_attempts"`
	TFCreated       int      `json:"tf_created"`
	StepErrors      []string `json:"step_errors,omitempty"`
}

// Partial reports whether the run finished with degraded output.
func (r Report) Partial() bool {
	return r.Stage == StageDone && (r.FailedChunks > 0 || r.SummaryFailed || len(r.StepErrors) > 0)
}

type Config struct {
	ChunkMin           int
	ChunkMax           int
	SummaryConcurrency int
	CallTimeout        time.Duration
	TranscribeTimeout  time.Duration
	LockTTL            time.Duration
}

func (c Config) withDefaults() Config {
	if c.ChunkMin <= 0 {
		c.ChunkMin = steps.DefaultChunkMin
	}
	if c.ChunkMax <= 0 {
		c.ChunkMax = steps.DefaultChunkMax
	}
	if c.SummaryConcurrency < 1 {
		c.SummaryConcurrency = 1
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = steps.DefaultCallTimeout
	}
	if c.TranscribeTimeout <= 0 {
		c.TranscribeTimeout = 10 * time.Minute
	}
	if c.LockTTL <= 0 {
		c.LockTTL = 45 * time.Minute
	}
	return c
}

type Deps struct {
	Log         *logger.Logger
	Transcriber steps.Transcriber
	LLM         steps.Completer
	Prompts     *steps.Prompts
	Locker      Locker
	Config      Config
}

type Pipeline struct {
	log         *logger.Logger
	transcriber steps.Transcriber
	locker      Locker
	summarizer  *steps.Summarizer
	generator   *steps.Generator
	cfg         Config
}

func New(deps Deps) (*Pipeline, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.LLM == nil {
		return nil, fmt.Errorf("llm client required")
	}
	if deps.Prompts == nil {
		return nil, fmt.Errorf("prompts required")
	}
	if deps.Locker == nil {
		deps.Locker = NewMemoryLocker()
	}
	cfg := deps.Config.withDefaults()
	log := deps.Log.With("module", "quizgen")
	return &Pipeline{
		log:         log,
		transcriber: deps.Transcriber,
		locker:      deps.Locker,
		summarizer: steps.NewSummarizer(log, deps.LLM, deps.Prompts, steps.SummarizerConfig{
			CallTimeout: cfg.CallTimeout,
			Concurrency: cfg.SummaryConcurrency,
		}),
		generator: steps.NewGenerator(log, deps.LLM, deps.Prompts, cfg.CallTimeout),
		cfg:       cfg,
	}, nil
}

// Run drives one job through transcribing -> summarizing -> quiz_generating -> done.
// Only transcription can fail the run on model or provider errors; later steps
// degrade to placeholders and empty batches. Persistence errors and context
// cancellation always fail the run at the current stage. The lecture lock is
// held for the whole run and refreshed every third of LockTTL; ErrLocked is
// returned untouched when it is taken.
func (p *Pipeline) Run(ctx context.Context, job Job, sink Sink) (Report, error) {
	lease, err := p.locker.Acquire(ctx, LockKey(job.LectureID), p.cfg.LockTTL)
	if err != nil {
		return Report{}, err
	}
	log := p.log.With("lecture_id", job.LectureID.String())

	leaseCtx, stopRefresh := context.WithCancel(ctx)
	refreshed := make(chan struct{})
	go func() {
		defer close(refreshed)
		p.refreshLease(leaseCtx, lease, log)
	}()
	defer func() {
		stopRefresh()
		<-refreshed
		lease.Release()
	}()

	r := &run{p: p, log: log, sink: sink, report: Report{}}

	transcript := strings.TrimSpace(job.Transcript)
	if transcript == "" {
		if transcript, err = r.transcribe(ctx, job.AudioPath); err != nil {
			return r.fail(ctx, err)
		}
	}
	r.report.TranscriptRunes = utf8.RuneCountInString(transcript)

	if err := r.enter(ctx, StageSummarizing); err != nil {
		return r.fail(ctx, err)
	}
	summary := r.summarize(ctx, transcript)
	if err := ctx.Err(); err != nil {
		return r.fail(ctx, err)
	}
	if err := sink.SaveSummary(ctx, summary); err != nil {
		return r.fail(ctx, fmt.Errorf("save summary: %w", err))
	}

	if err := r.enter(ctx, StageQuizGenerating); err != nil {
		return r.fail(ctx, err)
	}
	if err := r.generate(ctx, summary, job.NumMCQ, job.NumTF); err != nil {
		return r.fail(ctx, err)
	}

	if err := r.enter(ctx, StageDone); err != nil {
		return r.fail(ctx, err)
	}
	log.Info("quiz generation finished",
		"chunks", r.report.Chunks,
		"failed_chunks", r.report.FailedChunks,
		"summary_failed", r.report.SummaryFailed,
		"mcq_created", r.report.MCQCreated,
		"tf_created", r.report.TFCreated,
	)
	return r.report, nil
}

func (p *Pipeline) refreshLease(ctx context.Context, lease Lease, log *logger.Logger) {
	t := time.NewTicker(p.cfg.LockTTL / 3)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := lease.Refresh(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn("lecture lock refresh failed", "error", err.Error())
				if errors.Is(err, ErrLockLost) {
					return
				}
			}
		}
	}
}

type run struct {
	p      *Pipeline
	log    *logger.Logger
	sink   Sink
	stage  Stage
	report Report
}

func (r *run) enter(ctx context.Context, stage Stage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.stage = stage
	r.report.Stage = stage
	if err := r.sink.EnterStage(ctx, stage); err != nil {
		return fmt.Errorf("enter stage %s: %w", stage, err)
	}
	return nil
}

func (r *run) fail(ctx context.Context, err error) (Report, error) {
	r.report.FailedAt = r.stage
	r.report.Stage = StageFailed
	if serr := r.sink.EnterStage(context.WithoutCancel(ctx), StageFailed); serr != nil {
		r.log.Warn("could not record failed stage", "error", serr.Error())
	}
	r.log.Warn("quiz generation failed", "failed_at", string(r.report.FailedAt), "error", err.Error())
	return r.report, err
}

func (r *run) transcribe(ctx context.Context, audioPath string) (string, error) {
	if err := r.enter(ctx, StageTranscribing); err != nil {
		return "", err
	}
	if strings.TrimSpace(audioPath) == "" {
		return "", &steps.StepError{Step: "transcribe", Kind: steps.KindEmpty, Err: ErrNoSource}
	}
	if r.p.transcriber == nil {
		return "", &steps.StepError{Step: "transcribe", Kind: steps.KindUpstream, Err: errors.New("no transcriber configured")}
	}
	tctx, cancel := context.WithTimeout(ctx, r.p.cfg.TranscribeTimeout)
	text, err := r.p.transcriber.Transcribe(tctx, audioPath)
	cancel()
	if err != nil {
		kind := steps.KindUpstream
		if errors.Is(err, context.DeadlineExceeded) {
			kind = steps.KindTimeout
		}
		return "", &steps.StepError{Step: "transcribe", Kind: kind, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", &steps.StepError{Step: "transcribe", Kind: steps.KindEmpty, Err: ErrEmptyTranscript}
	}
	if err := r.sink.SaveTranscript(ctx, text); err != nil {
		return "", fmt.Errorf("save transcript: %w", err)
	}
	return text, nil
}

func (r *run) summarize(ctx context.Context, transcript string) string {
	chunks := steps.SplitText(transcript, r.p.cfg.ChunkMin, r.p.cfg.ChunkMax)
	r.report.Chunks = len(chunks)

	results := r.p.summarizer.SummarizeAll(ctx, chunks)
	texts := make([]string, len(results))
	for i, res := range results {
		texts[i] = res.Text
		if res.Failed() {
			r.report.FailedChunks++
			r.report.StepErrors = append(r.report.StepErrors, fmt.Sprintf("chunk %d: %v", i+1, res.Err))
		}
	}

	combined := r.p.summarizer.Combine(ctx, texts)
	if combined.Err != nil {
		r.report.SummaryFailed = true
		r.report.StepErrors = append(r.report.StepErrors, combined.Err.Error())
	}
	return combined.Text
}

func (r *run) generate(ctx context.Context, summary string, numMCQ, numTF int) error {
	mcq := r.p.generator.GenerateMCQ(ctx, summary, numMCQ)
	r.report.MCQAttempts = mcq.Attempts
	if mcq.Err != nil {
		r.report.StepErrors = append(r.report.StepErrors, mcq.Err.Error())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(mcq.Items) > 0 {
		if err := r.sink.SaveItems(ctx, mcq.Items); err != nil {
			return fmt.Errorf("save mcq items: %w", err)
		}
		r.report.MCQCreated = len(mcq.Items)
	}

	tf := r.p.generator.GenerateTF(ctx, summary, numTF)
	if tf.Err != nil {
		r.report.StepErrors = append(r.report.StepErrors, tf.Err.Error())
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(tf.Items) > 0 {
		if err := r.sink.SaveItems(ctx, tf.Items); err != nil {
			return fmt.Errorf("save tf items: %w", err)
		}
		r.report.TFCreated = len(tf.Items)
	}
	return nil
}
