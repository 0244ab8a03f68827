package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/observability"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

const (
	DefaultNumMCQ = 3
	DefaultNumTF  = 0
	maxQuizItems  = 50
)

// QuizCounts is how many questions of each type a run should produce.
type QuizCounts struct {
	NumMCQ int `json:"num_mcq"`
	NumTF  int `json:"num_tf"`
}

func DefaultQuizCounts() QuizCounts {
	return QuizCounts{NumMCQ: DefaultNumMCQ, NumTF: DefaultNumTF}
}

func (c QuizCounts) Validate() error {
	if c.NumMCQ < 0 || c.NumTF < 0 {
		return apierr.BadRequest("invalid_counts", "question counts must be >= 0")
	}
	if c.NumMCQ > maxQuizItems || c.NumTF > maxQuizItems {
		return apierr.BadRequest("invalid_counts", fmt.Sprintf("question counts must be <= %d", maxQuizItems))
	}
	return nil
}

// ParseQuizCounts reads {"num_mcq": n, "num_tf": n}. Missing keys take their
// default; any malformed or null value resets both counts to the defaults. Numbers may
// arrive as JSON numbers or numeric strings.
func ParseQuizCounts(body []byte) QuizCounts {
	def := DefaultQuizCounts()
	if len(strings.TrimSpace(string(body))) == 0 {
		return def
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return def
	}
	out := def
	for key, dst := range map[string]*int{"num_mcq": &out.NumMCQ, "num_tf": &out.NumTF} {
		v, ok := raw[key]
		if !ok {
			continue
		}
		n, err := countValue(v)
		if err != nil {
			return def
		}
		*dst = n
	}
	return out
}

func countValue(v json.RawMessage) (int, error) {
	if strings.TrimSpace(string(v)) == "null" {
		return 0, errors.New("null count")
	}
	var f float64
	if err := json.Unmarshal(v, &f); err == nil {
		return int(f), nil
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(s))
}

type GenerationConfig struct {
	MaxAttempts    int
	RetryDelay     time.Duration
	StaleRunning   time.Duration
	HeartbeatEvery time.Duration
}

func (c GenerationConfig) withDefaults() GenerationConfig {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 30 * time.Second
	}
	if c.StaleRunning <= 0 {
		c.StaleRunning = 30 * time.Minute
	}
	if c.HeartbeatEvery <= 0 {
		c.HeartbeatEvery = 30 * time.Second
	}
	return c
}

// QuizPipeline is the generation state machine.
type QuizPipeline interface {
	Run(ctx context.Context, job quizgen.Job, sink quizgen.Sink) (quizgen.Report, error)
}

type GenerationService interface {
	// Enqueue adds a queued run for the lecture. dbc lets callers enqueue
	// inside their own transaction.
	Enqueue(dbc dbctx.Context, lectureID uuid.UUID, source string, counts QuizCounts) (*types.GenerationRun, error)
	LatestRun(ctx context.Context, lectureID uuid.UUID) (*types.GenerationRun, error)
	// RunNext claims one runnable run and executes it. It reports whether a
	// run was claimed.
	RunNext(ctx context.Context) (bool, error)
}

type generationService struct {
	db           *gorm.DB
	log          *logger.Logger
	runRepo      repos.GenerationRunRepo
	lectureRepo  repos.LectureRepo
	questionRepo repos.QuestionRepo
	audio        AudioStore
	pipeline     QuizPipeline
	cfg          GenerationConfig
}

func NewGenerationService(
	db *gorm.DB,
	log *logger.Logger,
	runRepo repos.GenerationRunRepo,
	lectureRepo repos.LectureRepo,
	questionRepo repos.QuestionRepo,
	audio AudioStore,
	pipeline QuizPipeline,
	cfg GenerationConfig,
) GenerationService {
	return &generationService{
		db:           db,
		log:          log.With("service", "GenerationService"),
		runRepo:      runRepo,
		lectureRepo:  lectureRepo,
		questionRepo: questionRepo,
		audio:        audio,
		pipeline:     pipeline,
		cfg:          cfg.withDefaults(),
	}
}

func (gs *generationService) Enqueue(dbc dbctx.Context, lectureID uuid.UUID, source string, counts QuizCounts) (*types.GenerationRun, error) {
	if err := counts.Validate(); err != nil {
		return nil, err
	}
	if source != types.RunSourceAudio && source != types.RunSourceTranscript {
		return nil, apierr.BadRequest("invalid_source", "unknown run source "+source)
	}
	active, err := gs.runRepo.HasActiveForLecture(dbc, lectureID)
	if err != nil {
		return nil, repos.MapError("check active runs", err)
	}
	if active {
		return nil, apierr.Conflict("generation_in_progress", "a quiz generation run is already active for this lecture")
	}
	stage := quizgen.StageSummarizing
	if source == types.RunSourceAudio {
		stage = quizgen.StageTranscribing
	}
	run := &types.GenerationRun{
		LectureID: lectureID,
		Source:    source,
		Status:    types.RunStatusQueued,
		Stage:     string(stage),
		NumMCQ:    counts.NumMCQ,
		NumTF:     counts.NumTF,
	}
	if err := gs.runRepo.Create(dbc, run); err != nil {
		return nil, repos.MapError("create generation run", err)
	}
	gs.log.Info("Generation run queued",
		"run_id", run.ID.String(),
		"lecture_id", lectureID.String(),
		"source", source,
		"num_mcq", counts.NumMCQ,
		"num_tf", counts.NumTF,
	)
	return run, nil
}

func (gs *generationService) LatestRun(ctx context.Context, lectureID uuid.UUID) (*types.GenerationRun, error) {
	run, err := gs.runRepo.GetLatestByLecture(dbctx.Of(ctx), lectureID)
	if err != nil {
		return nil, repos.MapError("latest generation run", err)
	}
	if run == nil {
		return nil, apierr.NotFound("run_not_found", "generation run")
	}
	return run, nil
}

func (gs *generationService) RunNext(ctx context.Context) (bool, error) {
	run, err := gs.runRepo.ClaimNextRunnable(dbctx.Of(ctx), gs.cfg.MaxAttempts, gs.cfg.RetryDelay, gs.cfg.StaleRunning)
	if err != nil {
		return false, repos.MapError("claim generation run", err)
	}
	if run == nil {
		return false, nil
	}
	gs.execute(ctx, run)
	return true, nil
}

func (gs *generationService) execute(ctx context.Context, run *types.GenerationRun) {
	ctx, span := observability.Tracer().Start(ctx, "generation.run", trace.WithAttributes(
		attribute.String("run.id", run.ID.String()),
		attribute.String("lecture.id", run.LectureID.String()),
		attribute.String("run.source", run.Source),
		attribute.Int("run.attempt", run.Attempts),
	))
	defer span.End()
	log := gs.log.With("run_id", run.ID.String(), "lecture_id", run.LectureID.String(), "attempt", run.Attempts)
	lecture, err := gs.lectureRepo.GetByID(dbctx.Of(ctx), run.LectureID)
	if err != nil {
		gs.finish(ctx, run, quizgen.Report{}, repos.MapError("load lecture", err))
		return
	}
	if lecture == nil {
		gs.finishTerminal(ctx, run, errors.New("lecture no longer exists"))
		return
	}

	// A transcript saved by an earlier attempt is reused instead of
	// transcribing the audio again.
	job := quizgen.Job{
		LectureID:  lecture.ID,
		Transcript: lecture.Transcript,
		NumMCQ:     run.NumMCQ,
		NumTF:      run.NumTF,
	}
	if strings.TrimSpace(job.Transcript) == "" && run.Source == types.RunSourceAudio {
		path, cleanup, err := gs.audio.Local(ctx, StoredAudio{Path: lecture.AudioPath, Object: lecture.AudioObject})
		if err != nil {
			gs.finishTerminal(ctx, run, err)
			return
		}
		defer cleanup()
		job.AudioPath = path
	}

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go gs.heartbeat(hbCtx, run.ID)

	log.Info("Generation run started", "source", run.Source)
	sink := &runSink{gs: gs, run: run, lectureID: lecture.ID}
	report, err := gs.pipeline.Run(ctx, job, sink)
	stopHeartbeat()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	gs.finish(ctx, run, report, err)
}

func (gs *generationService) heartbeat(ctx context.Context, runID uuid.UUID) {
	t := time.NewTicker(gs.cfg.HeartbeatEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := gs.runRepo.Heartbeat(dbctx.Of(ctx), runID); err != nil && ctx.Err() == nil {
				gs.log.Warn("Generation heartbeat failed", "run_id", runID.String(), "error", err.Error())
			}
		}
	}
}

// isTerminal reports failures a retry cannot fix.
func isTerminal(err error) bool {
	if errors.Is(err, quizgen.ErrNoSource) || errors.Is(err, quizgen.ErrEmptyTranscript) {
		return true
	}
	var se *steps.StepError
	return errors.As(err, &se) && se.Kind == steps.KindEmpty
}

func (gs *generationService) finish(ctx context.Context, run *types.GenerationRun, report quizgen.Report, runErr error) {
	dbc := dbctx.Of(context.WithoutCancel(ctx))
	now := time.Now()
	meta, _ := json.Marshal(report)

	switch {
	case runErr == nil:
		updates := map[string]interface{}{
			"status":   types.RunStatusSucceeded,
			"stage":    string(quizgen.StageDone),
			"progress": quizgen.StageDone.Progress(),
			"error":    "",
			"metadata": datatypes.JSON(meta),
		}
		if err := gs.runRepo.UpdateFields(dbc, run.ID, updates); err != nil {
			gs.log.Error("Record run success failed", "run_id", run.ID.String(), "error", err.Error())
		}
		gs.log.Info("Generation run succeeded", "run_id", run.ID.String(), "partial", report.Partial())
		return

	case errors.Is(runErr, quizgen.ErrLocked), ctx.Err() != nil:
		// Not the run's fault: give the attempt back and let a worker pick it up again.
		updates := map[string]interface{}{
			"status":       types.RunStatusQueued,
			"attempts":     gorm.Expr("CASE WHEN attempts > 0 THEN attempts - 1 ELSE 0 END"),
			"locked_at":    nil,
			"heartbeat_at": nil,
		}
		if err := gs.runRepo.UpdateFields(dbc, run.ID, updates); err != nil {
			gs.log.Error("Requeue run failed", "run_id", run.ID.String(), "error", err.Error())
		}
		gs.log.Info("Generation run requeued", "run_id", run.ID.String(), "reason", runErr.Error())
		return
	}

	if isTerminal(runErr) {
		gs.finishTerminal(ctx, run, runErr)
		return
	}
	updates := map[string]interface{}{
		"status":        types.RunStatusFailed,
		"stage":         string(quizgen.StageFailed),
		"progress":      quizgen.StageFailed.Progress(),
		"error":         runErr.Error(),
		"last_error_at": now,
		"metadata":      datatypes.JSON(meta),
	}
	if err := gs.runRepo.UpdateFields(dbc, run.ID, updates); err != nil {
		gs.log.Error("Record run failure failed", "run_id", run.ID.String(), "error", err.Error())
	}
	gs.log.Warn("Generation run failed", "run_id", run.ID.String(), "attempt", run.Attempts, "error", runErr.Error())
}

// finishTerminal fails the run and exhausts its attempts so it is never retried.
func (gs *generationService) finishTerminal(ctx context.Context, run *types.GenerationRun, runErr error) {
	updates := map[string]interface{}{
		"status":        types.RunStatusFailed,
		"stage":         string(quizgen.StageFailed),
		"progress":      quizgen.StageFailed.Progress(),
		"error":         runErr.Error(),
		"attempts":      gs.cfg.MaxAttempts,
		"last_error_at": time.Now(),
	}
	if err := gs.runRepo.UpdateFields(dbctx.Of(context.WithoutCancel(ctx)), run.ID, updates); err != nil {
		gs.log.Error("Record run failure failed", "run_id", run.ID.String(), "error", err.Error())
	}
	gs.log.Warn("Generation run failed permanently", "run_id", run.ID.String(), "error", runErr.Error())
}

// runSink persists pipeline checkpoints onto the run and its lecture.
type runSink struct {
	gs        *generationService
	run       *types.GenerationRun
	lectureID uuid.UUID
}

func (s *runSink) EnterStage(ctx context.Context, stage quizgen.Stage) error {
	return s.gs.runRepo.UpdateFields(dbctx.Of(ctx), s.run.ID, map[string]interface{}{
		"stage":    string(stage),
		"progress": stage.Progress(),
	})
}

func (s *runSink) SaveTranscript(ctx context.Context, transcript string) error {
	return s.gs.lectureRepo.UpdateFields(dbctx.Of(ctx), s.lectureID, map[string]interface{}{
		"transcript": transcript,
	})
}

func (s *runSink) SaveSummary(ctx context.Context, summary string) error {
	return s.gs.lectureRepo.UpdateFields(dbctx.Of(ctx), s.lectureID, map[string]interface{}{
		"summary": summary,
	})
}

// SaveItems stores one batch of a single question type. A retried run keeps
// the batch an earlier attempt already saved for that type, so students who
// answered it are not left with duplicates.
func (s *runSink) SaveItems(ctx context.Context, items []steps.QuizItem) error {
	if len(items) == 0 {
		return nil
	}
	questions := make([]*types.Question, 0, len(items))
	meta, _ := json.Marshal(map[string]string{"run_id": s.run.ID.String()})
	for _, it := range items {
		questions = append(questions, questionFromItem(s.lectureID, it, meta))
	}
	qtype := questions[0].Type
	return s.gs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		saved, err := s.gs.questionRepo.CountByRun(dbc, s.lectureID, s.run.ID, qtype)
		if err != nil {
			return err
		}
		if saved > 0 {
			s.gs.log.Info("Keeping questions saved by an earlier attempt",
				"run_id", s.run.ID.String(),
				"type", qtype,
				"saved", saved,
			)
			return nil
		}
		if _, err := s.gs.questionRepo.Create(dbc, questions); err != nil {
			return err
		}
		return s.gs.lectureRepo.UpdateFields(dbc, s.lectureID, map[string]interface{}{
			"quiz_generated": true,
		})
	})
}

func questionFromItem(lectureID uuid.UUID, it steps.QuizItem, meta []byte) *types.Question {
	q := &types.Question{
		LectureID:     lectureID,
		Type:          it.Type,
		Concept:       it.Concept,
		QuestionText:  it.Question,
		CorrectAnswer: it.Answer,
		Explanation:   it.Explanation,
		Metadata:      datatypes.JSON(meta),
	}
	if it.Type == steps.QuestionTypeMCQ {
		q.OptionA = it.Options["A"]
		q.OptionB = it.Options["B"]
		q.OptionC = it.Options["C"]
		q.OptionD = it.Options["D"]
	}
	return q
}
