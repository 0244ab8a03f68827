package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	"github.com/yungbote/lectern-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
)

const (
	mcqReply = `[{"concept":"排序","question":"哪個排序法平均為 O(n log n)？","options":{"A":"氣泡","B":"合併","C":"插入","D":"選擇"},"answer":"B","explanation":"合併排序"},
{"concept":"搜尋","question":"二分搜尋的前提？","options":{"A":"已排序","B":"鏈結串列","C":"雜湊","D":"無"},"answer":"A","explanation":"需要有序"}]`
	tfReply = `[{"concept":"排序","question":"快速排序最壞情況為 O(n^2)。","answer":"True","explanation":"樞紐選擇不佳"}]`
)

// routingLLM answers by call shape: chunk summaries use 400 tokens, the
// synthesis 512, and TF generation temperature 0.5.
type routingLLM struct {
	mu    sync.Mutex
	calls int
	mcq   string
	tf    string
}

func (l *routingLLM) Complete(ctx context.Context, req steps.CompletionRequest) (string, error) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	switch {
	case req.MaxTokens == 400:
		return "本段講解排序與搜尋。", nil
	case req.MaxTokens == 512:
		return "課程重點：排序、搜尋。", nil
	case req.Temperature == 0.5:
		return l.tf, nil
	default:
		return l.mcq, nil
	}
}

type stubTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	paths []string
}

func (s *stubTranscriber) Transcribe(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, path)
	return s.text, s.err
}

var errTranscribe = errors.New("provider unavailable")

type env struct {
	db          *gorm.DB
	dir         string
	users       repos.UserRepo
	courses     repos.CourseRepo
	lectures    repos.LectureRepo
	questions   repos.QuestionRepo
	submissions repos.SubmissionRepo
	runs        repos.GenerationRunRepo
	audio       AudioStore
	llm         *routingLLM
	transcriber *stubTranscriber
	locker      *quizgen.MemoryLocker
	pipeline    *quizgen.Pipeline
	generation  GenerationService
	lecture     LectureService
	course      CourseService
	quiz        QuizService
	report      ReportService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	dir := t.TempDir()

	e := &env{
		db:          db,
		dir:         dir,
		users:       repos.NewUserRepo(db, log),
		courses:     repos.NewCourseRepo(db, log),
		lectures:    repos.NewLectureRepo(db, log),
		questions:   repos.NewQuestionRepo(db, log),
		submissions: repos.NewSubmissionRepo(db, log),
		runs:        repos.NewGenerationRunRepo(db, log),
		llm:         &routingLLM{mcq: mcqReply, tf: tfReply},
		transcriber: &stubTranscriber{text: "今天講排序。接著講搜尋。"},
		locker:      quizgen.NewMemoryLocker(),
	}
	audio, err := NewAudioStore(log, dir, nil)
	if err != nil {
		t.Fatalf("NewAudioStore: %v", err)
	}
	e.audio = audio

	prompts, err := steps.LoadPrompts(log)
	if err != nil {
		t.Fatalf("LoadPrompts: %v", err)
	}
	pipeline, err := quizgen.New(quizgen.Deps{
		Log:         log,
		Transcriber: e.transcriber,
		LLM:         e.llm,
		Prompts:     prompts,
		Locker:      e.locker,
		Config:      quizgen.Config{CallTimeout: 5 * time.Second, TranscribeTimeout: 5 * time.Second},
	})
	if err != nil {
		t.Fatalf("quizgen.New: %v", err)
	}
	e.pipeline = pipeline

	e.generation = NewGenerationService(db, log, e.runs, e.lectures, e.questions, audio, pipeline, GenerationConfig{
		MaxAttempts: 3,
		RetryDelay:  time.Hour,
	})
	e.lecture = NewLectureService(LectureServiceDeps{
		DB:              db,
		Log:             log,
		CourseRepo:      e.courses,
		LectureRepo:     e.lectures,
		QuestionRepo:    e.questions,
		SubmissionRepo:  e.submissions,
		RunRepo:         e.runs,
		Audio:           audio,
		Generation:      e.generation,
		LiveTranscriber: e.transcriber,
	})
	e.course = NewCourseService(db, log, e.courses, e.lectures, e.questions, e.submissions, e.runs, audio)
	e.quiz = NewQuizService(db, log, e.lectures, e.questions, e.submissions)
	e.report = NewReportService(log, e.users, e.submissions, nil)
	return e
}

func asUser(ctx context.Context, u *types.User) context.Context {
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: u.ID, Role: u.Role})
}

func (e *env) lectureByID(t *testing.T, id uuid.UUID) *types.Lecture {
	t.Helper()
	l, err := e.lectures.GetByID(dbctx.Of(context.Background()), id)
	if err != nil || l == nil {
		t.Fatalf("load lecture %s: %+v, %v", id, l, err)
	}
	return l
}

func (e *env) runByID(t *testing.T, id uuid.UUID) *types.GenerationRun {
	t.Helper()
	r, err := e.runs.GetByID(dbctx.Of(context.Background()), id)
	if err != nil || r == nil {
		t.Fatalf("load run %s: %+v, %v", id, r, err)
	}
	return r
}
