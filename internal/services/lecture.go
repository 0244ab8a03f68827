package services

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/modules/quizgen/steps"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

type UploadInput struct {
	Title    string
	Date     time.Time
	Filename string
	Audio    io.Reader
	Counts   QuizCounts
}

type LiveChunkInput struct {
	CourseID uuid.UUID
	Title    string
	Filename string
	Audio    io.Reader
}

// LiveChunkResult carries the text of one chunk only; Transcript is empty
// when transcription failed.
type LiveChunkResult struct {
	LectureID  uuid.UUID `json:"lecture_id"`
	Transcript string    `json:"transcript"`
}

type LectureDetail struct {
	Lecture   *types.Lecture       `json:"lecture"`
	Questions []*types.Question    `json:"questions,omitempty"`
	LatestRun *types.GenerationRun `json:"latest_run,omitempty"`
}

type LectureService interface {
	UploadForCourse(ctx context.Context, courseID uuid.UUID, in UploadInput) (*types.Lecture, *types.GenerationRun, error)
	AppendLiveChunk(ctx context.Context, in LiveChunkInput) (LiveChunkResult, error)
	Finalize(ctx context.Context, lectureID uuid.UUID, counts QuizCounts) (*types.GenerationRun, error)
	Get(ctx context.Context, id uuid.UUID) (*LectureDetail, error)
	List(ctx context.Context, filter repos.LectureFilter) ([]*types.Lecture, error)
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*types.Lecture, error)
	UpdateSummary(ctx context.Context, id uuid.UUID, summary string) (*types.Lecture, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type lectureService struct {
	db           *gorm.DB
	log          *logger.Logger
	courseRepo   repos.CourseRepo
	lectureRepo  repos.LectureRepo
	questionRepo repos.QuestionRepo
	runRepo      repos.GenerationRunRepo
	audio        AudioStore
	generation   GenerationService
	live         steps.Transcriber
	chunkTimeout time.Duration
	cascade      *lectureCascade
}

type LectureServiceDeps struct {
	DB             *gorm.DB
	Log            *logger.Logger
	CourseRepo     repos.CourseRepo
	LectureRepo    repos.LectureRepo
	QuestionRepo   repos.QuestionRepo
	SubmissionRepo repos.SubmissionRepo
	RunRepo        repos.GenerationRunRepo
	Audio          AudioStore
	Generation     GenerationService

	// LiveTranscriber handles live chunks; nil leaves chunk text empty.
	LiveTranscriber  steps.Transcriber
	LiveChunkTimeout time.Duration
}

func NewLectureService(d LectureServiceDeps) LectureService {
	timeout := d.LiveChunkTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &lectureService{
		db:           d.DB,
		log:          d.Log.With("service", "LectureService"),
		courseRepo:   d.CourseRepo,
		lectureRepo:  d.LectureRepo,
		questionRepo: d.QuestionRepo,
		runRepo:      d.RunRepo,
		audio:        d.Audio,
		generation:   d.Generation,
		live:         d.LiveTranscriber,
		chunkTimeout: timeout,
		cascade: &lectureCascade{
			lectureRepo:    d.LectureRepo,
			questionRepo:   d.QuestionRepo,
			submissionRepo: d.SubmissionRepo,
			runRepo:        d.RunRepo,
			audio:          d.Audio,
		},
	}
}

func (ls *lectureService) requireCourse(dbc dbctx.Context, courseID uuid.UUID) error {
	course, err := ls.courseRepo.GetByID(dbc, courseID, false)
	if err != nil {
		return repos.MapError("get course", err)
	}
	if course == nil {
		return apierr.NotFound("course_not_found", "course")
	}
	return nil
}

func (ls *lectureService) getLecture(dbc dbctx.Context, id uuid.UUID) (*types.Lecture, error) {
	lecture, err := ls.lectureRepo.GetByID(dbc, id)
	if err != nil {
		return nil, repos.MapError("get lecture", err)
	}
	if lecture == nil {
		return nil, apierr.NotFound("lecture_not_found", "lecture")
	}
	return lecture, nil
}

func (ls *lectureService) UploadForCourse(ctx context.Context, courseID uuid.UUID, in UploadInput) (*types.Lecture, *types.GenerationRun, error) {
	title := strings.TrimSpace(in.Title)
	switch {
	case title == "":
		return nil, nil, apierr.BadRequest("missing_title", "lecture title is required")
	case in.Audio == nil:
		return nil, nil, apierr.BadRequest("missing_audio", "audio file is required")
	}
	if err := in.Counts.Validate(); err != nil {
		return nil, nil, err
	}
	if err := ls.requireCourse(dbctx.Of(ctx), courseID); err != nil {
		return nil, nil, err
	}
	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	lecture := &types.Lecture{ID: uuid.New(), CourseID: courseID, Title: title, Date: date}
	stored, err := ls.audio.Save(ctx, lecture.ID, in.Filename, in.Audio)
	if err != nil {
		return nil, nil, err
	}
	lecture.AudioPath = stored.Path
	lecture.AudioObject = stored.Object

	var run *types.GenerationRun
	err = ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := ls.lectureRepo.Create(dbc, lecture); err != nil {
			return repos.MapError("create lecture", err)
		}
		var err error
		run, err = ls.generation.Enqueue(dbc, lecture.ID, types.RunSourceAudio, in.Counts)
		return err
	})
	if err != nil {
		ls.audio.Remove(context.WithoutCancel(ctx), stored)
		return nil, nil, err
	}
	ls.log.Info("Lecture uploaded", "lecture_id", lecture.ID.String(), "course_id", courseID.String())
	return lecture, run, nil
}

func (ls *lectureService) AppendLiveChunk(ctx context.Context, in LiveChunkInput) (LiveChunkResult, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || in.CourseID == uuid.Nil || in.Audio == nil {
		return LiveChunkResult{}, apierr.BadRequest("missing_fields", "course_id, lecture_title and audio_chunk are required")
	}
	dbc := dbctx.Of(ctx)
	if err := ls.requireCourse(dbc, in.CourseID); err != nil {
		return LiveChunkResult{}, err
	}

	lecture, err := ls.lectureRepo.GetByCourseAndTitle(dbc, in.CourseID, title)
	if err != nil {
		return LiveChunkResult{}, repos.MapError("get lecture", err)
	}
	if lecture == nil {
		lecture = &types.Lecture{CourseID: in.CourseID, Title: title, Date: time.Now().UTC()}
		if err := ls.lectureRepo.Create(dbc, lecture); err != nil {
			return LiveChunkResult{}, repos.MapError("create lecture", err)
		}
		ls.log.Info("Live lecture started", "lecture_id", lecture.ID.String())
	}
	if lecture.TranscriptFinalized {
		return LiveChunkResult{}, apierr.Conflict("transcript_finalized", "lecture transcript is already finalized")
	}

	text := ls.transcribeChunk(ctx, lecture.ID, in.Filename, in.Audio)
	out := LiveChunkResult{LectureID: lecture.ID, Transcript: text}
	if text == "" {
		return out, nil
	}
	ok, err := ls.lectureRepo.AppendTranscript(dbc, lecture.ID, "\n"+text)
	if err != nil {
		return LiveChunkResult{}, repos.MapError("append transcript", err)
	}
	if !ok {
		return LiveChunkResult{}, apierr.Conflict("transcript_finalized", "lecture transcript is already finalized")
	}
	return out, nil
}

// transcribeChunk never fails the request: a chunk that cannot be
// transcribed contributes no text.
func (ls *lectureService) transcribeChunk(ctx context.Context, lectureID uuid.UUID, filename string, audio io.Reader) string {
	if filename == "" {
		filename = "chunk.webm"
	}
	path, cleanup, err := ls.audio.SaveTemp(ctx, filename, audio)
	if err != nil {
		ls.log.Warn("Live chunk not stored", "lecture_id", lectureID.String(), "error", err.Error())
		return ""
	}
	defer cleanup()
	if ls.live == nil {
		ls.log.Warn("Live chunk dropped: no transcriber configured", "lecture_id", lectureID.String())
		return ""
	}
	tctx, cancel := context.WithTimeout(ctx, ls.chunkTimeout)
	defer cancel()
	text, err := ls.live.Transcribe(tctx, path)
	if err != nil {
		ls.log.Warn("Live chunk transcription failed", "lecture_id", lectureID.String(), "error", err.Error())
		return ""
	}
	return strings.TrimSpace(text)
}

func (ls *lectureService) Finalize(ctx context.Context, lectureID uuid.UUID, counts QuizCounts) (*types.GenerationRun, error) {
	if err := counts.Validate(); err != nil {
		return nil, err
	}
	var run *types.GenerationRun
	err := ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		lecture, err := ls.getLecture(dbc, lectureID)
		if err != nil {
			return err
		}
		if strings.TrimSpace(lecture.Transcript) == "" {
			return apierr.NotFound("transcript_not_found", "transcript")
		}
		if err := ls.lectureRepo.UpdateFields(dbc, lectureID, map[string]interface{}{"transcript_finalized": true}); err != nil {
			return repos.MapError("finalize transcript", err)
		}
		run, err = ls.generation.Enqueue(dbc, lectureID, types.RunSourceTranscript, counts)
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (ls *lectureService) Get(ctx context.Context, id uuid.UUID) (*LectureDetail, error) {
	dbc := dbctx.Of(ctx)
	lecture, err := ls.getLecture(dbc, id)
	if err != nil {
		return nil, err
	}
	out := &LectureDetail{Lecture: lecture}
	run, err := ls.runRepo.GetLatestByLecture(dbc, id)
	if err != nil {
		return nil, repos.MapError("latest generation run", err)
	}
	out.LatestRun = run

	// Answers stay hidden from students; they see questions through the quiz.
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.Role == types.RoleTeacher {
		qs, err := ls.questionRepo.ListByLecture(dbc, id)
		if err != nil {
			return nil, repos.MapError("list questions", err)
		}
		out.Questions = qs
	}
	return out, nil
}

func (ls *lectureService) List(ctx context.Context, filter repos.LectureFilter) ([]*types.Lecture, error) {
	out, err := ls.lectureRepo.List(dbctx.Of(ctx), filter)
	if err != nil {
		return nil, repos.MapError("list lectures", err)
	}
	return out, nil
}

func (ls *lectureService) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*types.Lecture, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apierr.BadRequest("missing_title", "lecture title cannot be empty")
	}
	return ls.update(ctx, id, map[string]interface{}{"title": title})
}

func (ls *lectureService) UpdateSummary(ctx context.Context, id uuid.UUID, summary string) (*types.Lecture, error) {
	return ls.update(ctx, id, map[string]interface{}{"summary": strings.TrimSpace(summary)})
}

func (ls *lectureService) update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*types.Lecture, error) {
	dbc := dbctx.Of(ctx)
	if _, err := ls.getLecture(dbc, id); err != nil {
		return nil, err
	}
	if err := ls.lectureRepo.UpdateFields(dbc, id, updates); err != nil {
		return nil, repos.MapError("update lecture", err)
	}
	return ls.getLecture(dbc, id)
}

func (ls *lectureService) Delete(ctx context.Context, id uuid.UUID) error {
	var lecture *types.Lecture
	err := ls.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		lecture, err = ls.getLecture(dbctx.Context{Ctx: ctx, Tx: tx}, id)
		if err != nil {
			return err
		}
		return ls.cascade.deleteRows(ctx, tx, []*types.Lecture{lecture})
	})
	if err != nil {
		return err
	}
	ls.cascade.removeAudio(ctx, []*types.Lecture{lecture})
	ls.log.Info("Lecture deleted", "lecture_id", id.String())
	return nil
}
