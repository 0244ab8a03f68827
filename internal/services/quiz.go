package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/ctxutil"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

// QuizQuestion is a question as shown to a student, without its answer.
type QuizQuestion struct {
	ID           uuid.UUID         `json:"id"`
	Type         string            `json:"type"`
	Concept      string            `json:"concept"`
	QuestionText string            `json:"question_text"`
	Options      map[string]string `json:"options,omitempty"`
}

type QuizView struct {
	LectureID uuid.UUID      `json:"lecture_id"`
	Title     string         `json:"title"`
	Submitted bool           `json:"submitted"`
	Questions []QuizQuestion `json:"questions"`
}

type ResultItem struct {
	QuestionID    uuid.UUID `json:"question_id"`
	Type          string    `json:"type"`
	Concept       string    `json:"concept"`
	QuestionText  string    `json:"question_text"`
	CorrectAnswer string    `json:"correct_answer"`
	Explanation   string    `json:"explanation"`

	// StudentAnswer and IsCorrect are nil for questions without a submission.
	StudentAnswer *string `json:"student_answer"`
	IsCorrect     *bool   `json:"is_correct"`
}

type QuizResult struct {
	LectureID uuid.UUID    `json:"lecture_id"`
	Title     string       `json:"title"`
	Total     int          `json:"total"`
	Correct   int          `json:"correct"`
	Items     []ResultItem `json:"items"`
}

type QuizService interface {
	QuestionsForStudent(ctx context.Context, lectureID uuid.UUID) (*QuizView, error)
	Submit(ctx context.Context, lectureID uuid.UUID, answers map[uuid.UUID]string) (*QuizResult, error)
	Result(ctx context.Context, lectureID uuid.UUID) (*QuizResult, error)
}

type quizService struct {
	db             *gorm.DB
	log            *logger.Logger
	lectureRepo    repos.LectureRepo
	questionRepo   repos.QuestionRepo
	submissionRepo repos.SubmissionRepo
}

func NewQuizService(
	db *gorm.DB,
	log *logger.Logger,
	lectureRepo repos.LectureRepo,
	questionRepo repos.QuestionRepo,
	submissionRepo repos.SubmissionRepo,
) QuizService {
	return &quizService{
		db:             db,
		log:            log.With("service", "QuizService"),
		lectureRepo:    lectureRepo,
		questionRepo:   questionRepo,
		submissionRepo: submissionRepo,
	}
}

func currentStudent(ctx context.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized("unauthenticated", "no authenticated user")
	}
	if rd.Role != types.RoleStudent {
		return uuid.Nil, apierr.Forbidden("students_only", "only students take quizzes")
	}
	return rd.UserID, nil
}

func (qs *quizService) loadLecture(dbc dbctx.Context, lectureID uuid.UUID) (*types.Lecture, []*types.Question, error) {
	lecture, err := qs.lectureRepo.GetByID(dbc, lectureID)
	if err != nil {
		return nil, nil, repos.MapError("get lecture", err)
	}
	if lecture == nil {
		return nil, nil, apierr.NotFound("lecture_not_found", "lecture")
	}
	questions, err := qs.questionRepo.ListByLecture(dbc, lectureID)
	if err != nil {
		return nil, nil, repos.MapError("list questions", err)
	}
	return lecture, questions, nil
}

func (qs *quizService) unanswered(dbc dbctx.Context, studentID, lectureID uuid.UUID, questions []*types.Question) ([]*types.Question, error) {
	subs, err := qs.submissionRepo.ListByStudentLecture(dbc, studentID, lectureID)
	if err != nil {
		return nil, repos.MapError("list submissions", err)
	}
	answered := make(map[uuid.UUID]struct{}, len(subs))
	for _, sub := range subs {
		answered[sub.QuestionID] = struct{}{}
	}
	out := make([]*types.Question, 0, len(questions))
	for _, q := range questions {
		if _, ok := answered[q.ID]; !ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (qs *quizService) QuestionsForStudent(ctx context.Context, lectureID uuid.UUID) (*QuizView, error) {
	dbc := dbctx.Of(ctx)
	lecture, questions, err := qs.loadLecture(dbc, lectureID)
	if err != nil {
		return nil, err
	}
	view := &QuizView{LectureID: lecture.ID, Title: lecture.Title, Questions: make([]QuizQuestion, 0, len(questions))}
	if rd := ctxutil.GetRequestData(ctx); rd != nil && rd.Role == types.RoleStudent {
		pending, err := qs.unanswered(dbc, rd.UserID, lectureID, questions)
		if err != nil {
			return nil, err
		}
		view.Submitted = len(questions) > 0 && len(pending) == 0
	}
	for _, q := range questions {
		item := QuizQuestion{ID: q.ID, Type: q.Type, Concept: q.Concept, QuestionText: q.QuestionText}
		if q.Type == types.QuestionTypeMCQ {
			item.Options = map[string]string{"A": q.OptionA, "B": q.OptionB, "C": q.OptionC, "D": q.OptionD}
		}
		view.Questions = append(view.Questions, item)
	}
	return view, nil
}

// Submit grades the questions the student has not answered yet; questions
// missing from answers are recorded as wrong. A regenerated quiz appends
// questions, so a student who already submitted may submit again for the new
// ones. With nothing left to answer the submit conflicts.
func (qs *quizService) Submit(ctx context.Context, lectureID uuid.UUID, answers map[uuid.UUID]string) (*QuizResult, error) {
	studentID, err := currentStudent(ctx)
	if err != nil {
		return nil, err
	}
	err = qs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		_, questions, err := qs.loadLecture(dbc, lectureID)
		if err != nil {
			return err
		}
		if len(questions) == 0 {
			return apierr.BadRequest("no_questions", "lecture has no quiz yet")
		}
		pending, err := qs.unanswered(dbc, studentID, lectureID, questions)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return apierr.Conflict("already_submitted", "quiz already submitted")
		}
		subs := make([]*types.Submission, 0, len(pending))
		for _, q := range pending {
			answer := types.NormalizeAnswer(q.Type, answers[q.ID])
			subs = append(subs, &types.Submission{
				StudentID:     studentID,
				QuestionID:    q.ID,
				LectureID:     lectureID,
				StudentAnswer: answer,
				IsCorrect:     answer != "" && q.Grade(answer),
			})
		}
		if _, err := qs.submissionRepo.Create(dbc, subs); err != nil {
			if mapped := repos.MapError("create submissions", err); !errors.Is(mapped, apierr.ErrConflict) {
				return mapped
			}
			return apierr.Conflict("already_submitted", "quiz already submitted")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	qs.log.Info("Quiz submitted", "lecture_id", lectureID.String(), "user_id", studentID.String())
	return qs.Result(ctx, lectureID)
}

func (qs *quizService) Result(ctx context.Context, lectureID uuid.UUID) (*QuizResult, error) {
	studentID, err := currentStudent(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Of(ctx)
	lecture, questions, err := qs.loadLecture(dbc, lectureID)
	if err != nil {
		return nil, err
	}
	subs, err := qs.submissionRepo.ListByStudentLecture(dbc, studentID, lectureID)
	if err != nil {
		return nil, repos.MapError("list submissions", err)
	}
	byQuestion := make(map[uuid.UUID]*types.Submission, len(subs))
	for _, s := range subs {
		byQuestion[s.QuestionID] = s
	}

	out := &QuizResult{LectureID: lecture.ID, Title: lecture.Title, Items: make([]ResultItem, 0, len(questions))}
	for _, q := range questions {
		item := ResultItem{
			QuestionID:    q.ID,
			Type:          q.Type,
			Concept:       q.Concept,
			QuestionText:  q.QuestionText,
			CorrectAnswer: q.CorrectAnswer,
			Explanation:   q.Explanation,
		}
		if s, ok := byQuestion[q.ID]; ok {
			answer, correct := s.StudentAnswer, s.IsCorrect
			item.StudentAnswer = &answer
			item.IsCorrect = &correct
			out.Total++
			if correct {
				out.Correct++
			}
		}
		out.Items = append(out.Items, item)
	}
	return out, nil
}
