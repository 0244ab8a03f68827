package services

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/data/repos"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

const topN = 5

const (
	suggestionExcellent = "表現非常優異，繼續保持！"
	suggestionGood      = "表現良好，建議複習部分錯題章節以鞏固知識。"
	suggestionPractice  = "請多練習錯誤率高的章節，加強理解。"
	suggestionNoRecords = "目前尚無作答紀錄，請先完成練習題。"
)

type LectureAccuracy struct {
	LectureID uuid.UUID `json:"lecture_id"`
	Title     string    `json:"title"`
	Total     int       `json:"total"`
	Correct   int       `json:"correct"`
	Accuracy  float64   `json:"accuracy"`
}

type MissedQuestion struct {
	QuestionID   uuid.UUID `json:"question_id"`
	QuestionText string    `json:"question_text"`
	Count        int       `json:"count"`
}

type WeakConcept struct {
	Concept string `json:"concept"`
	Count   int    `json:"count"`
}

type ProgressReport struct {
	StudentID    uuid.UUID         `json:"student_id"`
	Username     string            `json:"username,omitempty"`
	Total        int               `json:"total"`
	Correct      int               `json:"correct"`
	Wrong        int               `json:"wrong"`
	Accuracy     float64           `json:"accuracy"`
	Lectures     []LectureAccuracy `json:"lectures"`
	MostMissed   []MissedQuestion  `json:"most_missed"`
	WeakConcepts []WeakConcept     `json:"weak_concepts"`
	Suggestion   string            `json:"suggestion"`
}

type StudentAccuracy struct {
	StudentID uuid.UUID `json:"student_id"`
	Username  string    `json:"username"`
	Total     int       `json:"total"`
	Correct   int       `json:"correct"`
	Accuracy  float64   `json:"accuracy"`
}

type ClassAnalytics struct {
	Total        int               `json:"total"`
	Correct      int               `json:"correct"`
	Accuracy     float64           `json:"accuracy"`
	Lectures     []LectureAccuracy `json:"lectures"`
	Students     []StudentAccuracy `json:"students"`
	WeakConcepts []WeakConcept     `json:"weak_concepts"`
}

// percent returns correct/total as a percentage rounded to two decimals.
func percent(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*100*100) / 100
}

// tally counts by key and remembers first-seen order so ties stay stable.
type tally[K comparable] struct {
	order  []K
	counts map[K]int
}

func newTally[K comparable]() *tally[K] {
	return &tally[K]{counts: map[K]int{}}
}

func (t *tally[K]) add(k K) {
	if _, ok := t.counts[k]; !ok {
		t.order = append(t.order, k)
	}
	t.counts[k]++
}

func (t *tally[K]) top(n int) []K {
	keys := append([]K(nil), t.order...)
	sort.SliceStable(keys, func(i, j int) bool { return t.counts[keys[i]] > t.counts[keys[j]] })
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}

func lectureAccuracies(answers []repos.GradedAnswer) []LectureAccuracy {
	idx := map[uuid.UUID]int{}
	var out []LectureAccuracy
	for _, a := range answers {
		i, ok := idx[a.LectureID]
		if !ok {
			i = len(out)
			idx[a.LectureID] = i
			out = append(out, LectureAccuracy{LectureID: a.LectureID, Title: a.LectureTitle})
		}
		out[i].Total++
		if a.IsCorrect {
			out[i].Correct++
		}
	}
	for i := range out {
		out[i].Accuracy = percent(out[i].Correct, out[i].Total)
	}
	return out
}

func weakConcepts(answers []repos.GradedAnswer) []WeakConcept {
	t := newTally[string]()
	for _, a := range answers {
		if !a.IsCorrect {
			t.add(a.Concept)
		}
	}
	out := []WeakConcept{}
	for _, c := range t.top(topN) {
		out = append(out, WeakConcept{Concept: c, Count: t.counts[c]})
	}
	return out
}

// BuildProgressReport computes one student's report from their graded answers.
func BuildProgressReport(studentID uuid.UUID, answers []repos.GradedAnswer) ProgressReport {
	r := ProgressReport{StudentID: studentID, Total: len(answers)}
	missed := newTally[uuid.UUID]()
	texts := map[uuid.UUID]string{}
	for _, a := range answers {
		if a.IsCorrect {
			r.Correct++
			continue
		}
		missed.add(a.QuestionID)
		texts[a.QuestionID] = a.QuestionText
	}
	r.Wrong = r.Total - r.Correct
	r.Accuracy = percent(r.Correct, r.Total)
	r.Lectures = lectureAccuracies(answers)
	if r.Lectures == nil {
		r.Lectures = []LectureAccuracy{}
	}
	r.MostMissed = []MissedQuestion{}
	for _, id := range missed.top(topN) {
		r.MostMissed = append(r.MostMissed, MissedQuestion{QuestionID: id, QuestionText: texts[id], Count: missed.counts[id]})
	}
	r.WeakConcepts = weakConcepts(answers)
	r.Suggestion = suggestion(r.Total, r.Accuracy, r.Lectures)
	return r
}

func suggestion(total int, accuracy float64, lectures []LectureAccuracy) string {
	switch {
	case total == 0:
		return suggestionNoRecords
	case accuracy >= 90:
		return suggestionExcellent
	case accuracy >= 70:
		return suggestionGood
	}
	if len(lectures) == 0 {
		return suggestionPractice
	}
	weakest := lectures[0]
	for _, l := range lectures[1:] {
		if l.Accuracy < weakest.Accuracy {
			weakest = l
		}
	}
	return fmt.Sprintf("建議加強學習「%s」單元，錯題比例較高。", weakest.Title)
}

// BuildClassAnalytics aggregates every graded answer for the teacher view.
// usernames maps student ids to display names.
func BuildClassAnalytics(answers []repos.GradedAnswer, usernames map[uuid.UUID]string) ClassAnalytics {
	out := ClassAnalytics{Total: len(answers)}
	idx := map[uuid.UUID]int{}
	students := []StudentAccuracy{}
	for _, a := range answers {
		if a.IsCorrect {
			out.Correct++
		}
		i, ok := idx[a.StudentID]
		if !ok {
			i = len(students)
			idx[a.StudentID] = i
			students = append(students, StudentAccuracy{StudentID: a.StudentID, Username: usernames[a.StudentID]})
		}
		students[i].Total++
		if a.IsCorrect {
			students[i].Correct++
		}
	}
	for i := range students {
		students[i].Accuracy = percent(students[i].Correct, students[i].Total)
	}
	sort.SliceStable(students, func(i, j int) bool { return students[i].Accuracy < students[j].Accuracy })

	out.Accuracy = percent(out.Correct, out.Total)
	out.Lectures = lectureAccuracies(answers)
	if out.Lectures == nil {
		out.Lectures = []LectureAccuracy{}
	}
	out.Students = students
	out.WeakConcepts = weakConcepts(answers)
	return out
}

type ReportService interface {
	StudentProgress(ctx context.Context, studentID uuid.UUID) (*ProgressReport, error)
	ClassAnalytics(ctx context.Context) (*ClassAnalytics, error)
	Students(ctx context.Context) ([]*types.User, error)
	ProgressChart(ctx context.Context, studentID uuid.UUID) ([]byte, error)
}

type reportService struct {
	log            *logger.Logger
	userRepo       repos.UserRepo
	submissionRepo repos.SubmissionRepo
	chart          ChartRenderer
}

func NewReportService(log *logger.Logger, userRepo repos.UserRepo, submissionRepo repos.SubmissionRepo, chart ChartRenderer) ReportService {
	return &reportService{
		log:            log.With("service", "ReportService"),
		userRepo:       userRepo,
		submissionRepo: submissionRepo,
		chart:          chart,
	}
}

func (rs *reportService) requireStudent(dbc dbctx.Context, id uuid.UUID) (*types.User, error) {
	user, err := rs.userRepo.GetByID(dbc, id)
	if err != nil {
		return nil, repos.MapError("get user", err)
	}
	if user == nil || user.Role != types.RoleStudent {
		return nil, apierr.NotFound("student_not_found", "student")
	}
	return user, nil
}

func (rs *reportService) StudentProgress(ctx context.Context, studentID uuid.UUID) (*ProgressReport, error) {
	dbc := dbctx.Of(ctx)
	user, err := rs.requireStudent(dbc, studentID)
	if err != nil {
		return nil, err
	}
	answers, err := rs.submissionRepo.ListGraded(dbc, &studentID)
	if err != nil {
		return nil, repos.MapError("list graded answers", err)
	}
	r := BuildProgressReport(studentID, answers)
	r.Username = user.Username
	return &r, nil
}

func (rs *reportService) ClassAnalytics(ctx context.Context) (*ClassAnalytics, error) {
	dbc := dbctx.Of(ctx)
	answers, err := rs.submissionRepo.ListGraded(dbc, nil)
	if err != nil {
		return nil, repos.MapError("list graded answers", err)
	}
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, a := range answers {
		if !seen[a.StudentID] {
			seen[a.StudentID] = true
			ids = append(ids, a.StudentID)
		}
	}
	users, err := rs.userRepo.GetByIDs(dbc, ids)
	if err != nil {
		return nil, repos.MapError("load students", err)
	}
	names := make(map[uuid.UUID]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Username
	}
	a := BuildClassAnalytics(answers, names)
	return &a, nil
}

func (rs *reportService) Students(ctx context.Context) ([]*types.User, error) {
	out, err := rs.userRepo.ListByRole(dbctx.Of(ctx), types.RoleStudent)
	if err != nil {
		return nil, repos.MapError("list students", err)
	}
	return out, nil
}

func (rs *reportService) ProgressChart(ctx context.Context, studentID uuid.UUID) ([]byte, error) {
	if rs.chart == nil {
		return nil, fmt.Errorf("chart renderer not configured")
	}
	r, err := rs.StudentProgress(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return rs.chart.LectureAccuracyPNG(r.Lectures)
}
