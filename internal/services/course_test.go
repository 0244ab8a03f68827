package services

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/apierr"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
)

func TestCourseCRUD(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	if _, err := e.course.Create(ctx, CourseInput{Name: "  "}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	c, err := e.course.Create(ctx, CourseInput{Name: " 資料結構 ", Description: "雙週課程"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Name != "資料結構" || c.Date.IsZero() {
		t.Fatalf("unexpected course %+v", c)
	}

	name := "演算法"
	date := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	updated, err := e.course.Update(ctx, c.ID, CourseUpdate{Name: &name, Date: &date})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != name || !updated.Date.Equal(date) || updated.Description != "雙週課程" {
		t.Fatalf("unexpected update %+v", updated)
	}
	empty := ""
	if _, err := e.course.Update(ctx, c.ID, CourseUpdate{Name: &empty}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}

	list, err := e.course.List(ctx)
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
	if _, err := e.course.Get(ctx, uuid.New()); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := e.course.Update(ctx, uuid.New(), CourseUpdate{Name: &name}); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCourseDeleteCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	course := testutil.SeedCourse(t, ctx, e.db, "演算法", time.Now())
	student := testutil.SeedUser(t, ctx, e.db, "amy", types.RoleStudent)

	lecture, _, err := e.lecture.UploadForCourse(ctx, course.ID, UploadInput{
		Title: "第一講", Filename: "a.wav", Audio: strings.NewReader("RIFF"), Counts: DefaultQuizCounts(),
	})
	if err != nil {
		t.Fatalf("UploadForCourse: %v", err)
	}
	q := testutil.SeedQuestion(t, ctx, e.db, lecture.ID, types.QuestionTypeMCQ, "排序", "A")
	if _, err := e.quiz.Submit(asUser(ctx, student), lecture.ID, map[uuid.UUID]string{q.ID: "A"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	got, err := e.course.Get(ctx, course.ID)
	if err != nil || len(got.Lectures) != 1 {
		t.Fatalf("Get = %+v, %v", got, err)
	}

	if err := e.course.Delete(ctx, course.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := e.course.Get(ctx, course.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("course should be gone, got %v", err)
	}
	if l, _ := e.lectures.GetByID(dbctx.Of(ctx), lecture.ID); l != nil {
		t.Fatalf("lecture should be gone")
	}
	if n, _ := e.questions.CountByLecture(dbctx.Of(ctx), lecture.ID); n != 0 {
		t.Fatalf("questions should be gone, got %d", n)
	}
	if subs, _ := e.submissions.ListByStudentLecture(dbctx.Of(ctx), student.ID, lecture.ID); len(subs) != 0 {
		t.Fatalf("submissions should be gone")
	}
	if run, _ := e.runs.GetLatestByLecture(dbctx.Of(ctx), lecture.ID); run != nil {
		t.Fatalf("runs should be gone")
	}
	if _, err := os.Stat(lecture.AudioPath); !os.IsNotExist(err) {
		t.Fatalf("audio file should be removed, stat err %v", err)
	}
	if err := e.course.Delete(ctx, course.ID); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}
