package classroom

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lectern-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
)

func TestCourseRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Of(ctx)
	repo := NewCourseRepo(db, testutil.Logger(t))

	older := &types.Course{Name: "old", Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	newer := &types.Course{Name: "new", Date: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	for _, c := range []*types.Course{older, newer} {
		if err := repo.Create(dbc, c); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	testutil.SeedLecture(t, ctx, db, newer.ID, "L1")

	list, err := repo.List(dbc)
	if err != nil || len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("List should be newest first: %+v, %v", list, err)
	}

	got, err := repo.GetByID(dbc, newer.ID, true)
	if err != nil || got == nil || len(got.Lectures) != 1 {
		t.Fatalf("GetByID with lectures: %+v, %v", got, err)
	}

	if err := repo.UpdateFields(dbc, older.ID, map[string]interface{}{"name": "renamed"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(dbc, older.ID, false)
	if got.Name != "renamed" {
		t.Fatalf("UpdateFields not applied: %+v", got)
	}

	if err := repo.Delete(dbc, older.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := repo.GetByID(dbc, older.ID, false); got != nil {
		t.Fatalf("course should be gone")
	}
}

func TestLectureRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Of(ctx)
	repo := NewLectureRepo(db, testutil.Logger(t))

	course := testutil.SeedCourse(t, ctx, db, "c", time.Now())
	other := testutil.SeedCourse(t, ctx, db, "other", time.Now())
	l1 := testutil.SeedLecture(t, ctx, db, course.ID, "Sorting Basics")
	testutil.SeedLecture(t, ctx, db, course.ID, "Graphs")
	testutil.SeedLecture(t, ctx, db, other.ID, "sorting again")

	found, err := repo.GetByCourseAndTitle(dbc, course.ID, "Sorting Basics")
	if err != nil || found == nil || found.ID != l1.ID {
		t.Fatalf("GetByCourseAndTitle: %+v, %v", found, err)
	}
	if nf, err := repo.GetByCourseAndTitle(dbc, other.ID, "Sorting Basics"); err != nil || nf != nil {
		t.Fatalf("title lookup must be scoped to course: %+v, %v", nf, err)
	}

	list, err := repo.List(dbc, LectureFilter{Title: "SORTING"})
	if err != nil || len(list) != 2 {
		t.Fatalf("List by title: %d, %v", len(list), err)
	}
	list, err = repo.List(dbc, LectureFilter{CourseID: &course.ID})
	if err != nil || len(list) != 2 {
		t.Fatalf("List by course: %d, %v", len(list), err)
	}

	for _, piece := range []string{"第一段", "\n第二段"} {
		ok, err := repo.AppendTranscript(dbc, l1.ID, piece)
		if err != nil || !ok {
			t.Fatalf("AppendTranscript: %v, %v", ok, err)
		}
	}
	got, _ := repo.GetByID(dbc, l1.ID)
	if got.Transcript != "第一段\n第二段" {
		t.Fatalf("unexpected transcript %q", got.Transcript)
	}

	if err := repo.UpdateFields(dbc, l1.ID, map[string]interface{}{"transcript_finalized": true}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	ok, err := repo.AppendTranscript(dbc, l1.ID, "late")
	if err != nil || ok {
		t.Fatalf("append to finalized lecture should not apply: %v, %v", ok, err)
	}

	ids, err := repo.IDsByCourse(dbc, course.ID)
	if err != nil || len(ids) != 2 {
		t.Fatalf("IDsByCourse: %v, %v", ids, err)
	}
	if err := repo.DeleteByIDs(dbc, ids); err != nil {
		t.Fatalf("DeleteByIDs: %v", err)
	}
	if got, _ := repo.GetByID(dbc, l1.ID); got != nil {
		t.Fatalf("lecture should be deleted")
	}
	if got, _ := repo.GetByID(dbc, uuid.Nil); got != nil {
		t.Fatalf("nil id should return nil")
	}
}
