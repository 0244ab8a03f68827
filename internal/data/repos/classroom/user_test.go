package classroom

import (
	"context"
	"testing"

	"github.com/yungbote/lectern-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/dbctx"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	repo := NewUserRepo(db, testutil.Logger(t))

	u := &types.User{Username: "amy", Email: "amy@example.com", PasswordHash: "h", Role: types.RoleTeacher}
	if err := repo.Create(dbc, u); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.Create(dbc, &types.User{Username: "bo", PasswordHash: "h", Role: types.RoleStudent}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByID(dbc, u.ID)
	if err != nil || got == nil || got.Username != "amy" {
		t.Fatalf("GetByID: %+v, %v", got, err)
	}
	got, err = repo.GetByUsername(dbc, "amy")
	if err != nil || got == nil || got.ID != u.ID {
		t.Fatalf("GetByUsername: %+v, %v", got, err)
	}
	missing, err := repo.GetByUsername(dbc, "nobody")
	if err != nil || missing != nil {
		t.Fatalf("GetByUsername missing: %+v, %v", missing, err)
	}

	exists, err := repo.UsernameExists(dbc, "bo")
	if err != nil || !exists {
		t.Fatalf("UsernameExists: %v, %v", exists, err)
	}

	students, err := repo.ListByRole(dbc, types.RoleStudent)
	if err != nil || len(students) != 1 || students[0].Username != "bo" {
		t.Fatalf("ListByRole: %+v, %v", students, err)
	}

	if err := repo.Create(dbc, &types.User{Username: "amy", PasswordHash: "h", Role: types.RoleStudent}); err == nil {
		t.Fatalf("duplicate username should fail")
	}
}
