package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/lectern-backend/internal/data/db"
	types "github.com/yungbote/lectern-backend/internal/domain"
	"github.com/yungbote/lectern-backend/internal/platform/logger"
)

var (
	logOnce sync.Once
	logg    *logger.Logger
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	logOnce.Do(func() {
		logg = logger.Nop()
	})
	return logg
}

// DB returns a fresh, migrated in-memory SQLite database private to tb.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=0", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		tb.Fatalf("sqlite pool: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate: %v", err)
	}
	return gdb
}

// Tx opens a transaction that is rolled back when the test ends. Callers must
// route every query through it; the pool holds a single connection.
func Tx(tb testing.TB, db *gorm.DB) *gorm.DB {
	tb.Helper()
	tx := db.Begin()
	if tx.Error != nil {
		tb.Fatalf("begin tx: %v", tx.Error)
	}
	tb.Cleanup(func() {
		_ = tx.Rollback().Error
	})
	return tx
}

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, username, role string) *types.User {
	tb.Helper()
	u := &types.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "pw",
		Role:         role,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedCourse(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, date time.Time) *types.Course {
	tb.Helper()
	c := &types.Course{Name: name, Date: date}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed course: %v", err)
	}
	return c
}

func SeedLecture(tb testing.TB, ctx context.Context, tx *gorm.DB, courseID uuid.UUID, title string) *types.Lecture {
	tb.Helper()
	l := &types.Lecture{CourseID: courseID, Title: title, Date: time.Now()}
	if err := tx.WithContext(ctx).Create(l).Error; err != nil {
		tb.Fatalf("seed lecture: %v", err)
	}
	return l
}

func SeedQuestion(tb testing.TB, ctx context.Context, tx *gorm.DB, lectureID uuid.UUID, qType, concept, correct string) *types.Question {
	tb.Helper()
	q := &types.Question{
		LectureID:     lectureID,
		Type:          qType,
		Concept:       concept,
		QuestionText:  "question about " + concept,
		CorrectAnswer: correct,
	}
	if qType == types.QuestionTypeMCQ {
		q.OptionA, q.OptionB, q.OptionC, q.OptionD = "a", "b", "c", "d"
	}
	if err := tx.WithContext(ctx).Create(q).Error; err != nil {
		tb.Fatalf("seed question: %v", err)
	}
	return q
}
