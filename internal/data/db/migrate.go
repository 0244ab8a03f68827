package db

import (
	"gorm.io/gorm"

	types "github.com/yungbote/lectern-backend/internal/domain"
)

// Models lists every table in migration order.
func Models() []any {
	return []any{
		&types.User{},
		&types.Course{},
		&types.Lecture{},
		&types.Question{},
		&types.Submission{},
		&types.GenerationRun{},
	}
}

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
