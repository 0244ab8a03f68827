package classroom

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID fills a zero primary key before insert. Postgres and SQLite share
// the schema, so ids are generated in Go rather than by a column default.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(tx *gorm.DB) error { assignID(&u.ID); return nil }
func (c *Course) BeforeCreate(tx *gorm.DB) error { assignID(&c.ID); return nil }
func (l *Lecture) BeforeCreate(tx *gorm.DB) error { assignID(&l.ID); return nil }
func (q *Question) BeforeCreate(tx *gorm.DB) error { assignID(&q.ID); return nil }
func (s *Submission) BeforeCreate(tx *gorm.DB) error { assignID(&s.ID); return nil }
func (r *GenerationRun) BeforeCreate(tx *gorm.DB) error { assignID(&r.ID); return nil }
