package classroom

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Username     string    `gorm:"column:username;not null;uniqueIndex" json:"username"`
	Email        string    `gorm:"column:email;not null;default:''" json:"email"`
	PasswordHash string    `gorm:"column:password_hash;not null" json:"-"`
	Role         string    `gorm:"column:role;not null;index" json:"role"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (User) TableName() string { return "user" }

func (u *User) IsTeacher() bool { return u != nil && u.Role == RoleTeacher }

func ValidRole(role string) bool { return role == RoleTeacher || role == RoleStudent }
