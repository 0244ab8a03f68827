package classroom

import (
	"time"

	"github.com/google/uuid"
)

type Course struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string    `gorm:"column:name;not null" json:"name"`
	Date        time.Time `gorm:"column:date;not null;index" json:"date"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	Lectures    []Lecture `gorm:"foreignKey:CourseID" json:"lectures,omitempty"`
	CreatedAt   time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Course) TableName() string { return "course" }
