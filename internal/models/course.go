package models

import (
	"time"
)

type Course struct {
	ID          string    `gorm:"type:uuid;primaryKey" json:"id" yaml:"id"`
	Code        string    `gorm:"size:20;not null;index" json:"code" yaml:"code"`
	Name        string    `gorm:"not null" json:"name" yaml:"name"`
	Credits     int       `gorm:"not null" json:"credits" yaml:"credits"`
	Description string    `gorm:"type:text" json:"description,omitempty" yaml:"description"`
	Department  string    `gorm:"size:20;index" json:"department" yaml:"department"`
	Semester    string    `gorm:"size:20" json:"semester" yaml:"semester"`
	Year        int       `json:"year" yaml:"year"`
	CreatedAt   time.Time `json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"-"`
}
