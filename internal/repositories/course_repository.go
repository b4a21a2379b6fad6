package repositories

import (
	"context"

	"campuslink/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CourseRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

func NewCourseRepository(db *gorm.DB, retry RetryPolicy) *CourseRepository {
	return &CourseRepository{db: db, retry: retry}
}

// List returns the catalogue ordered by code, optionally for one department.
func (r *CourseRepository) List(ctx context.Context, department string) ([]models.Course, error) {
	var courses []models.Course
	err := r.retry.do(ctx, "ListCourses", func() error {
		q := r.db.WithContext(ctx).Order("code ASC")
		if department != "" {
			q = q.Where("department = ?", department)
		}
		return q.Find(&courses).Error
	})
	return courses, err
}

func (r *CourseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	var course models.Course
	err := r.retry.do(ctx, "GetCourse", func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).Take(&course).Error
	})
	if err != nil {
		return nil, err
	}
	return &course, nil
}

// Upsert writes courses by id, updating rows that already exist.
func (r *CourseRepository) Upsert(ctx context.Context, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	for i := range courses {
		if courses[i].ID == "" {
			courses[i].ID = uuid.NewString()
		}
	}
	return r.retry.do(ctx, "UpsertCourses", func() error {
		return r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).CreateInBatches(courses, 100).Error
	})
}
