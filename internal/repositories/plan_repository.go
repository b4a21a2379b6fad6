package repositories

import (
	"context"

	"campuslink/internal/models"
	"campuslink/internal/services"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanRepository stores course assignments and special requirement rows.
type PlanRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

func NewPlanRepository(db *gorm.DB, retry RetryPolicy) *PlanRepository {
	return &PlanRepository{db: db, retry: retry}
}

func (r *PlanRepository) ListCourseAssignments(ctx context.Context, userID string) ([]models.CourseAssignment, error) {
	var items []models.CourseAssignment
	err := r.retry.do(ctx, "ListCourseAssignments", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ?", userID).
			Order("created_at ASC").
			Find(&items).Error
	})
	return items, err
}

// UpsertCourseAssignment inserts the row or moves the existing (user, item key) row.
func (r *PlanRepository) UpsertCourseAssignment(ctx context.Context, a *models.CourseAssignment) error {
	return r.retry.do(ctx, "UpsertCourseAssignment", func() error {
		return r.db.WithContext(ctx).Omit("User", "Course").Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"course_id", "category", "credits", "kind", "updated_at"}),
		}).Create(a).Error
	})
}

func (r *PlanRepository) DeleteCourseAssignment(ctx context.Context, userID, itemKey string) error {
	return r.retry.do(ctx, "DeleteCourseAssignment", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND item_key = ?", userID, itemKey).
			Delete(&models.CourseAssignment{}).Error
	})
}

func (r *PlanRepository) DeleteSyntheticAssignments(ctx context.Context, userID string, kinds ...models.SyntheticKind) error {
	if len(kinds) == 0 {
		return nil
	}
	return r.retry.do(ctx, "DeleteSyntheticAssignments", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND kind IN ?", userID, kinds).
			Delete(&models.CourseAssignment{}).Error
	})
}

func (r *PlanRepository) ListSpecialRequirements(ctx context.Context, userID string) ([]models.SpecialRequirement, error) {
	var rules []models.SpecialRequirement
	err := r.retry.do(ctx, "ListSpecialRequirements", func() error {
		return r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rules).Error
	})
	return rules, err
}

// SaveSpecialRequirement deletes the user's row of the same type and inserts rule.
func (r *PlanRepository) SaveSpecialRequirement(ctx context.Context, rule *models.SpecialRequirement) error {
	return r.retry.do(ctx, "SaveSpecialRequirement", func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("user_id = ? AND requirement_type = ?", rule.UserID, rule.RequirementType).
				Delete(&models.SpecialRequirement{}).Error; err != nil {
				return err
			}
			rule.ID = 0
			return tx.Omit("User").Create(rule).Error
		})
	})
}

func (r *PlanRepository) DeleteSpecialRequirement(ctx context.Context, userID string, t models.RequirementType) error {
	return r.retry.do(ctx, "DeleteSpecialRequirement", func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND requirement_type = ?", userID, t).
			Delete(&models.SpecialRequirement{}).Error
	})
}

var _ services.PlanStore = (*PlanRepository)(nil)
