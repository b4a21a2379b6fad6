package repositories

import (
	"context"
	"strings"

	"campuslink/internal/apperror"
	"campuslink/internal/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type UserRepository struct {
	db    *gorm.DB
	retry RetryPolicy
}

func NewUserRepository(db *gorm.DB, retry RetryPolicy) *UserRepository {
	return &UserRepository{db: db, retry: retry}
}

// Create inserts a user. A taken email is reported as invalid input.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	err := r.retry.do(ctx, "CreateUser", func() error {
		err := r.db.WithContext(ctx).Create(user).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errors.Wrap(apperror.ErrInvalidInput, "email already registered")
		}
		return err
	})
	return err
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := r.retry.do(ctx, "GetUserByID", func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.retry.do(ctx, "GetUserByEmail", func() error {
		return r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&user).Error
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) UpdateProgram(ctx context.Context, userID string, program models.ProgramID) error {
	return r.retry.do(ctx, "UpdateProgram", func() error {
		res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("program", program)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// Delete removes a user. Votes, posts and plan rows go with it through cascading keys.
func (r *UserRepository) Delete(ctx context.Context, userID string) error {
	return r.retry.do(ctx, "DeleteUser", func() error {
		return r.db.WithContext(ctx).Where("id = ?", userID).Delete(&models.User{}).Error
	})
}
