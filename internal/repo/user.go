package repo

import (
	"context"
	"errors"
	"time"

	"github.com/andriansyah/digistore/internal/apperr"
	"github.com/andriansyah/digistore/internal/models"
	"gorm.io/gorm"
)

type UserRepo struct {
	DB *gorm.DB
	// AdminEmail is the single privileged account. It can never be
	// deleted and is always provisioned with the admin role.
	AdminEmail string
}

func (r *UserRepo) Get(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user not found")
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]models.User, error) {
	var users []models.User
	q := r.DB.WithContext(ctx).Model(&models.User{}).Order("joined_at DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpsertOnLogin provisions the user record on first successful token
// verification and touches last_activity on every later one. Exactly one
// record exists per email. Banned accounts are rejected here, before any
// session is issued.
func (r *UserRepo) UpsertOnLogin(ctx context.Context, uid, email, name string) (*models.User, error) {
	var user models.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err == nil {
		if user.Role == models.RoleBanned {
			return nil, apperr.Forbidden("account suspended")
		}
		updates := map[string]any{"last_activity": time.Now()}
		if name != "" && name != user.Name {
			updates["name"] = name
			user.Name = name
		}
		if uid != "" && uid != user.UID {
			updates["uid"] = uid
			user.UID = uid
		}
		if err := r.DB.WithContext(ctx).Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	isAdmin := email == r.AdminEmail
	role := models.RoleUser
	if isAdmin {
		role = models.RoleAdmin
	}
	if name == "" {
		name = "User"
	}
	now := time.Now()
	user = models.User{
		Email:        email,
		UID:          uid,
		Name:         name,
		Role:         role,
		Verified:     isAdmin,
		JoinedAt:     now,
		LastActivity: now,
	}
	if err := r.DB.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Edit applies profile changes. Email, uid, role and joined_at are protected;
// last_activity is touched on every edit.
func (r *UserRepo) Edit(ctx context.Context, email string, updates map[string]any) error {
	delete(updates, "email")
	delete(updates, "uid")
	delete(updates, "role")
	delete(updates, "joined_at")
	updates["last_activity"] = time.Now()

	res := r.DB.WithContext(ctx).Model(&models.User{}).Where("email = ?", email).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}

func (r *UserRepo) Delete(ctx context.Context, email string) error {
	if email == r.AdminEmail {
		return apperr.Forbidden("cannot delete the primary administrator account")
	}
	res := r.DB.WithContext(ctx).Where("email = ?", email).Delete(&models.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user not found")
	}
	return nil
}
