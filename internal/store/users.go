package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
)

// Identity is what an access token tells us about the caller.
type Identity struct {
	Subject string
	Email   string
	Name    string
	Role    models.UserRole
	// RoleClaimed is false when the token carried no role claim; the stored role is
	// then left alone instead of being reset to "user".
	RoleClaimed bool
}

// SyncUser finds the user for an identity, creating the row on first visit and
// updating the stored role when the token says it changed.
func (s *Store) SyncUser(ctx context.Context, id Identity) (models.User, error) {
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("subject = ?", id.Subject).First(&user).Error
	switch {
	case err == nil:
		if id.RoleClaimed && user.Role != id.Role {
			if err := db.Model(&user).Update("role", id.Role).Error; err != nil {
				return models.User{}, fmt.Errorf("sync role: %w", err)
			}
			user.Role = id.Role
		}
		return user, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return models.User{}, fmt.Errorf("load user: %w", err)
	}

	user = models.User{
		Subject:     id.Subject,
		DisplayName: id.Name,
		Email:       id.Email,
		Role:        id.Role,
	}
	if err := db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Two first requests raced; the other one created the row.
			if err := db.Where("subject = ?", id.Subject).First(&user).Error; err != nil {
				return models.User{}, fmt.Errorf("load user: %w", err)
			}
			return user, nil
		}
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
