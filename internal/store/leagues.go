package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm/clause"

	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/models"
	"github.com/Ottawa-Fun-Sports-League/ofsl-web-sub004/internal/registration"
)

// LeagueFilter narrows ListLeagues. Empty fields match everything.
type LeagueFilter struct {
	Type registration.LeagueType
	Mode registration.RegistrationMode
}

// CreateLeague inserts a league and fills in its generated ID and timestamps.
func (s *Store) CreateLeague(ctx context.Context, league *models.League) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(league).Error; err != nil {
		return fmt.Errorf("create league: %w", err)
	}
	return nil
}

// GetLeague loads a league with its creator.
func (s *Store) GetLeague(ctx context.Context, id uuid.UUID) (models.League, error) {
	var league models.League
	if err := s.db.WithContext(ctx).Preload("Creator").First(&league, "id = ?", id).Error; err != nil {
		return models.League{}, notFound(err, "league")
	}
	return league, nil
}

// ListLeagues returns leagues ordered by name.
func (s *Store) ListLeagues(ctx context.Context, filter LeagueFilter) ([]models.League, error) {
	query := s.db.WithContext(ctx).Preload("Creator").Order("name ASC")
	if filter.Type != "" {
		query = query.Where("league_type = ?", filter.Type)
	}
	if filter.Mode != "" {
		query = query.Where("registration_mode = ?", filter.Mode)
	}

	var leagues []models.League
	if err := query.Find(&leagues).Error; err != nil {
		return nil, fmt.Errorf("list leagues: %w", err)
	}
	return leagues, nil
}

// UpdateLeague saves every column of an already-loaded league.
func (s *Store) UpdateLeague(ctx context.Context, league *models.League) error {
	res := s.db.WithContext(ctx).Omit(clause.Associations).Save(league)
	if res.Error != nil {
		return fmt.Errorf("update league: %w", res.Error)
	}
	return nil
}

// DeleteLeague removes a league; its registrations and payments go with it (ON DELETE CASCADE).
func (s *Store) DeleteLeague(ctx context.Context, id uuid.UUID) error {
	res := s.db.WithContext(ctx).Delete(&models.League{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete league: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("league: %w", ErrNotFound)
	}
	return nil
}

// LeaguesWithWaitlist returns the IDs of leagues that have at least one waitlisted registration.
func (s *Store) LeaguesWithWaitlist(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.db.WithContext(ctx).
		Model(&models.Registration{}).
		Distinct("league_id").
		Where("status = ?", registration.StatusWaitlisted).
		Pluck("league_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list waitlisted leagues: %w", err)
	}
	return ids, nil
}
