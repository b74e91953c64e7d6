package service

import (
	"context"
	"fmt"
	"strings"

	"marquee/internal/codes"
	apperr "marquee/internal/errors"
	"marquee/internal/logger"
	"marquee/internal/models"
)

type SettingsService struct {
	settings SettingsStore
	cache    SettingsCache
}

func NewSettingsService(settings SettingsStore, cache SettingsCache) *SettingsService {
	return &SettingsService{settings: settings, cache: cache}
}

// Get returns the admin settings, creating the row with defaults on first
// use. A cache failure falls through to the database.
func (s *SettingsService) Get(ctx context.Context) (*models.AdminSettings, error) {
	log := logger.WithContext(ctx)

	if s.cache != nil {
		cached, ok, err := s.cache.GetSettings(ctx)
		if err != nil {
			log.Warn("Settings cache lookup failed", "error", err)
		} else if ok {
			return cached, nil
		}
	}

	settings, err := s.settings.GetOrInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetSettings(ctx, settings); err != nil {
			log.Warn("Failed to cache settings", "error", err)
		}
	}
	return settings, nil
}

func (s *SettingsService) Update(ctx context.Context, patch *models.UpdateSettingsRequest) (*models.AdminSettings, error) {
	if patch.EnabledCategories != nil {
		seen := make(map[string]bool, len(patch.EnabledCategories))
		categories := make([]string, 0, len(patch.EnabledCategories))
		for _, c := range patch.EnabledCategories {
			c = strings.ToLower(strings.TrimSpace(c))
			if !models.ValidCategory(c) {
				return nil, fmt.Errorf("unknown category %q: %w", c, apperr.ErrValidation)
			}
			if !seen[c] {
				seen[c] = true
				categories = append(categories, c)
			}
		}
		patch.EnabledCategories = categories
	}

	settings, err := s.settings.GetOrInit(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}
	patch.Apply(settings)

	if err := s.settings.Update(ctx, settings); err != nil {
		return nil, fmt.Errorf("failed to update settings: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateSettings(ctx); err != nil {
			logger.WithContext(ctx).Warn("Failed to invalidate settings cache", "error", err)
		}
	}

	logger.WithContext(ctx).Info("Admin settings updated",
		"maintenance_mode", settings.MaintenanceMode)
	return settings, nil
}

// MaintenanceMode reports whether writes are closed to non-admins.
func (s *SettingsService) MaintenanceMode(ctx context.Context) (bool, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return false, err
	}
	return settings.MaintenanceMode, nil
}

func (s *SettingsService) ListCities(ctx context.Context) ([]models.PopularCity, error) {
	cities, err := s.settings.ListCities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	if cities == nil {
		cities = []models.PopularCity{}
	}
	return cities, nil
}

// AddCity registers a popular city under its slug. Adding the same city
// twice fails with ErrDuplicateKey.
func (s *SettingsService) AddCity(ctx context.Context, req *models.AddCityRequest) (*models.PopularCity, error) {
	name := strings.TrimSpace(req.Name)
	state := strings.ToUpper(strings.TrimSpace(req.StateCode))
	country := strings.ToUpper(strings.TrimSpace(req.CountryCode))
	if name == "" || state == "" || country == "" {
		return nil, fmt.Errorf("name, state code and country code are required: %w", apperr.ErrValidation)
	}
	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		return nil, fmt.Errorf("latitude out of range: %w", apperr.ErrValidation)
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		return nil, fmt.Errorf("longitude out of range: %w", apperr.ErrValidation)
	}

	city := &models.PopularCity{
		ID:          codes.CitySlug(name, state),
		Name:        name,
		StateCode:   state,
		CountryCode: country,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
	}
	if err := s.settings.InsertCity(ctx, city); err != nil {
		return nil, fmt.Errorf("failed to add city: %w", err)
	}
	return city, nil
}

// DeleteCity removes a popular city. Deleting an unknown id succeeds.
func (s *SettingsService) DeleteCity(ctx context.Context, id string) error {
	if err := s.settings.DeleteCity(ctx, strings.TrimSpace(id)); err != nil {
		return fmt.Errorf("failed to delete city: %w", err)
	}
	return nil
}
