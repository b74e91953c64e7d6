package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperr "marquee/internal/errors"
	"marquee/internal/models"
)

func TestGetSettingsCaches(t *testing.T) {
	fx := newFixture()

	settings, err := fx.svc.Settings.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.ShowHotEvents)
	assert.False(t, settings.MaintenanceMode)
	assert.ElementsMatch(t, []string{models.CategoryConcert, models.CategoryComedy, models.CategoryWorkshop}, settings.EnabledCategories)

	_, err = fx.svc.Settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fx.settings.reads)
}

func TestGetSettingsCacheDown(t *testing.T) {
	fx := newFixture()
	fx.cache.err = errors.New("connection refused")

	settings, err := fx.svc.Settings.Get(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, settings)

	_, err = fx.svc.Settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, fx.settings.reads)
}

func TestUpdateSettings(t *testing.T) {
	fx := newFixture()
	_, err := fx.svc.Settings.Get(context.Background())
	require.NoError(t, err)

	on := models.FlexibleBool(true)
	updated, err := fx.svc.Settings.Update(context.Background(), &models.UpdateSettingsRequest{
		MaintenanceMode:   &on,
		EnabledCategories: []string{"Concert", "concert", "comedy"},
	})
	require.NoError(t, err)
	assert.True(t, updated.MaintenanceMode)
	assert.True(t, updated.ShowPopularEvents)
	assert.Equal(t, []string{models.CategoryConcert, models.CategoryComedy}, updated.EnabledCategories)
	assert.Equal(t, 1, fx.cache.invalidated)

	maintenance, err := fx.svc.Settings.MaintenanceMode(context.Background())
	require.NoError(t, err)
	assert.True(t, maintenance)

	_, err = fx.svc.Settings.Update(context.Background(), &models.UpdateSettingsRequest{EnabledCategories: []string{"opera"}})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestPopularCities(t *testing.T) {
	fx := newFixture()

	city, err := fx.svc.Settings.AddCity(context.Background(), &models.AddCityRequest{
		Name: "New  York", StateCode: "ny", CountryCode: "us",
	})
	require.NoError(t, err)
	assert.Equal(t, "new-york-NY", city.ID)
	assert.Equal(t, "US", city.CountryCode)

	_, err = fx.svc.Settings.AddCity(context.Background(), &models.AddCityRequest{
		Name: "new york", StateCode: "NY", CountryCode: "US",
	})
	assert.ErrorIs(t, err, apperr.ErrDuplicateKey)

	lat := 91.0
	_, err = fx.svc.Settings.AddCity(context.Background(), &models.AddCityRequest{
		Name: "Nowhere", StateCode: "NA", CountryCode: "US", Latitude: &lat,
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	cities, err := fx.svc.Settings.ListCities(context.Background())
	require.NoError(t, err)
	assert.Len(t, cities, 1)

	require.NoError(t, fx.svc.Settings.DeleteCity(context.Background(), city.ID))
	require.NoError(t, fx.svc.Settings.DeleteCity(context.Background(), city.ID))

	cities, err = fx.svc.Settings.ListCities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, cities)
	assert.NotNil(t, cities)
}
