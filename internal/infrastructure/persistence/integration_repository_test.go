package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pos/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupDeliveryTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	// one connection so every query sees the same in-memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(db))
	return db
}

func newTestIntegration(t *testing.T, orgID uuid.UUID, provider integration.Provider) *integration.Integration {
	t.Helper()
	i, err := integration.NewIntegration(
		orgID,
		provider,
		"store-1",
		integration.Credentials{"client_id": "id", "client_secret": "secret"},
		integration.Settings{"auto_accept": true, "default_prep_minutes": 15},
		"https://pos.example.com",
	)
	require.NoError(t, err)
	return i
}

func TestGormIntegrationRepository_SaveAndFind(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()
	orgID := uuid.New()

	i := newTestIntegration(t, orgID, integration.ProviderUberEats)
	require.NoError(t, repo.Save(ctx, i))

	found, err := repo.FindByID(ctx, i.ID)
	require.NoError(t, err)
	assert.Equal(t, orgID, found.OrganizationID)
	assert.Equal(t, integration.ProviderUberEats, found.Provider)
	assert.Equal(t, "store-1", found.StoreID)
	assert.Equal(t, "secret", found.Credentials.String("client_secret"))
	assert.True(t, found.AutoAccept())
	assert.Equal(t, 15, found.DefaultPrepMinutes())
	assert.False(t, found.IsActive)
	assert.Contains(t, found.WebhookURL, "/ubereats-webhook?org="+orgID.String())

	byProvider, err := repo.FindByOrganizationAndProvider(ctx, orgID, integration.ProviderUberEats)
	require.NoError(t, err)
	assert.Equal(t, i.ID, byProvider.ID)
}

func TestGormIntegrationRepository_NotFound(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, integration.ErrIntegrationNotFound)

	_, err = repo.FindByOrganizationAndProvider(ctx, uuid.New(), integration.ProviderJustEat)
	assert.ErrorIs(t, err, integration.ErrIntegrationNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, uuid.New()), integration.ErrIntegrationNotFound)
}

func TestGormIntegrationRepository_SaveUpsertsByOrganizationAndProvider(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()
	orgID := uuid.New()

	first := newTestIntegration(t, orgID, integration.ProviderDeliveroo)
	require.NoError(t, repo.Save(ctx, first))

	// a second record for the same pair replaces the first instead of adding a row
	second := newTestIntegration(t, orgID, integration.ProviderDeliveroo)
	second.StoreID = "store-2"
	second.Credentials = integration.Credentials{"client_id": "rotated"}
	require.NoError(t, repo.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID, "stored ID is kept on conflict")

	all, err := repo.FindByOrganization(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "store-2", all[0].StoreID)
	assert.Equal(t, "rotated", all[0].Credentials.String("client_id"))
	assert.Empty(t, all[0].Credentials.String("client_secret"))
}

func TestGormIntegrationRepository_ActiveQueries(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()

	orgA, orgB, orgC := uuid.New(), uuid.New(), uuid.New()

	a1 := newTestIntegration(t, orgA, integration.ProviderUberEats)
	a1.RecordConnectionTest(true, time.Now())
	a2 := newTestIntegration(t, orgA, integration.ProviderJustEat)
	b1 := newTestIntegration(t, orgB, integration.ProviderDeliveroo)
	b1.SetActive(true)
	c1 := newTestIntegration(t, orgC, integration.ProviderDeliveroo)

	for _, i := range []*integration.Integration{a1, a2, b1, c1} {
		require.NoError(t, repo.Save(ctx, i))
	}

	active, err := repo.FindActiveByOrganization(ctx, orgA)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, integration.ProviderUberEats, active[0].Provider)
	assert.NotNil(t, active[0].LastConnectionAt)

	all, err := repo.FindByOrganization(ctx, orgA)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	orgs, err := repo.ListActiveOrganizations(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{orgA, orgB}, orgs)
}

func TestGormIntegrationRepository_Delete(t *testing.T) {
	db := setupDeliveryTestDB(t)
	repo := NewGormIntegrationRepository(db)
	ctx := context.Background()

	i := newTestIntegration(t, uuid.New(), integration.ProviderJustEat)
	require.NoError(t, repo.Save(ctx, i))

	require.NoError(t, repo.Delete(ctx, i.ID))

	_, err := repo.FindByID(ctx, i.ID)
	assert.ErrorIs(t, err, integration.ErrIntegrationNotFound)
}
