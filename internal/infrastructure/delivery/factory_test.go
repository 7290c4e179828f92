package delivery

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pos/backend/internal/domain/integration"
)

func TestFactory_Create(t *testing.T) {
	f := NewFactory(DefaultConfig(), zap.NewNop())

	tests := []struct {
		provider integration.Provider
		want     any
	}{
		{integration.ProviderUberEats, &UberEatsClient{}},
		{integration.ProviderDeliveroo, &DeliverooClient{}},
		{integration.ProviderJustEat, &JustEatClient{}},
	}
	for _, tt := range tests {
		t.Run(string(tt.provider), func(t *testing.T) {
			client, err := f.Create(tt.provider, "store", integration.Credentials{})
			require.NoError(t, err)
			assert.IsType(t, tt.want, client)
			assert.Equal(t, tt.provider, client.Provider())
		})
	}
}

func TestFactory_UnknownProvider(t *testing.T) {
	f := NewFactory(DefaultConfig(), zap.NewNop())
	client, err := f.Create(integration.Provider("grubhub"), "store", nil)
	assert.ErrorIs(t, err, integration.ErrUnsupportedProvider)
	assert.Nil(t, client)
}

func TestFactory_IncompleteCredentialsFailAuthentication(t *testing.T) {
	f := NewFactory(DefaultConfig(), zap.NewNop())

	for _, p := range integration.AllProviders() {
		client, err := f.Create(p, "store", integration.Credentials{CredentialClientID: 42})
		require.NoError(t, err)
		assert.True(t, integration.IsAuthFailure(client.Authenticate(context.Background())), p)
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Deliveroo.AuthURL = ""
	assert.ErrorIs(t, cfg.Validate(), ErrConfigMissingAuthURL)

	cfg = DefaultConfig()
	cfg.JustEat.APIURL = "not a url"
	assert.ErrorIs(t, cfg.Validate(), ErrConfigInvalidURL)

	assert.Equal(t, 30*time.Second, Config{}.Timeout())
}

func TestClientCache(t *testing.T) {
	clock := newFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	cache := NewClientCache(NewFactory(DefaultConfig(), zap.NewNop(), WithClock(clock.Now)), time.Minute)
	ctx := context.Background()

	rec := &integration.Integration{
		ID:             uuid.New(),
		OrganizationID: uuid.New(),
		Provider:       integration.ProviderUberEats,
		StoreID:        "store-1",
		Credentials:    integration.Credentials{CredentialClientID: "a", CredentialClientSecret: "b"},
	}

	first, err := cache.ClientFor(ctx, rec)
	require.NoError(t, err)
	second, err := cache.ClientFor(ctx, rec)
	require.NoError(t, err)
	assert.Same(t, first, second)

	rec.Credentials = integration.Credentials{CredentialClientID: "a", CredentialClientSecret: "rotated"}
	rotated, err := cache.ClientFor(ctx, rec)
	require.NoError(t, err)
	assert.NotSame(t, first, rotated)

	clock.Advance(time.Minute)
	expired, err := cache.ClientFor(ctx, rec)
	require.NoError(t, err)
	assert.NotSame(t, rotated, expired)

	cache.Evict(rec.OrganizationID, rec.Provider)
	assert.Equal(t, 0, cache.Len())

	_, err = cache.ClientFor(ctx, &integration.Integration{OrganizationID: uuid.New(), Provider: "grubhub"})
	assert.ErrorIs(t, err, integration.ErrUnsupportedProvider)
}
