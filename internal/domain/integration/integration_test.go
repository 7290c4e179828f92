package integration

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProvider(t *testing.T) {
	tests := []struct {
		input    string
		expected Provider
		wantErr  bool
	}{
		{"ubereats", ProviderUberEats, false},
		{"uber-eats", ProviderUberEats, false},
		{"UBER_EATS", ProviderUberEats, false},
		{"Deliveroo", ProviderDeliveroo, false},
		{"just-eat", ProviderJustEat, false},
		{"doordash", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := ParseProvider(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedProvider)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, p)
		})
	}
}

func TestNewIntegration(t *testing.T) {
	orgID := uuid.MustParse("11111111-1111-1111-1111-111111111111")

	t.Run("creates inactive record with deterministic webhook URL", func(t *testing.T) {
		rec, err := NewIntegration(orgID, ProviderDeliveroo, " store-1 ", Credentials{"client_id": "abc"}, nil, "https://pos.example.com/")
		require.NoError(t, err)

		assert.False(t, rec.IsActive)
		assert.Equal(t, "store-1", rec.StoreID)
		assert.Equal(t, "https://pos.example.com/deliveroo-webhook?org=11111111-1111-1111-1111-111111111111", rec.WebhookURL)
		assert.NotEqual(t, uuid.Nil, rec.ID)
	})

	t.Run("same inputs give the same webhook URL", func(t *testing.T) {
		a := BuildWebhookURL("https://pos.example.com", ProviderJustEat, orgID)
		b := BuildWebhookURL("https://pos.example.com", ProviderJustEat, orgID)
		assert.Equal(t, a, b)
	})

	t.Run("rejects nil organization", func(t *testing.T) {
		_, err := NewIntegration(uuid.Nil, ProviderUberEats, "s", nil, nil, "")
		assert.ErrorIs(t, err, ErrInvalidOrganizationID)
	})

	t.Run("rejects unknown provider", func(t *testing.T) {
		_, err := NewIntegration(orgID, Provider("doordash"), "s", nil, nil, "")
		assert.ErrorIs(t, err, ErrUnsupportedProvider)
	})

	t.Run("rejects empty store", func(t *testing.T) {
		_, err := NewIntegration(orgID, ProviderUberEats, "  ", nil, nil, "")
		assert.ErrorIs(t, err, ErrMissingStoreID)
	})
}

func TestIntegration_Lifecycle(t *testing.T) {
	rec, err := NewIntegration(uuid.New(), ProviderUberEats, "store", nil, Settings{SettingAutoAccept: true}, "https://pos.example.com")
	require.NoError(t, err)

	now := time.Now()
	rec.RecordConnectionTest(false, now)
	assert.False(t, rec.IsActive)
	require.NotNil(t, rec.LastConnectionAt)

	rec.RecordConnectionTest(true, now)
	assert.True(t, rec.IsActive)

	require.NoError(t, rec.UpdateConnection("store-2", Credentials{"client_id": "new"}, nil, "https://pos.example.com"))
	assert.False(t, rec.IsActive, "changed credentials must be re-tested")
	assert.False(t, rec.AutoAccept())

	rec.RecordMenuSync(now)
	assert.Equal(t, now, *rec.LastSyncAt)
}

func TestCredentials_String(t *testing.T) {
	creds := Credentials{"client_id": "abc", "number": 42}
	assert.Equal(t, "abc", creds.String("client_id"))
	assert.Equal(t, "", creds.String("number"))
	assert.Equal(t, "", creds.String("missing"))

	var empty Credentials
	assert.Equal(t, "", empty.String("client_id"))
}

func TestIntegration_DefaultPrepMinutes(t *testing.T) {
	rec := &Integration{Settings: Settings{SettingDefaultPrepMinutes: float64(15)}}
	assert.Equal(t, 15, rec.DefaultPrepMinutes())

	rec.Settings = nil
	assert.Equal(t, 0, rec.DefaultPrepMinutes())
}
