package storefront_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
	"github.com/Kirk-Client/Kirk-Site/storage/memory"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newUpdater(t *testing.T, storage storefront.Storage, policy storefront.TierPolicy) *storefront.Updater {
	t.Helper()
	updater, err := storefront.NewUpdater(storefront.UpdaterConfig{
		Storage: storage,
		Policy:  policy,
		Now:     func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return updater
}

func seedUser(t *testing.T, storage storefront.Storage, uid string) {
	t.Helper()
	require.NoError(t, storage.CreateUser(context.Background(),
		storefront.NewUser(uid, uid, uid+"@example.com", fixedNow.Add(-time.Hour))))
}

func TestNewUpdater_Validation(t *testing.T) {
	_, err := storefront.NewUpdater(storefront.UpdaterConfig{})
	assert.Error(t, err)

	_, err = storefront.NewUpdater(storefront.UpdaterConfig{Storage: memory.New(), Policy: "sometimes"})
	assert.ErrorIs(t, err, storefront.ErrInvalidTierPolicy)

	updater, err := storefront.NewUpdater(storefront.UpdaterConfig{Storage: memory.New()})
	require.NoError(t, err)
	assert.Equal(t, storefront.PolicyReplace, updater.Policy())
}

func TestParseTierPolicy(t *testing.T) {
	p, err := storefront.ParseTierPolicy("")
	require.NoError(t, err)
	assert.Equal(t, storefront.PolicyReplace, p)

	p, err = storefront.ParseTierPolicy("MONOTONIC")
	require.NoError(t, err)
	assert.Equal(t, storefront.PolicyMonotonic, p)

	_, err = storefront.ParseTierPolicy("max")
	assert.ErrorIs(t, err, storefront.ErrInvalidTierPolicy)
}

func TestApplySubscription_WritesTierAndPurchases(t *testing.T) {
	storage := memory.New()
	seedUser(t, storage, "user1")
	updater := newUpdater(t, storage, storefront.PolicyReplace)

	tier, err := updater.ApplySubscription(context.Background(), "user1",
		[]storefront.Item{{Name: "Kirk Client"}, {Name: "Merch"}})
	require.NoError(t, err)
	assert.Equal(t, storefront.TierLifetime, tier)

	user, err := storage.GetUser(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, storefront.TierLifetime, user.SubscriptionType)
	assert.ElementsMatch(t, []string{"Kirk Client", "Merch"}, user.Purchases)
	assert.Equal(t, fixedNow, user.LastPurchase)
	assert.Equal(t, "user1@example.com", user.Email)
	assert.Equal(t, storefront.AccountStatusActive, user.AccountStatus)
}

func TestApplySubscription_SameItemTwiceIsUnioned(t *testing.T) {
	storage := memory.New()
	seedUser(t, storage, "user1")
	updater := newUpdater(t, storage, storefront.PolicyReplace)

	items := []storefront.Item{{Name: "KirkLite"}}
	_, err := updater.ApplySubscription(context.Background(), "user1", items)
	require.NoError(t, err)
	_, err = updater.ApplySubscription(context.Background(), "user1", items)
	require.NoError(t, err)

	user, err := storage.GetUser(context.Background(), "user1")
	require.NoError(t, err)
	assert.Equal(t, []string{"KirkLite"}, user.Purchases)
}

func TestApplySubscription_GuestIsRejected(t *testing.T) {
	storage := memory.New()
	updater := newUpdater(t, storage, storefront.PolicyReplace)

	for _, uid := range []string{storefront.GuestUserID, "", "  "} {
		_, err := updater.ApplySubscription(context.Background(), uid, []storefront.Item{{Name: "Kirk Client"}})
		assert.ErrorIs(t, err, storefront.ErrGuestUser)
	}
	assert.Zero(t, storage.UserWrites())
}

func TestApplySubscription_Policies(t *testing.T) {
	tests := []struct {
		policy storefront.TierPolicy
		want   storefront.Tier
	}{
		{storefront.PolicyReplace, storefront.TierMedia},
		{storefront.PolicyMonotonic, storefront.TierLite},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			storage := memory.New()
			seedUser(t, storage, "user1")
			updater := newUpdater(t, storage, tt.policy)
			ctx := context.Background()

			_, err := updater.ApplySubscription(ctx, "user1", []storefront.Item{{Name: "KirkLite"}})
			require.NoError(t, err)
			tier, err := updater.ApplySubscription(ctx, "user1", []storefront.Item{{Name: "Media Version"}})
			require.NoError(t, err)
			assert.Equal(t, tt.want, tier)

			user, err := storage.GetUser(ctx, "user1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, user.SubscriptionType)
			assert.ElementsMatch(t, []string{"KirkLite", "Media Version"}, user.Purchases)
		})
	}
}

func TestApplySubscription_MonotonicMissingUser(t *testing.T) {
	storage := memory.New()
	updater := newUpdater(t, storage, storefront.PolicyMonotonic)

	tier, err := updater.ApplySubscription(context.Background(), "new-user", []storefront.Item{{Name: "KirkLite"}})
	require.NoError(t, err)
	assert.Equal(t, storefront.TierLite, tier)
}

type failingStorage struct {
	storefront.Storage
	err error
}

func (f *failingStorage) GetUser(context.Context, string) (*storefront.User, error) {
	return nil, f.err
}

func (f *failingStorage) ApplySubscription(context.Context, string, *storefront.SubscriptionChange) error {
	return f.err
}

func TestApplySubscription_StorageFailurePropagates(t *testing.T) {
	boom := errors.New("unavailable")

	for _, policy := range []storefront.TierPolicy{storefront.PolicyReplace, storefront.PolicyMonotonic} {
		updater := newUpdater(t, &failingStorage{err: boom}, policy)
		_, err := updater.ApplySubscription(context.Background(), "user1", []storefront.Item{{Name: "KirkLite"}})
		assert.ErrorIs(t, err, boom, "policy %s", policy)
	}
}
