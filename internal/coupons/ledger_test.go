package coupons

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/testdb"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*Ledger, Repository) {
	t.Helper()
	repo := NewRepository(testdb.Open(t))
	ledger := NewLedger(repo)
	ledger.clock = func() time.Time { return fixedNow }
	return ledger, repo
}

func seedWelcome(t *testing.T, repo Repository, userID uuid.UUID, mutate func(*models.Coupon)) *models.Coupon {
	t.Helper()
	c := &models.Coupon{
		Code:         "welcomexyz",
		UserID:       userID,
		DiscountType: enums.CouponDiscountPercent,
		Value:        decimal.NewFromInt(5),
		Reason:       enums.CouponReasonWelcomeNewUser,
		ExpiresAt:    fixedNow.Add(24 * time.Hour),
	}
	if mutate != nil {
		mutate(c)
	}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func TestEvaluate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	usedAt := fixedNow.Add(-time.Hour)

	cases := []struct {
		name   string
		mutate func(*models.Coupon)
		code   string
		user   uuid.UUID
		reject string
	}{
		{"valid", nil, "WelcomeXYZ", userID, ""},
		{"wrong user", nil, "WELCOMEXYZ", uuid.New(), RejectNotFound},
		{"unknown code", nil, "NOPE", userID, RejectNotFound},
		{"used", func(c *models.Coupon) { c.UsedAt = &usedAt }, "WELCOMEXYZ", userID, RejectUsed},
		{"expired", func(c *models.Coupon) { c.ExpiresAt = fixedNow }, "WELCOMEXYZ", userID, RejectExpired},
		{"other reason", func(c *models.Coupon) { c.Reason = "LOYALTY" }, "WELCOMEXYZ", userID, RejectNotApplicable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ledger, repo := newLedger(t)
			seedWelcome(t, repo, userID, tc.mutate)
			coupon, reject, err := ledger.Evaluate(ctx, tc.code, tc.user, fixedNow)
			require.NoError(t, err)
			assert.Equal(t, tc.reject, reject)
			if tc.reject == "" {
				require.NotNil(t, coupon)
				assert.True(t, coupon.Value.Equal(decimal.NewFromInt(5)))
			}
		})
	}
}

func TestTryConsumeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	ledger, repo := newLedger(t)
	userID := uuid.New()
	seedWelcome(t, repo, userID, nil)

	first, err := ledger.TryConsume(ctx, "WELCOMEXYZ", userID, uuid.New(), types.Money(4998))
	require.NoError(t, err)
	assert.True(t, first.Applied)
	assert.Equal(t, types.Money(250), first.Amount)

	second, err := ledger.TryConsume(ctx, "WELCOMEXYZ", userID, uuid.New(), types.Money(4998))
	require.NoError(t, err)
	assert.False(t, second.Applied)

	stored, err := repo.FindByCodeAndUser(ctx, "welcomexyz", userID)
	require.NoError(t, err)
	require.NotNil(t, stored.UsedAt)
	require.NotNil(t, stored.OrderID)
}

func TestMarkUsedUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	_, repo := newLedger(t)
	userID := uuid.New()
	seedWelcome(t, repo, userID, nil)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		applied int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkUsed(ctx, "WELCOMEXYZ", userID, uuid.New(), fixedNow)
			if err != nil {
				t.Errorf("mark used: %v", err)
				return
			}
			if ok {
				mu.Lock()
				applied++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, applied)
}
