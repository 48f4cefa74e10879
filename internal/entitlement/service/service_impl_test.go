package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/storefront/internal/clock"
	"github.com/smallbiznis/storefront/internal/entitlement/domain"
	"github.com/smallbiznis/storefront/internal/entitlement/repository"
	"github.com/smallbiznis/storefront/internal/entitlement/service"
	"github.com/smallbiznis/storefront/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestUsable(t *testing.T) {
	now := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)
	future := now.Add(time.Hour)

	cases := []struct {
		name string
		ent  domain.Entitlement
		want bool
	}{
		{"active without expiry", domain.Entitlement{Active: true}, true},
		{"active expiring later", domain.Entitlement{Active: true, ExpiresAt: &future}, true},
		{"active expiring now", domain.Entitlement{Active: true, ExpiresAt: &now}, true},
		{"active expired", domain.Entitlement{Active: true, ExpiresAt: &past}, false},
		{"inactive", domain.Entitlement{Active: false}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ent.Usable(now))
		})
	}
}

func TestGrantConvergesOnSingleRow(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.InsertAccount(t, db, 1, "ada@example.com")
	testutil.InsertProduct(t, db, 2, "diy", "price_diy", true)

	fake := clock.NewFakeClock(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Repo:  repository.Provide(),
		Clock: fake,
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Grant(ctx, domain.GrantRequest{AccountID: 1, ProductID: 2})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), testutil.Count(t, db, "entitlements"))
	ent, err := svc.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.True(t, ent.Usable(fake.Now()))
}

func TestRevokeThenGrantReactivates(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.InsertAccount(t, db, 1, "ada@example.com")
	testutil.InsertProduct(t, db, 2, "diy", "price_diy", true)
	expired := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	testutil.InsertEntitlement(t, db, 3, 1, 2, true, &expired)

	fake := clock.NewFakeClock(time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC))
	svc := service.New(service.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: testutil.NewNode(t),
		Repo:  repository.Provide(),
		Clock: fake,
	})
	ctx := context.Background()

	require.NoError(t, svc.Revoke(ctx, 1, 2))
	ent, err := svc.Get(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, ent.Active)

	active, err := svc.ListByAccount(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, active)

	regranted, err := svc.Grant(ctx, domain.GrantRequest{AccountID: 1, ProductID: 2})
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(3), regranted.ID)
	assert.True(t, regranted.Active)
	assert.Nil(t, regranted.ExpiresAt)
	assert.True(t, regranted.GrantedAt.Equal(fake.Now()))

	assert.ErrorIs(t, svc.Revoke(ctx, 1, 99), domain.ErrNotFound)
	_, err = svc.Get(ctx, 9, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = svc.Grant(ctx, domain.GrantRequest{AccountID: 0, ProductID: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
