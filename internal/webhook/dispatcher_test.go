package webhook_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
	"github.com/CamDog38/ShopDelta2-sub001/internal/webhook"
	"github.com/CamDog38/ShopDelta2-sub001/internal/webhook/mocks"
)

const shop = "a.myshopify.com"

type dispatcherDeps struct {
	creds   *mocks.MockCredentialStore
	tenants *mocks.MockTenantDirectory
	shares  *mocks.MockShareEraser
}

func newTestDispatcher(t *testing.T, stepTimeout time.Duration) (*webhook.Dispatcher, dispatcherDeps) {
	t.Helper()
	ctrl := gomock.NewController(t)
	deps := dispatcherDeps{
		creds:   mocks.NewMockCredentialStore(ctrl),
		tenants: mocks.NewMockTenantDirectory(ctrl),
		shares:  mocks.NewMockShareEraser(ctrl),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return webhook.NewDispatcher(deps.creds, deps.tenants, deps.shares, stepTimeout, logger), deps
}

func stepNames(out *webhook.CleanupOutcome) []string {
	names := make([]string, 0, len(out.Steps))
	for _, s := range out.Steps {
		names = append(names, s.Name)
	}
	return names
}

func TestDispatchAppUninstalled(t *testing.T) {
	d, deps := newTestDispatcher(t, time.Second)
	ctx := context.Background()

	deps.tenants.EXPECT().LookupShop(gomock.Any(), shop).Return(tenant.Shop{Domain: shop}, nil)
	deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), shop).Return(int64(2), nil)
	deps.tenants.EXPECT().MarkUninstalled(gomock.Any(), shop, gomock.Any()).Return(nil)

	out := d.Dispatch(ctx, webhook.Event{Topic: webhook.TopicAppUninstalled, Shop: shop})

	assert.Equal(t, []string{webhook.StepLookupTenant, webhook.StepDeleteSessions, webhook.StepMarkUninstalled}, stepNames(out))
	assert.True(t, out.Succeeded())
	assert.False(t, out.UnknownTenant)
	assert.Equal(t, int64(2), out.Affected())
}

func TestDispatchShopRedact(t *testing.T) {
	d, deps := newTestDispatcher(t, time.Second)

	gomock.InOrder(
		deps.tenants.EXPECT().LookupShop(gomock.Any(), shop).Return(tenant.Shop{Domain: shop}, nil),
		deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), shop).Return(int64(1), nil),
		deps.shares.EXPECT().DeleteShopShares(gomock.Any(), shop).Return(int64(3), nil),
		deps.tenants.EXPECT().DeleteShop(gomock.Any(), shop).Return(int64(1), nil),
	)

	out := d.Dispatch(context.Background(), webhook.Event{Topic: webhook.TopicShopRedact, Shop: shop})

	assert.Equal(t, []string{
		webhook.StepLookupTenant,
		webhook.StepDeleteSessions,
		webhook.StepDeleteShareLinks,
		webhook.StepDeleteTenantRecord,
		webhook.StepConfirmNoRetainedData,
	}, stepNames(out))
	assert.True(t, out.Succeeded())
	assert.Equal(t, int64(5), out.Affected())
}

func TestDispatchUnknownTenant(t *testing.T) {
	tests := []struct {
		topic webhook.Topic
		steps []string
	}{
		{webhook.TopicAppUninstalled, []string{webhook.StepLookupTenant, webhook.StepDeleteSessions}},
		{webhook.TopicShopRedact, []string{
			webhook.StepLookupTenant,
			webhook.StepDeleteSessions,
			webhook.StepDeleteShareLinks,
			webhook.StepConfirmNoRetainedData,
		}},
	}
	for _, tt := range tests {
		t.Run(string(tt.topic), func(t *testing.T) {
			d, deps := newTestDispatcher(t, time.Second)
			// The tenant row is never touched; shop-keyed data is still erased.
			deps.tenants.EXPECT().LookupShop(gomock.Any(), "unknown-shop").Return(tenant.Shop{}, tenant.ErrUnknownShop)
			deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), "unknown-shop").Return(int64(0), nil)
			if tt.topic == webhook.TopicShopRedact {
				deps.shares.EXPECT().DeleteShopShares(gomock.Any(), "unknown-shop").Return(int64(0), nil)
			}

			out := d.Dispatch(context.Background(), webhook.Event{Topic: tt.topic, Shop: "unknown-shop"})

			assert.True(t, out.UnknownTenant)
			assert.Equal(t, tt.steps, stepNames(out))
			assert.True(t, out.Succeeded())
			assert.Equal(t, int64(0), out.Affected())
		})
	}
}

func TestDispatchUnknownTenantStillDeletesSessions(t *testing.T) {
	d, deps := newTestDispatcher(t, time.Second)
	deps.tenants.EXPECT().LookupShop(gomock.Any(), shop).Return(tenant.Shop{}, tenant.ErrUnknownShop)
	deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), shop).Return(int64(1), nil)

	out := d.Dispatch(context.Background(), webhook.Event{Topic: webhook.TopicAppUninstalled, Shop: shop})

	assert.True(t, out.UnknownTenant)
	assert.True(t, out.Succeeded())
	assert.Equal(t, int64(1), out.Affected())
}

func TestDispatchPartialFailureContinues(t *testing.T) {
	d, deps := newTestDispatcher(t, time.Second)

	deps.tenants.EXPECT().LookupShop(gomock.Any(), shop).Return(tenant.Shop{Domain: shop}, nil)
	deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), shop).Return(int64(0), errors.New("redis: connection refused"))
	deps.tenants.EXPECT().MarkUninstalled(gomock.Any(), shop, gomock.Any()).Return(nil)

	out := d.Dispatch(context.Background(), webhook.Event{Topic: webhook.TopicAppUninstalled, Shop: shop})

	require.Len(t, out.Steps, 3)
	assert.False(t, out.Succeeded())
	failed := out.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, webhook.StepDeleteSessions, failed[0].Name)
	assert.Contains(t, failed[0].Detail, "connection refused")
	assert.Error(t, failed[0].Err)
	assert.True(t, out.Steps[2].Succeeded, "later steps still run")
}

func TestDispatchLookupFailureStillCleansUp(t *testing.T) {
	d, deps := newTestDispatcher(t, time.Second)

	deps.tenants.EXPECT().LookupShop(gomock.Any(), shop).Return(tenant.Shop{}, errors.New("database is locked"))
	deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), shop).Return(int64(1), nil)
	deps.shares.EXPECT().DeleteShopShares(gomock.Any(), shop).Return(int64(0), nil)
	deps.tenants.EXPECT().DeleteShop(gomock.Any(), shop).Return(int64(0), nil)

	out := d.Dispatch(context.Background(), webhook.Event{Topic: webhook.TopicShopRedact, Shop: shop})

	assert.False(t, out.UnknownTenant)
	require.Len(t, out.Steps, 5)
	assert.False(t, out.Steps[0].Succeeded)
	for _, s := range out.Steps[1:] {
		assert.True(t, s.Succeeded, s.Name)
	}
}

func TestDispatchRecoversPanickingStep(t *testing.T) {
	d, deps := newTestDispatcher(t, time.Second)

	deps.tenants.EXPECT().LookupShop(gomock.Any(), shop).Return(tenant.Shop{Domain: shop}, nil)
	deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), shop).DoAndReturn(func(context.Context, string) (int64, error) {
		panic("nil session store")
	})
	deps.tenants.EXPECT().MarkUninstalled(gomock.Any(), shop, gomock.Any()).Return(nil)

	var out *webhook.CleanupOutcome
	require.NotPanics(t, func() {
		out = d.Dispatch(context.Background(), webhook.Event{Topic: webhook.TopicAppUninstalled, Shop: shop})
	})

	require.Len(t, out.Steps, 3)
	assert.False(t, out.Steps[1].Succeeded)
	assert.Contains(t, out.Steps[1].Detail, "panicked")
	assert.True(t, out.Steps[2].Succeeded)
}

func TestDispatchStepTimeoutIsPerStep(t *testing.T) {
	d, deps := newTestDispatcher(t, 20*time.Millisecond)

	deps.tenants.EXPECT().LookupShop(gomock.Any(), shop).Return(tenant.Shop{Domain: shop}, nil)
	deps.creds.EXPECT().DeleteTenantSessions(gomock.Any(), shop).DoAndReturn(func(ctx context.Context, _ string) (int64, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	deps.tenants.EXPECT().MarkUninstalled(gomock.Any(), shop, gomock.Any()).DoAndReturn(func(ctx context.Context, _ string, _ time.Time) error {
		return ctx.Err()
	})

	out := d.Dispatch(context.Background(), webhook.Event{Topic: webhook.TopicAppUninstalled, Shop: shop})

	require.Len(t, out.Steps, 3)
	assert.ErrorIs(t, out.Steps[1].Err, context.DeadlineExceeded)
	assert.True(t, out.Steps[2].Succeeded, "next step gets a fresh deadline")
}

func TestDispatchCustomerTopics(t *testing.T) {
	for _, topic := range []webhook.Topic{webhook.TopicCustomersRedact, webhook.TopicCustomersDataRequest} {
		t.Run(string(topic), func(t *testing.T) {
			d, _ := newTestDispatcher(t, time.Second)

			out := d.Dispatch(context.Background(), webhook.Event{Topic: topic, Shop: shop})

			assert.Equal(t, []string{webhook.StepConfirmNoCustomerData}, stepNames(out))
			assert.True(t, out.Succeeded())
		})
	}
}

func TestDispatchUnsupportedTopic(t *testing.T) {
	d, _ := newTestDispatcher(t, time.Second)

	out := d.Dispatch(context.Background(), webhook.Event{Topic: "orders/create", Shop: shop})

	assert.True(t, out.Unsupported)
	assert.Empty(t, out.Steps)
}
