package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/CamDog38/ShopDelta2-sub001/internal/metrics"
	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
)

// Step names recorded in CleanupOutcome.
const (
	StepLookupTenant          = "lookup_tenant"
	StepDeleteSessions        = "delete_sessions"
	StepMarkUninstalled       = "mark_uninstalled"
	StepDeleteShareLinks      = "delete_share_links"
	StepDeleteTenantRecord    = "delete_tenant_record"
	StepConfirmNoRetainedData = "confirm_no_retained_data"
	StepConfirmNoCustomerData = "confirm_no_customer_data"
)

// Dispatcher performs the tenant-scoped side effects for a verified event.
// Every step is idempotent, so duplicate or reordered deliveries are safe.
type Dispatcher struct {
	creds       CredentialStore
	tenants     TenantDirectory
	shares      ShareEraser
	stepTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewDispatcher wires the cleanup capabilities. stepTimeout bounds each step
// individually; zero selects DefaultStepTimeout.
func NewDispatcher(creds CredentialStore, tenants TenantDirectory, shares ShareEraser, stepTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if stepTimeout <= 0 {
		stepTimeout = DefaultStepTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		creds:       creds,
		tenants:     tenants,
		shares:      shares,
		stepTimeout: stepTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

type stepFunc func(ctx context.Context) (affected int64, detail string, err error)

// Dispatch runs the steps for ev.Topic and returns what happened. It never
// returns an error and never panics; failures are recorded per step and do
// not stop later steps.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) *CleanupOutcome {
	out := &CleanupOutcome{Shop: ev.Shop, Topic: ev.Topic}

	switch ev.Topic {
	case TopicAppUninstalled, TopicShopRedact:
	case TopicCustomersRedact, TopicCustomersDataRequest:
		// Customer records are never stored, so there is nothing to look up.
		d.run(ctx, out, StepConfirmNoCustomerData, func(context.Context) (int64, string, error) {
			return 0, "no customer data is stored", nil
		})
		return out
	default:
		out.Unsupported = true
		return out
	}

	// Lookup only decides whether the tenant row needs touching. Sessions and
	// share links are keyed by shop and are erased even when no row exists.
	known := true
	d.run(ctx, out, StepLookupTenant, func(ctx context.Context) (int64, string, error) {
		_, err := d.tenants.LookupShop(ctx, ev.Shop)
		if errors.Is(err, tenant.ErrUnknownShop) {
			known = false
			return 0, "shop not registered", nil
		}
		return 0, "", err
	})
	out.UnknownTenant = !known

	d.run(ctx, out, StepDeleteSessions, func(ctx context.Context) (int64, string, error) {
		n, err := d.creds.DeleteTenantSessions(ctx, ev.Shop)
		return n, fmt.Sprintf("%d sessions deleted", n), err
	})

	if ev.Topic == TopicAppUninstalled {
		if known {
			d.run(ctx, out, StepMarkUninstalled, func(ctx context.Context) (int64, string, error) {
				return 0, "", d.tenants.MarkUninstalled(ctx, ev.Shop, d.now())
			})
		}
		return out
	}

	d.run(ctx, out, StepDeleteShareLinks, func(ctx context.Context) (int64, string, error) {
		n, err := d.shares.DeleteShopShares(ctx, ev.Shop)
		return n, fmt.Sprintf("%d share links deleted", n), err
	})
	if known {
		d.run(ctx, out, StepDeleteTenantRecord, func(ctx context.Context) (int64, string, error) {
			n, err := d.tenants.DeleteShop(ctx, ev.Shop)
			return n, "", err
		})
	}
	d.run(ctx, out, StepConfirmNoRetainedData, func(context.Context) (int64, string, error) {
		return 0, "no analytics data is retained for the shop", nil
	})
	return out
}

// run executes fn under its own timeout and appends exactly one StepResult.
func (d *Dispatcher) run(ctx context.Context, out *CleanupOutcome, name string, fn stepFunc) {
	res := StepResult{Name: name}

	func() {
		sctx, cancel := context.WithTimeout(ctx, d.stepTimeout)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				res.Err = fmt.Errorf("step %s panicked: %v", name, r)
			}
		}()
		res.Affected, res.Detail, res.Err = fn(sctx)
	}()

	if res.Err != nil {
		res.Succeeded = false
		res.Affected = 0
		res.Detail = res.Err.Error()
		d.logger.Warn("cleanup step failed",
			"shop", out.Shop,
			"topic", string(out.Topic),
			"step", name,
			"error", res.Err,
		)
	} else {
		res.Succeeded = true
	}

	result := "ok"
	if !res.Succeeded {
		result = "failed"
	}
	metrics.CleanupSteps.WithLabelValues(string(out.Topic), name, result).Inc()

	out.append(res)
}
