package webhook

import (
	"context"
	"time"

	"github.com/CamDog38/ShopDelta2-sub001/internal/tenant"
)

//go:generate mockgen -destination=mocks/mock_capabilities.go -package=mocks github.com/CamDog38/ShopDelta2-sub001/internal/webhook CredentialStore,TenantDirectory,ShareEraser,EventDispatcher

// CredentialStore removes stored platform sessions for a shop.
type CredentialStore interface {
	DeleteTenantSessions(ctx context.Context, shop string) (int64, error)
}

// TenantDirectory is the shop registry as seen by the dispatcher.
type TenantDirectory interface {
	LookupShop(ctx context.Context, shop string) (tenant.Shop, error)
	MarkUninstalled(ctx context.Context, shop string, at time.Time) error
	DeleteShop(ctx context.Context, shop string) (int64, error)
}

// ShareEraser removes every share link owned by a shop.
type ShareEraser interface {
	DeleteShopShares(ctx context.Context, shop string) (int64, error)
}

// EventDispatcher runs the cleanup for a verified event.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev Event) *CleanupOutcome
}

// Topic is a platform webhook topic.
type Topic string

const (
	TopicAppUninstalled       Topic = "app/uninstalled"
	TopicShopRedact           Topic = "shop/redact"
	TopicCustomersRedact      Topic = "customers/redact"
	TopicCustomersDataRequest Topic = "customers/data_request"
)

// Topics lists every topic with a dedicated route.
var Topics = []Topic{
	TopicAppUninstalled,
	TopicShopRedact,
	TopicCustomersRedact,
	TopicCustomersDataRequest,
}

// Supported reports whether the dispatcher has steps for t.
func (t Topic) Supported() bool {
	for _, known := range Topics {
		if t == known {
			return true
		}
	}
	return false
}

// Event is a verified inbound delivery. It is never persisted.
type Event struct {
	Topic     Topic
	Shop      string
	WebhookID string
	Signature string
	RawBody   []byte
	Payload   map[string]any
}

// Reason explains a failed verification.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonMissingSignature Reason = "missing_signature"
	ReasonBadSignature     Reason = "bad_signature"
	ReasonMalformedBody    Reason = "malformed_body"
)

// VerificationResult is the outcome of checking a delivery's signature.
// A negative result is a normal outcome, not an error.
type VerificationResult struct {
	Valid  bool
	Reason Reason
}

// StepResult records one cleanup step.
type StepResult struct {
	Name      string
	Succeeded bool
	Detail    string
	Err       error
	Affected  int64
}

// CleanupOutcome collects the steps attempted for one delivery, in order.
type CleanupOutcome struct {
	Shop          string
	Topic         Topic
	UnknownTenant bool
	Unsupported   bool
	Steps         []StepResult
}

func (o *CleanupOutcome) append(s StepResult) {
	o.Steps = append(o.Steps, s)
}

// Failed returns the steps that did not succeed.
func (o *CleanupOutcome) Failed() []StepResult {
	var failed []StepResult
	for _, s := range o.Steps {
		if !s.Succeeded {
			failed = append(failed, s)
		}
	}
	return failed
}

// Succeeded reports whether every attempted step succeeded.
func (o *CleanupOutcome) Succeeded() bool {
	return len(o.Failed()) == 0
}

// Affected sums the records touched across all steps.
func (o *CleanupOutcome) Affected() int64 {
	var n int64
	for _, s := range o.Steps {
		n += s.Affected
	}
	return n
}

// Response is what the endpoint writes back to the platform.
type Response struct {
	StatusCode int
	Body       string
}

// Default values
const (
	DefaultMaxBodySize    = 1048576 // 1 MB
	DefaultStepTimeout    = 5 * time.Second
	DefaultRequestTimeout = 20 * time.Second
)
