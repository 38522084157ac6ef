package webhook

import (
	"log/slog"
	"net/http"
)

// Response bodies. Internal failures never show up in what the platform sees.
const (
	BodyUnauthorized = "unauthorized"
	BodyAcknowledged = "acknowledged"
	BodyProcessed    = "webhook processed"
	BodyRetryLater   = "cleanup incomplete, retry later"
)

// Responder maps verification and cleanup outcomes to the HTTP answer.
//
// With RetryOnPartialFailure unset (the default) a failed cleanup step still
// answers 200 so the platform does not redeliver; the failure is visible only
// in logs and metrics. Setting it answers 500 instead.
type Responder struct {
	RetryOnPartialFailure bool
}

// Respond is pure: it has no side effects and does not log.
func (r Responder) Respond(v VerificationResult, out *CleanupOutcome) Response {
	if !v.Valid {
		return Response{StatusCode: http.StatusUnauthorized, Body: BodyUnauthorized}
	}
	if out == nil || out.Unsupported {
		return Response{StatusCode: http.StatusOK, Body: BodyAcknowledged}
	}
	if !out.Succeeded() && r.RetryOnPartialFailure {
		return Response{StatusCode: http.StatusInternalServerError, Body: BodyRetryLater}
	}
	return Response{StatusCode: http.StatusOK, Body: BodyProcessed}
}

// Result labels used for metrics and logs.
const (
	ResultOK             = "ok"
	ResultPartialFailure = "partial_failure"
	ResultUnauthorized   = "unauthorized"
	ResultMalformed      = "malformed"
	ResultUnsupported    = "unsupported"
)

// Classify names the outcome of one delivery.
func Classify(v VerificationResult, out *CleanupOutcome) string {
	switch {
	case !v.Valid:
		return ResultUnauthorized
	case out == nil:
		return ResultMalformed
	case out.Unsupported:
		return ResultUnsupported
	case !out.Succeeded():
		return ResultPartialFailure
	default:
		return ResultOK
	}
}

// LogOutcome writes the operator-facing record of one delivery. It runs after
// Respond so response mapping stays free of logging.
func LogOutcome(logger *slog.Logger, topic Topic, v VerificationResult, out *CleanupOutcome, resp Response) {
	switch Classify(v, out) {
	case ResultUnauthorized:
		logger.Warn("webhook verification failed",
			"topic", string(topic),
			"reason", string(v.Reason),
			"status", resp.StatusCode,
		)
	case ResultMalformed:
		logger.Warn("webhook payload malformed, acknowledged without cleanup",
			"topic", string(topic),
			"status", resp.StatusCode,
		)
	case ResultUnsupported:
		logger.Info("webhook topic not handled, acknowledged",
			"topic", string(topic),
			"shop", out.Shop,
			"status", resp.StatusCode,
		)
	case ResultPartialFailure:
		failed := out.Failed()
		names := make([]string, 0, len(failed))
		for _, s := range failed {
			names = append(names, s.Name)
		}
		logger.Error("webhook cleanup partially failed",
			"topic", string(topic),
			"shop", out.Shop,
			"failed_steps", names,
			"steps", len(out.Steps),
			"status", resp.StatusCode,
		)
	default:
		logger.Info("webhook processed",
			"topic", string(topic),
			"shop", out.Shop,
			"unknown_tenant", out.UnknownTenant,
			"steps", len(out.Steps),
			"affected", out.Affected(),
			"status", resp.StatusCode,
		)
	}
}
