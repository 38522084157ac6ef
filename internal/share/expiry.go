package share

import (
	"fmt"
	"time"
)

// Accepted expiresIn values.
const (
	ExpiresOneDay     = "1d"
	ExpiresSevenDays  = "7d"
	ExpiresThirtyDays = "30d"
	ExpiresNever      = "never"
)

var expiryDurations = map[string]time.Duration{
	ExpiresOneDay:     24 * time.Hour,
	ExpiresSevenDays:  7 * 24 * time.Hour,
	ExpiresThirtyDays: 30 * 24 * time.Hour,
}

// ExpiresAt converts an expiresIn value to an absolute time. "never" and the
// empty string return nil.
func ExpiresAt(expiresIn string, now time.Time) (*time.Time, error) {
	if expiresIn == "" || expiresIn == ExpiresNever {
		return nil, nil
	}
	d, ok := expiryDurations[expiresIn]
	if !ok {
		return nil, fmt.Errorf("%w: expiresIn must be one of 1d, 7d, 30d, never (got %q)", ErrInvalidInput, expiresIn)
	}
	t := now.Add(d).UTC()
	return &t, nil
}
