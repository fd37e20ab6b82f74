package model

import "time"

// DiagnosticKind classifies a Diagnostic for the /config surface, mirroring
// the internal/errs taxonomy it is usually derived from.
type DiagnosticKind string

const (
	DiagnosticMisconfigured DiagnosticKind = "misconfigured"
	DiagnosticCorrupt       DiagnosticKind = "corrupt"
	DiagnosticTransient     DiagnosticKind = "transient"
)

// Diagnostic is one recoverable-or-not condition surfaced to operators via
// /config, raised by a Misconfigured or Corrupt error path.
type Diagnostic struct {
	Component   string         `json:"component"`
	Kind        DiagnosticKind `json:"kind"`
	Message     string         `json:"message"`
	At          time.Time      `json:"at"`
	Recoverable bool           `json:"recoverable"`
}

// ProviderHealth is the rolling health state C1's cooling/backoff and
// C4/C5's diagnostics keep per provider (or per source).
type ProviderHealth struct {
	Name                string    `json:"name"`
	CoolingUntil        time.Time `json:"cooling_until,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	LastErrorAt         time.Time `json:"last_error_at,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Cooling reports whether the provider is currently in backoff.
func (h ProviderHealth) Cooling(now time.Time) bool {
	return now.Before(h.CoolingUntil)
}

// RecordFailure advances the health record after a failed call, doubling
// the cooldown window up to a cap using the standard exponential-backoff
// shape (base 2, capped at 5 minutes) the teacher's rate limiting uses for
// login lockouts.
func (h *ProviderHealth) RecordFailure(now time.Time, err error, base time.Duration, cap time.Duration) {
	h.ConsecutiveFailures++
	h.LastError = err.Error()
	h.LastErrorAt = now

	backoff := base
	for i := 1; i < h.ConsecutiveFailures; i++ {
		backoff *= 2
		if backoff >= cap {
			backoff = cap
			break
		}
	}
	h.CoolingUntil = now.Add(backoff)
}

// RecordSuccess clears the failure streak.
func (h *ProviderHealth) RecordSuccess() {
	h.ConsecutiveFailures = 0
	h.LastError = ""
	h.CoolingUntil = time.Time{}
}
