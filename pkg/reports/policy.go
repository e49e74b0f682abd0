package reports

import "time"

// RetryPolicy is the per-record retry/backoff policy applied by the batch
// fetcher. Delays are fields rather than constants so tests can inject
// near-zero values.
type RetryPolicy struct {
	// MaxAttempts caps empty-body retries per report. Exceeding the cap
	// drops the report from the result set; it does not fail the run.
	MaxAttempts int

	// ShortDelay is slept after an empty body before re-attempting.
	ShortDelay time.Duration

	// LongDelay is slept after an unexpected status. This is the
	// rate-limit backoff and is deliberately minutes-scale; it has no
	// attempt cap because the block is assumed temporary.
	LongDelay time.Duration

	// NetworkDelay is slept after a transport-level error. Network
	// retries do not count against MaxAttempts.
	NetworkDelay time.Duration
}

// DefaultRetryPolicy returns the delays tuned against Battlelog's observed
// throttling behavior.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  6,
		ShortDelay:   3 * time.Second,
		LongDelay:    10 * time.Minute,
		NetworkDelay: 10 * time.Second,
	}
}
