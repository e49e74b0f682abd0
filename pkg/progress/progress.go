// Package progress decouples the report fetch state machine from any
// particular output medium. The fetcher emits one event per attempt outcome;
// reporters decide how to render liveness for a run that may span thousands
// of records.
package progress

import (
	"fmt"
	"io"
	"sync"
)

// Outcome is the result of one fetch attempt for one report.
type Outcome string

const (
	// OutcomeSuccess means the report body was received and recorded.
	OutcomeSuccess Outcome = "success"

	// OutcomeRetrying means the service returned an empty body; the
	// attempt will be repeated after a short delay.
	OutcomeRetrying Outcome = "retrying"

	// OutcomeRateLimited means an unexpected status was received; the
	// attempt will be repeated after a long delay.
	OutcomeRateLimited Outcome = "rate_limited"

	// OutcomeNetworkError means the request failed at the transport level;
	// the attempt will be repeated and does not count against the cap.
	OutcomeNetworkError Outcome = "network_error"

	// OutcomeFailed means the attempt cap was exhausted; the report is
	// permanently skipped.
	OutcomeFailed Outcome = "failed"
)

// Observer receives one event per fetch attempt.
type Observer interface {
	ReportAttempt(reportID string, outcome Outcome)
}

// Nop is an Observer that discards all events.
type Nop struct{}

// ReportAttempt implements Observer.
func (Nop) ReportAttempt(string, Outcome) {}

// ConsoleReporter prints one symbol per attempt, matching the long-standing
// console convention for this archiver:
//
//	o  success
//	.  empty body, retrying shortly
//	x  failed permanently
//	X  rate limited, long wait
//
// Network errors print nothing; they are pure noise at this granularity.
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter creates a ConsoleReporter writing to out.
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// ReportAttempt implements Observer.
func (r *ConsoleReporter) ReportAttempt(reportID string, outcome Outcome) {
	symbol := ""
	switch outcome {
	case OutcomeSuccess:
		symbol = "o"
	case OutcomeRetrying:
		symbol = "."
	case OutcomeFailed:
		symbol = "x"
	case OutcomeRateLimited:
		symbol = "X"
	}
	if symbol == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprint(r.out, symbol)
}

// Finish terminates the symbol line.
func (r *ConsoleReporter) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out)
}
