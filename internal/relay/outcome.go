package relay

import "fmt"

// Status classifies the terminal or intermediate result of a relay attempt.
type Status int

const (
	// StatusSuccess means the document is stored at the destination.
	StatusSuccess Status = iota
	// StatusRetryable means the attempt failed in a way that may succeed
	// if repeated (network failure, 5xx).
	StatusRetryable
	// StatusFatal means no further attempt can help for this scan.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusRetryable:
		return "retryable"
	case StatusFatal:
		return "fatal"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Outcome is the result of relaying one document.
type Outcome struct {
	Status   Status
	Reason   string // human-readable cause for non-success outcomes
	Attempts int    // attempts actually made
	Auth     bool   // true when the failure was a credential rejection
}

// Err returns the outcome as an error, nil on success.
func (o Outcome) Err() error {
	if o.Status == StatusSuccess {
		return nil
	}
	return fmt.Errorf("relay %s after %d attempt(s): %s", o.Status, o.Attempts, o.Reason)
}
