package quoter

import (
	"errors"
	"fmt"
	"strings"
)

var (
	errNegativeAmount   = errors.New("quoter: amount must be non-negative")
	errNoQuoterAddress  = errors.New("quoter: no quoter address configured for chain")
	errPendingAfterJoin = errors.New("quoter: batch still pending after attempt join")
	errEmptyRoutePools  = errors.New("quoter: route must have at least one pool")
)

// CallError is the single aggregated error surfaced to the caller when the
// retry budget is exhausted (§7, per-call failure surface). It carries the
// failure kinds observed on the final attempt.
type CallError struct {
	Kinds []FailureKind
	Last  error
}

func (e *CallError) Error() string {
	names := make([]string, len(e.Kinds))
	for i, k := range e.Kinds {
		names[i] = k.String()
	}
	return fmt.Sprintf("quoter: retry budget exhausted after kinds [%s]: %v", strings.Join(names, ", "), e.Last)
}

func (e *CallError) Unwrap() error { return e.Last }
