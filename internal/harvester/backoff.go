package harvester

import "time"

// Backoff grows linearly with consecutive empty cycles up to a ceiling.
type Backoff struct {
	Increment   time.Duration
	MaxMultiple int
}

// Delay returns min(Increment*k, Increment*MaxMultiple) for k consecutive
// empty cycles. k <= 0 means no delay.
func (b Backoff) Delay(k int) time.Duration {
	if k <= 0 {
		return 0
	}

	if k > b.MaxMultiple {
		k = b.MaxMultiple
	}

	return b.Increment * time.Duration(k)
}

// Ceiling is the largest delay Delay can return.
func (b Backoff) Ceiling() time.Duration {
	return b.Increment * time.Duration(b.MaxMultiple)
}
