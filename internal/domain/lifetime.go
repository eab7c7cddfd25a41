package domain

import "time"

// LedgerInterval is the nominal time between ledgers; lifetimes are configured in ledgers.
const LedgerInterval = 5 * time.Second

// Lifetime controls how far a commit pushes out the expiry of a dataset.
// A commit extends the dataset to ExtendTo only when less than Threshold remains.
type Lifetime struct {
	Threshold time.Duration
	ExtendTo  time.Duration
}

var DefaultLifetime = LedgerLifetime(5000, 5000)

func LedgerLifetime(threshold, extendTo uint32) Lifetime {
	return Lifetime{
		Threshold: time.Duration(threshold) * LedgerInterval,
		ExtendTo:  time.Duration(extendTo) * LedgerInterval,
	}
}

// NeedsExtension reports whether a dataset expiring at deadline should be
// extended at now. A zero deadline means the dataset has never been extended.
func (l Lifetime) NeedsExtension(deadline, now time.Time) bool {
	if deadline.IsZero() {
		return true
	}
	return deadline.Sub(now) < l.Threshold
}
