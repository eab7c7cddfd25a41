package clock

import "time"

// System reports wall-clock Unix seconds.
type System struct{}

func (System) Now() uint64 {
	return uint64(time.Now().Unix())
}

// Fixed always reports the same instant.
type Fixed uint64

func (f Fixed) Now() uint64 {
	return uint64(f)
}
