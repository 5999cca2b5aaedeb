package auth

import (
	"crypto/rand"
	"math/big"
	"time"
)

// TimingConfig controls the padding applied to failed credential checks.
type TimingConfig struct {
	BaseDelay   time.Duration
	RandomDelay time.Duration
}

// TimingDelay pads failed credential checks so that "unknown account" and
// "wrong password" take roughly the same time.
type TimingDelay struct {
	config TimingConfig
}

func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// target returns base + a crypto-random jitter in [0, RandomDelay).
func (td *TimingDelay) target() time.Duration {
	d := td.config.BaseDelay
	if td.config.RandomDelay > 0 {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(td.config.RandomDelay)))
		if err == nil {
			d += time.Duration(n.Int64())
		}
	}
	return d
}

// WaitFrom sleeps until at least the target delay has elapsed since start.
// Successful checks return immediately.
func (td *TimingDelay) WaitFrom(start time.Time, success bool) {
	if td == nil || success {
		return
	}

	if remaining := td.target() - time.Since(start); remaining > 0 {
		time.Sleep(remaining)
	}
}
