// Package retry guards mutations of a contended configuration store.
//
// Only lock contention is retried. Any other failure is a logic error or a
// missing resource and is returned on the first attempt.
package retry

import (
	"math/rand"
	"time"

	"github.com/CircleCI-Public/ssh-deploy-keys/errs"
	"github.com/CircleCI-Public/ssh-deploy-keys/logger"
)

const (
	DefaultMaxTries   = 3
	DefaultMaxBackoff = 2000 * time.Millisecond
)

// Policy describes how often and how long to wait between attempts.
// The zero value is usable and behaves like Default().
type Policy struct {
	MaxTries   int
	MaxBackoff time.Duration

	// Sleep and Jitter are injectable for tests.
	Sleep  func(time.Duration)
	Jitter func(n int64) int64

	Log *logger.Logger
}

// Default returns the policy used against the global git configuration.
func Default(log *logger.Logger) Policy {
	return Policy{
		MaxTries:   DefaultMaxTries,
		MaxBackoff: DefaultMaxBackoff,
		Sleep:      time.Sleep,
		Jitter:     rand.Int63n,
		Log:        log,
	}
}

// Do runs op until it succeeds, fails with a non-contention error, or the
// attempt budget is spent. The last error is returned unchanged.
func (p Policy) Do(op func() error) error {
	maxTries := p.MaxTries
	if maxTries < 1 {
		maxTries = DefaultMaxTries
	}

	tries := 0
	for {
		err := op()
		if err == nil {
			return nil
		}
		if !errs.IsLockContention(err) {
			return err
		}

		p.debug("%s", err)
		tries++
		if tries >= maxTries {
			return err
		}

		delay := p.backoff()
		p.debug("Retrying in %dms...", delay.Milliseconds())
		p.sleep(delay)
	}
}

// backoff picks a delay in [0, MaxBackoff).
func (p Policy) backoff() time.Duration {
	maxBackoff := p.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = DefaultMaxBackoff
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = rand.Int63n
	}
	return time.Duration(jitter(int64(maxBackoff)))
}

func (p Policy) sleep(d time.Duration) {
	if p.Sleep == nil {
		time.Sleep(d)
		return
	}
	p.Sleep(d)
}

func (p Policy) debug(format string, args ...interface{}) {
	if p.Log != nil {
		p.Log.Debug(format, args...)
	}
}
