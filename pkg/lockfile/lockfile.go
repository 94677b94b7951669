// Package lockfile serializes mutating janus runs with a file lock in
// the dotfiles directory.
package lockfile

import (
	"time"

	"github.com/gofrs/flock"

	"github.com/logannc/janus/pkg/errors"
	"github.com/logannc/janus/pkg/logging"
)

var log = logging.GetLogger("lockfile")

const retryInterval = 200 * time.Millisecond

// Lock is a held process lock. Release it with Unlock.
type Lock struct {
	flock *flock.Flock
}

// Acquire takes the lock at path, retrying until timeout. A zero
// timeout tries exactly once.
func Acquire(path string, timeout time.Duration) (*Lock, error) {
	fl := flock.New(path)
	deadline := time.Now().Add(timeout)
	for {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, errors.Wrapf(err, errors.ErrLockHeld, "failed to acquire lock %s", path)
		}
		if locked {
			return &Lock{flock: fl}, nil
		}
		if time.Now().After(deadline) {
			return nil, errors.Newf(errors.ErrLockHeld,
				"another janus instance holds %s", path)
		}
		log.Debug().Str("path", path).Msg("Lock held, retrying")
		time.Sleep(retryInterval)
	}
}

// Unlock releases the lock. Safe to call on a nil Lock.
func (l *Lock) Unlock() {
	if l == nil {
		return
	}
	if err := l.flock.Unlock(); err != nil {
		log.Warn().Err(err).Str("path", l.flock.Path()).Msg("Failed to release lock")
	}
}
