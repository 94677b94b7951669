package secrets

import (
	"os/exec"
	"strings"

	"github.com/logannc/janus/pkg/errors"
)

// opEngine shells out to the 1Password CLI. References are op:// URIs
// passed straight to `op read`.
type opEngine struct{}

// NewCLIEngine creates the production secret engine. It currently
// supports the "1password" backend via the op CLI.
func NewCLIEngine() *opEngine {
	return &opEngine{}
}

func (e *opEngine) Resolve(engine, reference string) (string, error) {
	if engine != "1password" {
		return "", errors.Newf(errors.ErrSecretEngine, "unsupported secret engine %q", engine)
	}
	out, err := exec.Command("op", "read", reference).Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return "", errors.Newf(errors.ErrSecretEngine, "op read %s: %s",
				reference, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", errors.Wrapf(err, errors.ErrSecretEngine, "failed to run op read %s", reference)
	}
	value := strings.TrimRight(string(out), "\r\n")
	if value == "" {
		return "", errors.Newf(errors.ErrSecretEngine, "op read %s returned an empty value", reference)
	}
	return value, nil
}
