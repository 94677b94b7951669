package pipeline

import (
	"fmt"
	"strings"

	"github.com/logannc/janus/pkg/errors"
)

// Result is the outcome of one operation on one file.
type Result struct {
	Src    string
	Action string
	Err    error
}

// Report collects per-file results for a run. Files fail independently;
// the report decides the process exit status at the end.
type Report struct {
	Results []Result
}

// Add records one file's outcome.
func (r *Report) Add(src, action string, err error) {
	r.Results = append(r.Results, Result{Src: src, Action: action, Err: err})
}

// Failed returns the results that carry errors.
func (r *Report) Failed() []Result {
	var failed []Result
	for _, res := range r.Results {
		if res.Err != nil {
			failed = append(failed, res)
		}
	}
	return failed
}

// Err summarizes the run: nil when every file succeeded, otherwise an
// error listing each failed file.
func (r *Report) Err() error {
	failed := r.Failed()
	if len(failed) == 0 {
		return nil
	}
	var lines []string
	for _, res := range failed {
		lines = append(lines, fmt.Sprintf("  %s: %s: %v", res.Src, res.Action, res.Err))
	}
	return errors.Newf(errors.ErrPipelineBatch, "%d of %d files failed:\n%s",
		len(failed), len(r.Results), strings.Join(lines, "\n"))
}

// Merge appends another report's results.
func (r *Report) Merge(other *Report) {
	r.Results = append(r.Results, other.Results...)
}
