// Package syncer reconciles drift in the staged copy back into the
// source template, hunk by hunk. An application writing through the
// deployed symlink edits the staged file; sync is how those edits get
// home without clobbering hand edits or template markup.
package syncer

import (
	"fmt"
	"strings"

	"github.com/muesli/termenv"
)

// Hunk is one contiguous run of line differences between the generated
// snapshot and the staged copy. Line numbers are zero-based positions in
// the generated snapshot (OldStart) and staged content (NewStart); lines
// keep their terminators.
type Hunk struct {
	OldStart int
	NewStart int
	Removed  []string
	Inserted []string

	// Conflict marks a hunk that cannot be applied mechanically: the
	// source no longer matches the expected lines, or the range touches
	// template markup. Conflicted hunks default to Skip.
	Conflict bool

	// Reason explains the conflict for the user.
	Reason string
}

// Action is the decision for one hunk.
type Action int

const (
	// ActionSkip leaves the source untouched for this hunk.
	ActionSkip Action = iota

	// ActionApply writes the staged lines into the source range.
	ActionApply

	// ActionEdit replaces the source range with caller-supplied text.
	ActionEdit
)

// Decision carries the chosen action and, for ActionEdit, the
// replacement text.
type Decision struct {
	Action Action
	Text   string
}

// Resolver decides what to do with each hunk. Implementations include
// the interactive prompt and scripted test resolvers.
type Resolver interface {
	Resolve(src string, hunk Hunk) (Decision, error)
}

// Format renders a hunk for display, colored when the profile allows.
func Format(profile termenv.Profile, hunk Hunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "@@ line %d @@", hunk.OldStart+1)
	if hunk.Conflict {
		fmt.Fprintf(&b, " CONFLICT: %s", hunk.Reason)
	}
	b.WriteString("\n")
	for _, line := range hunk.Removed {
		b.WriteString(termenv.String("-" + strings.TrimSuffix(line, "\n")).
			Foreground(profile.Color("1")).String())
		b.WriteString("\n")
	}
	for _, line := range hunk.Inserted {
		b.WriteString(termenv.String("+" + strings.TrimSuffix(line, "\n")).
			Foreground(profile.Color("2")).String())
		b.WriteString("\n")
	}
	return b.String()
}

// splitKeepEnds splits text into lines keeping their "\n" terminators.
// A final line without a terminator is kept as-is; empty text yields nil.
func splitKeepEnds(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
