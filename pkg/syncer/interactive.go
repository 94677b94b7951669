package syncer

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"

	"github.com/logannc/janus/pkg/types"
)

// InteractiveResolver shows each hunk and asks the prompter for a
// decision. Conflicted hunks default to Skip.
type InteractiveResolver struct {
	Prompter types.Prompter
	Out      io.Writer
}

func (r *InteractiveResolver) Resolve(src string, hunk Hunk) (Decision, error) {
	profile := termenv.EnvColorProfile()
	fmt.Fprintf(r.Out, "%s:\n%s", src, Format(profile, hunk))

	defaultIndex := 0 // Apply
	if hunk.Conflict {
		defaultIndex = 1 // Skip
	}
	choice, err := r.Prompter.Select("Apply this change to the source?",
		[]string{"Apply", "Skip", "Edit"}, defaultIndex)
	if err != nil {
		return Decision{}, err
	}
	switch choice {
	case 0:
		return Decision{Action: ActionApply}, nil
	case 2:
		text, err := r.Prompter.Input("Replacement text", strings.Join(hunk.Inserted, ""))
		if err != nil {
			return Decision{}, err
		}
		return Decision{Action: ActionEdit, Text: text}, nil
	default:
		return Decision{Action: ActionSkip}, nil
	}
}
