package rules

import (
	"fmt"
	"strings"

	"github.com/marcelocantos/retrack/internal/argv"
)

// Hardcoded returns the built-in rules that are always enforced regardless of
// configuration or retry. Each guards against a call the backend cannot
// complete or would misread.
func Hardcoded() []CheckFunc {
	return []CheckFunc{
		checkFlagLikePositional,
		checkResetConfirm,
	}
}

// checkFlagLikePositional refuses positional values the backend's argument
// parser would take for an option, e.g. a project named "--force".
func checkFlagLikePositional(req argv.Request) error {
	for _, p := range req.Positional {
		if strings.HasPrefix(strings.TrimSpace(p), "-") {
			return fmt.Errorf("%s: positional value %q looks like a flag. This call is permanently blocked", req.Name(), p)
		}
	}
	return nil
}

// checkResetConfirm refuses reset without --confirm: the backend would stop
// at an interactive prompt on an empty stdin and abort.
func checkResetConfirm(req argv.Request) error {
	if req.Subject != "reset" || req.Verb != "" {
		return nil
	}
	if _, ok := firstFlag(req.Flags(), "--confirm"); !ok {
		return fmt.Errorf("reset: refusing to run without --confirm; the backend would block on its confirmation prompt")
	}
	return nil
}
