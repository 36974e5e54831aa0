package prompt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownMode is returned for a mode name that is not one of Modes().
var ErrUnknownMode = errors.New("unknown prompt mode")

// Mode selects a prompting strategy.
type Mode string

const (
	ModeZeroShot      Mode = "zero-shot"
	ModeFewShot       Mode = "few-shot"
	ModeChainZeroShot Mode = "cor-zero-shot"
	ModeChainFewShot  Mode = "cor-few-shot"
)

// Modes lists every supported mode.
func Modes() []Mode {
	return []Mode{ModeZeroShot, ModeFewShot, ModeChainZeroShot, ModeChainFewShot}
}

// ParseMode accepts a mode name case-insensitively, with '_' or '-' separators.
func ParseMode(s string) (Mode, error) {
	norm := Mode(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-"))
	for _, m := range Modes() {
		if m == norm {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// UsesExamples reports whether the mode interpolates training pairs.
func (m Mode) UsesExamples() bool {
	return m == ModeFewShot || m == ModeChainFewShot
}

// Calls returns the number of chat calls the mode performs.
func (m Mode) Calls() int {
	switch m {
	case ModeChainZeroShot, ModeChainFewShot:
		return 2
	case ModeZeroShot, ModeFewShot:
		return 1
	}
	return 0
}

func (m Mode) String() string { return string(m) }
