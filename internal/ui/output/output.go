// Package output builds termenv outputs that share one color policy.
package output

import (
	"io"
	"os"

	"github.com/muesli/termenv"
)

// Profile selects a color profile.
type Profile func() termenv.Profile

// Detect inspects the environment. NO_COLOR always wins.
func Detect() termenv.Profile {
	if noColor() {
		return termenv.Ascii
	}
	return termenv.EnvColorProfile()
}

// ANSI returns the 16 color profile used for CI logs. NO_COLOR always wins.
func ANSI() termenv.Profile {
	if noColor() {
		return termenv.Ascii
	}
	return termenv.ANSI
}

func noColor() bool {
	return os.Getenv("NO_COLOR") != ""
}

// New creates an output on w with the detected profile. A nil w writes to stderr.
func New(w io.Writer, opts ...termenv.OutputOption) *termenv.Output {
	return NewWithProfile(w, Detect, opts...)
}

// NewWithProfile creates an output on w whose profile is chosen by profile.
func NewWithProfile(w io.Writer, profile Profile, opts ...termenv.OutputOption) *termenv.Output {
	if w == nil {
		w = os.Stderr
	}
	opts = append(opts, termenv.WithProfile(profile()), termenv.WithTTY(true))
	return termenv.NewOutput(w, opts...)
}
