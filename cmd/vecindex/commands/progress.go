package commands

import (
	"os"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

func progressEnabled() bool {
	return !verbose && term.IsTerminal(int(os.Stderr.Fd()))
}

// newProgress returns an OnProgress callback drawing an open-ended bar on
// stderr, and a func finishing it. Both are no-ops off a terminal.
func newProgress(desc string) (func(int), func()) {
	if !progressEnabled() {
		return nil, func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionSpinnerType(9),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	return func(done int) { _ = bar.Set(done) }, func() { _ = bar.Finish() }
}

// startSpinner shows desc with a spinner until the returned func is called.
func startSpinner(desc string) func() {
	if !progressEnabled() {
		return func() {}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(9),
		progressbar.OptionSetDescription(desc),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionThrottle(0),
	)
	_ = bar.RenderBlank()
	return func() { _ = bar.Finish() }
}
