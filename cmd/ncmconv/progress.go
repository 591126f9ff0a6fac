package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// progressRenderer shows run progress as a bar on a terminal and as
// "progress N%" lines otherwise.
type progressRenderer struct {
	out  io.Writer
	bar  *progressbar.ProgressBar
	last int
}

func newProgressRenderer(out io.Writer, total int) *progressRenderer {
	r := &progressRenderer{out: out, last: -1}
	if isTerminal(out) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription(fmt.Sprintf("converting %d file(s)", total)),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
	}
	return r
}

// Update moves the display to percent. Repeated values are ignored.
func (r *progressRenderer) Update(percent int) {
	if percent == r.last {
		return
	}
	r.last = percent
	if r.bar != nil {
		_ = r.bar.Set(percent)
		return
	}
	fmt.Fprintf(r.out, "progress %d%%\n", percent)
}

// Finish clears the bar. Line output needs no cleanup.
func (r *progressRenderer) Finish() {
	if r.bar != nil {
		_ = r.bar.Finish()
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
