// anytrack/progress_display.go
package main

import (
	"io"
	"log/slog"
	"sync"

	"anytrack/operation"

	"github.com/schollz/progressbar/v3"
)

// progressDisplay renders operation progress as a bar on terminals and as
// log lines everywhere else.
type progressDisplay struct {
	mu     sync.Mutex
	bar    *progressbar.ProgressBar
	logger *slog.Logger
	last   operation.Phase
}

func newProgressDisplay(w io.Writer, logger *slog.Logger) *progressDisplay {
	d := &progressDisplay{logger: logger}
	if isTerminal(w) {
		d.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Processing"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}
	return d
}

func (d *progressDisplay) update(st operation.State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bar != nil {
		_ = d.bar.Set(int(st.Progress))
		return
	}
	if st.Phase != d.last {
		d.logger.Info("operation "+string(st.Phase), "operation", st.ID, "progress", st.Progress)
		d.last = st.Phase
		return
	}
	d.logger.Debug("progress", "operation", st.ID, "progress", st.Progress)
}

func (d *progressDisplay) finish(st operation.State) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.bar == nil {
		return
	}
	if st.Phase == operation.Succeeded {
		_ = d.bar.Finish()
		return
	}
	_ = d.bar.Exit()
}
