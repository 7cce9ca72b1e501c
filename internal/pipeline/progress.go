package pipeline

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

// logEvery is the row interval between progress log lines.
const logEvery = 10

// Progress receives per-row progress. Step is called with the 1-based count
// of finished rows.
type Progress interface {
	Step(done, total int)
	Done()
}

func newProgress(total int, log *zap.Logger) Progress {
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return &barProgress{bar: progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Geocoding shops"),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)}
	}
	return &logProgress{log: log}
}

type barProgress struct {
	bar *progressbar.ProgressBar
}

func (p *barProgress) Step(int, int) {
	_ = p.bar.Add(1)
}

func (p *barProgress) Done() {
	_ = p.bar.Finish()
}

// logProgress logs every logEvery rows and at the last row.
type logProgress struct {
	log *zap.Logger
}

func (p *logProgress) Step(done, total int) {
	if done%logEvery == 0 || done == total {
		p.log.Info("pipeline: progress", zap.Int("processed", done), zap.Int("total", total))
	}
}

func (p *logProgress) Done() {}
