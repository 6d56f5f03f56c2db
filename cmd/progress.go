package main

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/tiagowl/ImgMigrator/internal/tasks"
)

// progressPrinter renders engine updates: a bar on terminals, one line per phase otherwise.
type progressPrinter struct {
	w       io.Writer
	palette *Palette
	bar     *progressbar.ProgressBar
}

func newProgressPrinter(w io.Writer, palette *Palette, interactive bool) *progressPrinter {
	p := &progressPrinter{w: w, palette: palette}
	if interactive {
		p.bar = progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Transferring"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionThrottle(100*time.Millisecond),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	return p
}

// consume drains updates until the channel is closed.
func (p *progressPrinter) consume(updates <-chan tasks.ProgressUpdate) {
	for update := range updates {
		p.handle(update)
	}
	if p.bar != nil {
		p.bar.Finish()
		io.WriteString(p.w, "\n")
	}
}

func (p *progressPrinter) handle(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.TransferItems:
		if p.bar == nil {
			if update.Step%50 == 0 || update.Step == update.Total {
				io.WriteString(p.w, update.Message+"\n")
			}
			return
		}
		if update.Total > 0 {
			p.bar.ChangeMax(update.Total)
		}
		p.bar.Set(update.Step)
		p.bar.Describe(update.Message)
	case tasks.Finish:
		if p.bar != nil {
			p.bar.Set(update.Step)
		}
	default:
		line := p.palette.Muted("→ " + update.Message)
		if p.bar != nil {
			p.bar.Describe(update.Message)
			return
		}
		io.WriteString(p.w, line+"\n")
	}
}
