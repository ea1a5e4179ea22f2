package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"platter/internal/encode"
	"platter/internal/plan"
	"platter/internal/ripper"
)

// newProgressSink returns a per-entry progress bar factory, or nil when
// stdout is not a terminal.
func newProgressSink() ripper.ProgressSink {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return nil
	}
	return func(entry plan.Entry) encode.ProgressFunc {
		bar := progressbar.NewOptions(100,
			progressbar.OptionSetDescription(entry.Label()),
			progressbar.OptionSetWriter(os.Stdout),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
		return func(p encode.Progress) {
			_ = bar.Set(int(p.Percent))
			if p.FPS > 0 {
				bar.Describe(fmt.Sprintf("%s (%.0f fps)", entry.Label(), p.FPS))
			}
		}
	}
}
