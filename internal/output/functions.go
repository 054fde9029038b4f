package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tanq16/swarm/internal/utils"
	"golang.org/x/term"
)

func FormatSpeed(bytes int64, elapsed time.Duration) string {
	if elapsed <= 0 {
		return "0 B/s"
	}
	bps := float64(bytes) / elapsed.Seconds()
	return utils.FormatBytes(uint64(bps)) + "/s"
}

func ProgressBar(current, total int64, width int) string {
	if width <= 0 {
		width = 30
	}
	if total <= 0 {
		total = 1
	}
	current = max(0, min(current, total))
	percent := float64(current) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := StyleSymbols["bullet"] + strings.Repeat(StyleSymbols["hline"], filled) + strings.Repeat(" ", width-filled) + StyleSymbols["bullet"]
	return fmt.Sprintf("%s %.1f%%", bar, percent*100)
}

// terminalSize falls back to 80x24 for anything that is not a terminal.
func terminalSize(w io.Writer) (width, height int) {
	if f, ok := w.(*os.File); ok {
		if width, height, err := term.GetSize(int(f.Fd())); err == nil && width > 0 && height > 0 {
			return width, height
		}
	}
	return 80, 24
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func truncate(text string, width int) string {
	if width <= 3 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= width {
		return text
	}
	return string(runes[:width-3]) + "..."
}
