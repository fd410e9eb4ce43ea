package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/mattn/go-runewidth"
	"golang.org/x/sys/unix"
)

func IsTTY() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func TermSize() (w, h int) {
	ws, err := unix.IoctlGetWinsize(int(os.Stdout.Fd()), unix.TIOCGWINSZ)
	if err != nil || ws == nil || ws.Col == 0 || ws.Row == 0 {
		return 80, 24
	}
	return int(ws.Col), int(ws.Row)
}

func displayWidth(s string) int { return runewidth.StringWidth(s) }

func truncateToCells(s string, max int) string { return runewidth.Truncate(s, max, "") }

func padToCellsRight(s string, w int) string { return runewidth.FillRight(s, w) }

type colorStyle struct {
	open    string
	enabled bool
}

func (cs colorStyle) S(s string) string {
	if !cs.enabled {
		return s
	}
	return cs.open + s + "\x1b[0m"
}

var (
	StyleBold, StyleFaint                        colorStyle
	StyleRed, StyleGreen, StyleYellow, StyleCyan colorStyle
)

func InitColorStyles(enabled bool) {
	style := func(open string) colorStyle {
		return colorStyle{open: open, enabled: enabled}
	}
	StyleBold = style("\x1b[1m")
	StyleFaint = style("\x1b[2m")
	StyleRed = style("\x1b[31m")
	StyleGreen = style("\x1b[32m")
	StyleYellow = style("\x1b[33m")
	StyleCyan = style("\x1b[36m")
}

func humanMs(ms float64) string {
	if ms < 1000 {
		return fmt.Sprintf("%.2fms", ms)
	}
	return fmt.Sprintf("%.2fs", ms/1000)
}

func humanETA(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%02dh%02dm%02ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%02dm%02ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func humanCount(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
