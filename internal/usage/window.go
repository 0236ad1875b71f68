package usage

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a trailing time window measured in whole days.
type Window int

const (
	Window1d  Window = 1
	Window7d  Window = 7
	Window14d Window = 14
	Window30d Window = 30
)

var ValidWindows = []Window{
	Window1d,
	Window7d,
	Window14d,
	Window30d,
}

// DefaultWindow is used when nothing else is configured.
const DefaultWindow = Window7d

// Days returns the window size in days.
func (w Window) Days() int {
	return int(w)
}

// Valid reports whether w is one of ValidWindows.
func (w Window) Valid() bool {
	for _, v := range ValidWindows {
		if v == w {
			return true
		}
	}
	return false
}

func (w Window) Label() string {
	switch w {
	case Window1d:
		return "24h"
	case Window7d:
		return "7 Days"
	case Window14d:
		return "14 Days"
	case Window30d:
		return "30 Days"
	default:
		return fmt.Sprintf("%d Days", int(w))
	}
}

func (w Window) String() string {
	return strconv.Itoa(int(w)) + "d"
}

// Cutoff is the inclusive lower bound of the window ending at now. Days are
// fixed 24h spans; calendar and DST boundaries are ignored.
func (w Window) Cutoff(now time.Time) time.Time {
	return now.Add(-time.Duration(w) * 24 * time.Hour)
}

// WindowFromDays validates a day count.
func WindowFromDays(days int) (Window, error) {
	w := Window(days)
	if !w.Valid() {
		return 0, fmt.Errorf("unsupported window %d (use 1, 7, 14 or 30 days)", days)
	}
	return w, nil
}

// ParseWindow accepts "7", "7d" or "24h". An empty string yields DefaultWindow.
func ParseWindow(s string) (Window, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return DefaultWindow, nil
	case "24h":
		return Window1d, nil
	}
	days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
	if err != nil {
		return 0, fmt.Errorf("invalid window %q", s)
	}
	return WindowFromDays(days)
}
