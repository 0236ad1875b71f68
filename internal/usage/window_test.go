package usage

import (
	"testing"
	"time"
)

func TestParseWindow(t *testing.T) {
	tests := []struct {
		in      string
		want    Window
		wantErr bool
	}{
		{"", DefaultWindow, false},
		{"1", Window1d, false},
		{"24h", Window1d, false},
		{"7", Window7d, false},
		{"7d", Window7d, false},
		{" 14D ", Window14d, false},
		{"30", Window30d, false},
		{"3", 0, true},
		{"week", 0, true},
		{"-7", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseWindow(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseWindow(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseWindow(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWindowCutoff(t *testing.T) {
	now := time.Date(2026, 3, 30, 0, 0, 0, 0, time.UTC)
	for _, w := range ValidWindows {
		if got := now.Sub(w.Cutoff(now)); got != time.Duration(w.Days())*24*time.Hour {
			t.Errorf("%v: cutoff distance %v", w, got)
		}
	}
}

func TestWindowLabels(t *testing.T) {
	for _, w := range ValidWindows {
		if !w.Valid() {
			t.Errorf("%v should be valid", w)
		}
		if w.Label() == "" {
			t.Errorf("%v has no label", w)
		}
	}
	if Window(3).Valid() {
		t.Error("3 days is not a supported window")
	}
	if Window7d.String() != "7d" {
		t.Errorf("String = %q", Window7d.String())
	}
}
