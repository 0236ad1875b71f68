package monitor

import (
	"sync"
	"time"

	"github.com/nghyane/llm-mux-monitor/internal/usage"
)

type viewKey struct {
	dataset *usage.Dataset
	window  usage.Window
	filter  string
}

// View memoizes the filtered dataset. A call with the same dataset pointer,
// window and filter as the previous one returns the previous result without
// filtering again.
type View struct {
	mu   sync.Mutex
	key  viewKey
	out  *usage.Dataset
	set  bool
	now  func() time.Time
	runs int
}

// NewView returns an empty memo.
func NewView() *View {
	return &View{now: time.Now}
}

// Filtered returns ds restricted to window and filter.
func (v *View) Filtered(ds *usage.Dataset, window usage.Window, filter string) *usage.Dataset {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := viewKey{dataset: ds, window: window, filter: filter}
	if v.set && v.key == key {
		return v.out
	}
	v.out = usage.Filter(ds, window, filter, v.now())
	v.key = key
	v.set = true
	v.runs++
	return v.out
}
