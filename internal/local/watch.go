package local

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/nghyane/llm-mux-monitor/internal/logging"
)

// DefaultDebounce coalesces bursts of writes, such as an editor save or a
// token refresh touching several auth files.
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls a function after the gateway config or auth files change.
type Watcher struct {
	fsw      *fsnotify.Watcher
	config   string
	authDir  string
	debounce time.Duration
}

// NewWatcher watches the directory of the config file and the auth
// directory. The auth directory is optional.
func (s *Source) NewWatcher(debounce time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	w := &Watcher{fsw: fsw, config: filepath.Clean(s.configPath), debounce: debounce}

	if err := fsw.Add(filepath.Dir(w.config)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if dir, err := s.AuthDir(); err == nil {
		dir = filepath.Clean(dir)
		if dir != filepath.Dir(w.config) {
			if errAdd := fsw.Add(dir); errAdd != nil {
				log.Warnf("watch auth dir %s: %v", dir, errAdd)
			} else {
				w.authDir = dir
			}
		} else {
			w.authDir = dir
		}
	}
	return w, nil
}

// relevant reports whether an event touches the config file or an auth file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == w.config {
		return true
	}
	return w.authDir != "" && filepath.Dir(name) == w.authDir &&
		strings.HasSuffix(strings.ToLower(name), ".json")
}

// Run blocks until ctx is done, calling onChange once per quiet period after
// relevant events. The watcher is closed on return.
func (w *Watcher) Run(ctx context.Context, onChange func()) {
	defer func() {
		if err := w.fsw.Close(); err != nil {
			log.Errorf("close file watcher: %v", err)
		}
	}()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			log.Debugf("file change: %s %s", ev.Op, ev.Name)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			onChange()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warnf("file watcher: %v", err)
		}
	}
}
