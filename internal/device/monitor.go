package device

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ChangeKind distinguishes hotplug notifications.
type ChangeKind int

const (
	Added ChangeKind = iota
	Removed
)

// Change reports an event node appearing or disappearing under /dev/input.
type Change struct {
	Kind ChangeKind
	Path string
}

// Monitor watches /dev/input for keyboards being plugged or unplugged so a
// running capture can be torn down and rebuilt against the new device set.
type Monitor struct {
	watcher *fsnotify.Watcher
	changes chan Change
	log     *slog.Logger
}

func NewMonitor(log *slog.Logger) (*Monitor, error) {
	if log == nil {
		log = slog.Default()
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add("/dev/input"); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch /dev/input: %w", err)
	}
	m := &Monitor{
		watcher: watcher,
		changes: make(chan Change, 16),
		log:     log,
	}
	go m.run()
	return m, nil
}

// Changes delivers hotplug notifications. The channel closes when the
// monitor is closed.
func (m *Monitor) Changes() <-chan Change {
	return m.changes
}

func (m *Monitor) Close() error {
	return m.watcher.Close()
}

func (m *Monitor) run() {
	defer close(m.changes)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if !strings.HasPrefix(filepath.Base(ev.Name), "event") {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Create):
				m.deliver(Change{Kind: Added, Path: ev.Name})
			case ev.Op.Has(fsnotify.Remove):
				m.deliver(Change{Kind: Removed, Path: ev.Name})
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn("input device watcher error", "error", err)
		}
	}
}

func (m *Monitor) deliver(c Change) {
	select {
	case m.changes <- c:
	default:
		// A stale notification is harmless: the caller rescans on the
		// next change anyway.
		m.log.Debug("dropping device change notification", "path", c.Path)
	}
}
