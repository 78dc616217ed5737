// Package capture grabs physical keyboards, classifies their events against
// the fixed physical layout, and forwards whatever is not suppressed through
// the synthetic output device.
package capture

import (
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sys/unix"

	"stenotap/internal/device"
	"stenotap/internal/emitter"
	"stenotap/internal/layout"
	"stenotap/internal/linux"
	"stenotap/internal/util"
)

// Consumer receives key transitions for every mapped scan code, suppressed or
// not. Callbacks run on the capture goroutine and must not block.
type Consumer interface {
	KeyDown(key string)
	KeyUp(key string)
}

// Device is the slice of an evdev handle the capture loop needs. Satisfied by
// device.Device; tests substitute pipe-backed fakes.
type Device interface {
	Fd() int
	Path() string
	Name() string
	Grab() error
	Ungrab() error
	ActiveKeys() ([]uint16, error)
	ReadEvents() ([]util.InputEvent, error)
	Close() error
}

var _ Device = (*device.Device)(nil)

// Capture owns the grabbed devices and the worker goroutine between Start and
// Cancel. The suppressed-key set may be replaced at any time; an event decided
// against a set that was just swapped out is acceptable staleness.
type Capture struct {
	devices  []Device
	sink     emitter.Output
	table    *layout.Table
	consumer Consumer
	log      *slog.Logger

	// Scan code that aborts the capture loop from the keyboard itself.
	// Zero disables it.
	emergency uint16

	mu         sync.Mutex
	suppressed map[string]struct{}

	pipeR, pipeW int
	epfd         int
	done         chan struct{}
	running      bool
}

// New prepares a capture over the given devices. The sink is borrowed, not
// owned: the caller closes it after Cancel returns.
func New(devices []Device, sink emitter.Output, table *layout.Table, consumer Consumer, log *slog.Logger) (*Capture, error) {
	if log == nil {
		log = slog.Default()
	}
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		return nil, fmt.Errorf("create cancel pipe: %w", err)
	}
	return &Capture{
		devices:    devices,
		sink:       sink,
		table:      table,
		consumer:   consumer,
		log:        log,
		suppressed: map[string]struct{}{},
		pipeR:      fds[0],
		pipeW:      fds[1],
		epfd:       -1,
	}, nil
}

// SetEmergencyKey arms a scan code that stops the capture when pressed on any
// grabbed keyboard, releasing every device on the way out.
func (c *Capture) SetEmergencyKey(code uint16) {
	c.emergency = code
}

// Suppress replaces the set of key names withheld from the rest of the
// system. Keys outside the set keep passing through to the synthetic device.
func (c *Capture) Suppress(keys []string) {
	next := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		next[key] = struct{}{}
	}
	c.mu.Lock()
	c.suppressed = next
	c.mu.Unlock()
}

func (c *Capture) isSuppressed(key string) bool {
	c.mu.Lock()
	_, ok := c.suppressed[key]
	c.mu.Unlock()
	return ok
}

// Start grabs every device and launches the worker goroutine. Grabbing waits
// per device until no key is held, otherwise the grab would wedge the held key
// in the pressed state for the rest of the session.
func (c *Capture) Start() error {
	if c.running {
		return fmt.Errorf("capture already running")
	}
	c.drainCancelPipe()
	if err := c.grabAll(); err != nil {
		return err
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		c.releaseAll()
		return fmt.Errorf("create epoll: %w", err)
	}
	watch := func(fd int) error {
		ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
		return unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &ev)
	}
	if err := watch(c.pipeR); err != nil {
		unix.Close(epfd)
		c.releaseAll()
		return fmt.Errorf("watch cancel pipe: %w", err)
	}
	for _, dev := range c.devices {
		if err := watch(dev.Fd()); err != nil {
			unix.Close(epfd)
			c.releaseAll()
			return fmt.Errorf("watch %s: %w", dev.Path(), err)
		}
	}

	c.epfd = epfd
	c.done = make(chan struct{})
	c.running = true
	go c.run()
	return nil
}

// Cancel signals the worker and waits for it to finish. Devices are
// guaranteed ungrabbed once Cancel returns, whichever way the loop exited.
func (c *Capture) Cancel() {
	if !c.running {
		return
	}
	if _, err := unix.Write(c.pipeW, []byte{'a'}); err != nil {
		c.log.Error("failed to signal capture loop", "error", err)
	}
	<-c.done
	c.running = false
}

// drainCancelPipe discards wakeup bytes left over from a Cancel that raced a
// loop which had already exited on its own, e.g. after the emergency key.
// A stale byte would otherwise stop the next run the moment it starts.
func (c *Capture) drainCancelPipe() {
	buf := make([]byte, 64)
	for {
		n, err := unix.Read(c.pipeR, buf)
		if err != nil || n == 0 {
			return
		}
	}
}

// Close releases the cancel pipe. The capture must not be running.
func (c *Capture) Close() error {
	unix.Close(c.pipeR)
	unix.Close(c.pipeW)
	return nil
}

// loopState is the per-run chording memory. It is deliberately local to one
// run: a fresh Start begins with a clean slate.
type loopState struct {
	modifiersDown map[uint16]struct{}
	chorded       map[uint16]struct{}
}

func (c *Capture) run() {
	defer close(c.done)
	defer func() {
		c.releaseAll()
		unix.Close(c.epfd)
		c.epfd = -1
	}()

	st := &loopState{
		modifiersDown: map[uint16]struct{}{},
		chorded:       map[uint16]struct{}{},
	}
	byFd := make(map[int]Device, len(c.devices))
	for _, dev := range c.devices {
		byFd[dev.Fd()] = dev
	}

	events := make([]unix.EpollEvent, 1+len(c.devices))
	drain := make([]byte, 64)
	for {
		n, err := unix.EpollWait(c.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			c.log.Error("capture poll failed", "error", err)
			return
		}
		for i := 0; i < n; i++ {
			fd := int(events[i].Fd)
			if fd == c.pipeR {
				unix.Read(c.pipeR, drain)
				return
			}
			dev, ok := byFd[fd]
			if !ok {
				continue
			}
			evs, err := dev.ReadEvents()
			if err != nil {
				c.log.Warn("device read failed", "path", dev.Path(), "error", err)
				continue
			}
			for j := range evs {
				if !c.handleEvent(st, &evs[j]) {
					return
				}
			}
		}
	}
}

// handleEvent dispatches callbacks, decides suppression and forwards. It
// returns false when the emergency key asks the loop to stop.
func (c *Capture) handleEvent(st *loopState, ev *util.InputEvent) bool {
	if ev.Type == linux.EvKey {
		if c.emergency != 0 && ev.Code == c.emergency && ev.Value == linux.KeyPressed {
			c.log.Warn("emergency release key pressed, stopping capture")
			return false
		}
		name, mapped := c.table.ReverseResolve(ev.Code)
		if mapped && c.consumer != nil {
			switch ev.Value {
			case linux.KeyPressed:
				c.consumer.KeyDown(name)
			case linux.KeyReleased:
				c.consumer.KeyUp(name)
			}
		}
		if c.shouldSuppress(st, ev, name, mapped) {
			return true
		}
	}
	if err := c.sink.WriteEvent(ev); err != nil {
		c.log.Warn("forwarding event failed", "error", err)
	}
	return true
}

// shouldSuppress implements the pass-through decision. Modifiers always pass
// and only update chording state. A key pressed while a modifier is down is
// part of a shortcut: its press passes, and its release passes too even if
// the modifier went up first, or the key would stay held and start repeating.
// Everything else is withheld exactly when its name is in the suppressed set.
func (c *Capture) shouldSuppress(st *loopState, ev *util.InputEvent, name string, mapped bool) bool {
	if layout.IsModifier(ev.Code) {
		switch ev.Value {
		case linux.KeyPressed:
			st.modifiersDown[ev.Code] = struct{}{}
		case linux.KeyReleased:
			delete(st.modifiersDown, ev.Code)
		}
		return false
	}
	if !mapped {
		return false
	}
	if ev.Value == linux.KeyPressed && len(st.modifiersDown) > 0 {
		st.chorded[ev.Code] = struct{}{}
		return false
	}
	if _, chorded := st.chorded[ev.Code]; chorded {
		if ev.Value == linux.KeyRepeated {
			return false
		}
		if ev.Value == linux.KeyReleased {
			delete(st.chorded, ev.Code)
			return false
		}
	}
	return c.isSuppressed(name)
}
