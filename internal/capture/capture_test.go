package capture

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"stenotap/internal/layout"
	"stenotap/internal/linux"
	"stenotap/internal/util"
)

type fakeSink struct {
	mu     sync.Mutex
	events []util.InputEvent
}

func (f *fakeSink) Close() error { return nil }

func (f *fakeSink) WriteEvent(ev *util.InputEvent) error {
	f.mu.Lock()
	f.events = append(f.events, *ev)
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) SendKeyState(code uint16, pressed bool) error { return nil }
func (f *fakeSink) TapKey(code uint16) error                     { return nil }
func (f *fakeSink) Syn() error                                   { return nil }

func (f *fakeSink) forwarded() []util.InputEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]util.InputEvent, len(f.events))
	copy(out, f.events)
	return out
}

type recordingConsumer struct {
	mu    sync.Mutex
	downs []string
	ups   []string
}

func (r *recordingConsumer) KeyDown(key string) {
	r.mu.Lock()
	r.downs = append(r.downs, key)
	r.mu.Unlock()
}

func (r *recordingConsumer) KeyUp(key string) {
	r.mu.Lock()
	r.ups = append(r.ups, key)
	r.mu.Unlock()
}

func (r *recordingConsumer) snapshot() (downs, ups []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.downs...), append([]string(nil), r.ups...)
}

func keyEvent(code uint16, value int32) util.InputEvent {
	return util.InputEvent{Type: linux.EvKey, Code: code, Value: value}
}

func synEvent() util.InputEvent {
	return util.InputEvent{Type: linux.EvSyn, Code: linux.SynReport}
}

func newTestCapture(t *testing.T, devices []Device) (*Capture, *fakeSink, *recordingConsumer) {
	t.Helper()
	sink := &fakeSink{}
	consumer := &recordingConsumer{}
	table := layout.Load("qwerty", slog.Default())
	c, err := New(devices, sink, table, consumer, slog.Default())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, sink, consumer
}

func feed(t *testing.T, c *Capture, st *loopState, events ...util.InputEvent) {
	t.Helper()
	for i := range events {
		if !c.handleEvent(st, &events[i]) {
			t.Fatalf("event %d unexpectedly stopped the loop", i)
		}
	}
}

func newLoopState() *loopState {
	return &loopState{
		modifiersDown: map[uint16]struct{}{},
		chorded:       map[uint16]struct{}{},
	}
}

func TestSuppressedKeyIsWithheld(t *testing.T) {
	c, sink, consumer := newTestCapture(t, nil)
	c.Suppress([]string{"a"})
	st := newLoopState()

	feed(t, c, st,
		keyEvent(linux.KeyA, linux.KeyPressed),
		keyEvent(linux.KeyA, linux.KeyReleased))

	if got := sink.forwarded(); len(got) != 0 {
		t.Fatalf("suppressed key leaked through: %v", got)
	}
	downs, ups := consumer.snapshot()
	if len(downs) != 1 || downs[0] != "a" {
		t.Fatalf("expected key down callback for \"a\", got %v", downs)
	}
	if len(ups) != 1 || ups[0] != "a" {
		t.Fatalf("expected key up callback for \"a\", got %v", ups)
	}
}

func TestUnsuppressedKeyPassesThrough(t *testing.T) {
	c, sink, consumer := newTestCapture(t, nil)
	c.Suppress([]string{"b"})
	st := newLoopState()

	feed(t, c, st,
		keyEvent(linux.KeyA, linux.KeyPressed),
		synEvent(),
		keyEvent(linux.KeyA, linux.KeyReleased),
		synEvent())

	got := sink.forwarded()
	if len(got) != 4 {
		t.Fatalf("expected press, syn, release, syn forwarded, got %v", got)
	}
	if got[1].Type != linux.EvSyn || got[3].Type != linux.EvSyn {
		t.Fatalf("synchronization events should travel with the stream: %v", got)
	}
	downs, _ := consumer.snapshot()
	if len(downs) != 1 || downs[0] != "a" {
		t.Fatalf("callback should fire for passed-through keys too, got %v", downs)
	}
}

func TestModifiersAlwaysPass(t *testing.T) {
	c, sink, consumer := newTestCapture(t, nil)
	c.Suppress([]string{"shift", "a"})
	st := newLoopState()

	feed(t, c, st,
		keyEvent(linux.KeyLeftShift, linux.KeyPressed),
		keyEvent(linux.KeyLeftShift, linux.KeyReleased))

	if got := sink.forwarded(); len(got) != 2 {
		t.Fatalf("modifier events must always pass, got %v", got)
	}
	downs, ups := consumer.snapshot()
	if len(downs) != 1 || downs[0] != "shift" {
		t.Fatalf("modifier callback missing, got %v", downs)
	}
	if len(ups) != 1 || ups[0] != "shift" {
		t.Fatalf("modifier release callback missing, got %v", ups)
	}
}

func TestChordedKeyNeverSuppressed(t *testing.T) {
	c, sink, _ := newTestCapture(t, nil)
	c.Suppress([]string{"a"})
	st := newLoopState()

	feed(t, c, st,
		keyEvent(linux.KeyLeftCtrl, linux.KeyPressed),
		keyEvent(linux.KeyA, linux.KeyPressed),
		keyEvent(linux.KeyLeftCtrl, linux.KeyReleased),
		// The modifier went up first; the release must still pass or the
		// key would stay held and start repeating.
		keyEvent(linux.KeyA, linux.KeyReleased))

	if got := sink.forwarded(); len(got) != 4 {
		t.Fatalf("all chord events must pass, got %d: %v", len(got), got)
	}

	// The chord is over: the same key alone is suppressed again.
	feed(t, c, st,
		keyEvent(linux.KeyA, linux.KeyPressed),
		keyEvent(linux.KeyA, linux.KeyReleased))
	if got := sink.forwarded(); len(got) != 4 {
		t.Fatalf("unchorded suppressed key leaked through: %v", got[4:])
	}
}

func TestAutorepeat(t *testing.T) {
	c, sink, _ := newTestCapture(t, nil)
	c.Suppress([]string{"a"})
	st := newLoopState()

	// Repeats of a suppressed key are withheld like the press.
	feed(t, c, st,
		keyEvent(linux.KeyA, linux.KeyPressed),
		keyEvent(linux.KeyA, linux.KeyRepeated),
		keyEvent(linux.KeyA, linux.KeyReleased))
	if got := sink.forwarded(); len(got) != 0 {
		t.Fatalf("suppressed repeat leaked through: %v", got)
	}

	// Repeats inside a chord pass like the press.
	feed(t, c, st,
		keyEvent(linux.KeyLeftCtrl, linux.KeyPressed),
		keyEvent(linux.KeyA, linux.KeyPressed),
		keyEvent(linux.KeyA, linux.KeyRepeated),
		keyEvent(linux.KeyA, linux.KeyReleased),
		keyEvent(linux.KeyLeftCtrl, linux.KeyReleased))
	if got := sink.forwarded(); len(got) != 5 {
		t.Fatalf("chorded repeat should pass, got %d: %v", len(got), got)
	}
}

func TestUnmappedCodePassesWithoutCallback(t *testing.T) {
	c, sink, consumer := newTestCapture(t, nil)
	c.Suppress([]string{"a"})
	st := newLoopState()

	feed(t, c, st,
		keyEvent(0x2fe, linux.KeyPressed),
		keyEvent(0x2fe, linux.KeyReleased))

	if got := sink.forwarded(); len(got) != 2 {
		t.Fatalf("unmapped codes must pass through, got %v", got)
	}
	downs, ups := consumer.snapshot()
	if len(downs) != 0 || len(ups) != 0 {
		t.Fatalf("unmapped codes must not fire callbacks, got %v / %v", downs, ups)
	}
}

func TestSuppressReplacesSet(t *testing.T) {
	c, sink, _ := newTestCapture(t, nil)
	st := newLoopState()

	c.Suppress([]string{"a"})
	c.Suppress([]string{"b"})

	feed(t, c, st,
		keyEvent(linux.KeyA, linux.KeyPressed),
		keyEvent(linux.KeyB, linux.KeyPressed))

	got := sink.forwarded()
	if len(got) != 1 || got[0].Code != linux.KeyA {
		t.Fatalf("only \"a\" should pass after the swap, got %v", got)
	}
}

func TestEmergencyKeyStopsHandling(t *testing.T) {
	c, sink, _ := newTestCapture(t, nil)
	c.SetEmergencyKey(linux.KeyEsc)
	st := newLoopState()

	ev := keyEvent(linux.KeyEsc, linux.KeyPressed)
	if c.handleEvent(st, &ev) {
		t.Fatal("emergency press should stop the loop")
	}
	if got := sink.forwarded(); len(got) != 0 {
		t.Fatalf("emergency press should not be forwarded, got %v", got)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStartForwardsAndCancelReleases(t *testing.T) {
	dev := newFakeDevice(t, "/dev/input/event-test")
	c, sink, consumer := newTestCapture(t, []Device{dev})
	c.Suppress([]string{"a"})

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !dev.isGrabbed() {
		t.Fatal("device should be grabbed after Start")
	}

	dev.emit(t, keyEvent(linux.KeyA, linux.KeyPressed))
	dev.emit(t, keyEvent(linux.KeyB, linux.KeyPressed))
	dev.emit(t, synEvent())

	waitFor(t, "forwarded events", func() bool { return len(sink.forwarded()) >= 2 })
	got := sink.forwarded()
	if got[0].Code != linux.KeyB {
		t.Fatalf("suppressed press leaked, forwarded: %v", got)
	}
	downs, _ := consumer.snapshot()
	if len(downs) != 2 {
		t.Fatalf("callbacks should fire for both keys, got %v", downs)
	}

	c.Cancel()
	if dev.isGrabbed() {
		t.Fatal("device should be released after Cancel")
	}
}

func TestStartWaitsForHeldKeys(t *testing.T) {
	dev := newFakeDevice(t, "/dev/input/event-test")
	dev.setActive([][]uint16{{linux.KeyA}, nil})
	// A release arriving while the grab is pending unblocks the wait.
	dev.emit(t, keyEvent(linux.KeyA, linux.KeyReleased))

	c, _, _ := newTestCapture(t, []Device{dev})
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Cancel()

	if dev.activeCalls() < 2 {
		t.Fatalf("grab should re-check held keys, got %d checks", dev.activeCalls())
	}
	if !dev.isGrabbed() {
		t.Fatal("device should be grabbed once idle")
	}
}

func TestGrabFailureReleasesEarlierGrabs(t *testing.T) {
	first := newFakeDevice(t, "/dev/input/event-a")
	second := newFakeDevice(t, "/dev/input/event-b")
	second.failGrab = true

	c, _, _ := newTestCapture(t, []Device{first, second})
	if err := c.Start(); err == nil {
		c.Cancel()
		t.Fatal("Start should fail when a grab fails")
	}
	if first.isGrabbed() {
		t.Fatal("earlier grab should be rolled back")
	}
}

func TestEmergencyKeyReleasesDevices(t *testing.T) {
	dev := newFakeDevice(t, "/dev/input/event-test")
	c, _, _ := newTestCapture(t, []Device{dev})
	c.SetEmergencyKey(linux.KeyEsc)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	dev.emit(t, keyEvent(linux.KeyEsc, linux.KeyPressed))
	waitFor(t, "emergency release", func() bool { return !dev.isGrabbed() })

	// The loop already exited; Cancel just reaps it.
	c.Cancel()
}

func TestRestartAfterEmergencyRelease(t *testing.T) {
	dev := newFakeDevice(t, "/dev/input/event-test")
	c, sink, _ := newTestCapture(t, []Device{dev})
	c.SetEmergencyKey(linux.KeyEsc)

	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	dev.emit(t, keyEvent(linux.KeyEsc, linux.KeyPressed))
	waitFor(t, "emergency release", func() bool { return !dev.isGrabbed() })
	// The loop already exited; the wakeup byte Cancel writes goes unread.
	c.Cancel()

	if err := c.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer c.Cancel()

	// The new run must survive the stale wakeup and keep forwarding.
	dev.emit(t, keyEvent(linux.KeyB, linux.KeyPressed))
	waitFor(t, "forwarding after restart", func() bool { return len(sink.forwarded()) >= 1 })
	if !dev.isGrabbed() {
		t.Fatal("device should still be grabbed after restart")
	}
}

func TestStartTwiceFails(t *testing.T) {
	dev := newFakeDevice(t, "/dev/input/event-test")
	c, _, _ := newTestCapture(t, []Device{dev})
	if err := c.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Cancel()
	if err := c.Start(); err == nil {
		t.Fatal("second Start should fail")
	}
}

// fakeDevice backs ReadEvents with a real pipe so the epoll loop can wait on
// its file descriptor like on an evdev node.
type fakeDevice struct {
	r, w int
	path string

	failGrab bool

	mu       sync.Mutex
	grabbed  bool
	active   [][]uint16
	actCalls int
}

func newFakeDevice(t *testing.T, path string) *fakeDevice {
	t.Helper()
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC|unix.O_NONBLOCK); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	dev := &fakeDevice{r: fds[0], w: fds[1], path: path}
	t.Cleanup(func() { dev.Close() })
	return dev
}

func (d *fakeDevice) Fd() int      { return d.r }
func (d *fakeDevice) Path() string { return d.path }
func (d *fakeDevice) Name() string { return "fake keyboard" }

func (d *fakeDevice) Grab() error {
	if d.failGrab {
		return unix.EBUSY
	}
	d.mu.Lock()
	d.grabbed = true
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) Ungrab() error {
	d.mu.Lock()
	d.grabbed = false
	d.mu.Unlock()
	return nil
}

func (d *fakeDevice) isGrabbed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.grabbed
}

func (d *fakeDevice) setActive(seq [][]uint16) {
	d.mu.Lock()
	d.active = seq
	d.mu.Unlock()
}

func (d *fakeDevice) activeCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.actCalls
}

func (d *fakeDevice) ActiveKeys() ([]uint16, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.actCalls++
	if len(d.active) == 0 {
		return nil, nil
	}
	keys := d.active[0]
	d.active = d.active[1:]
	return keys, nil
}

func (d *fakeDevice) ReadEvents() ([]util.InputEvent, error) {
	size := util.InputEventSize()
	var events []util.InputEvent
	for {
		var ev util.InputEvent
		n, err := unix.Read(d.r, ev.Bytes())
		if err != nil {
			if err == unix.EAGAIN {
				return events, nil
			}
			return events, err
		}
		if n != size {
			return events, nil
		}
		events = append(events, ev)
	}
}

func (d *fakeDevice) emit(t *testing.T, ev util.InputEvent) {
	t.Helper()
	if _, err := unix.Write(d.w, ev.Bytes()); err != nil {
		t.Fatalf("emit: %v", err)
	}
}

func (d *fakeDevice) Close() error {
	unix.Close(d.r)
	unix.Close(d.w)
	return nil
}

var _ Device = (*fakeDevice)(nil)
