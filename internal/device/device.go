// Package device enumerates evdev input devices and narrows them down to the
// physical keyboards worth grabbing.
package device

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sys/unix"

	"stenotap/internal/linux"
	"stenotap/internal/util"
)

// DetectionError carries a user-facing message about why no usable keyboard
// was found.
type DetectionError struct {
	Message string
}

func (e DetectionError) Error() string { return e.Message }

// Options controls the keyboard filter.
type Options struct {
	// ReservedName identifies this process's own uinput device, which must
	// never be grabbed or the output would feed back into the capture loop.
	ReservedName string
	// MinKeys is the minimum number of key capabilities a device must
	// advertise. Power buttons and lid switches expose only a handful.
	MinKeys int
	Logger  *slog.Logger
}

const DefaultMinKeys = 20

// Device is an open evdev handle. Once grabbed it is owned exclusively by
// the capture loop until released.
type Device struct {
	fd      int
	path    string
	name    string
	phys    string
	grabbed bool
}

// Open opens an event node nonblocking and reads its identity strings.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	d := &Device{fd: fd, path: path}
	d.name = readString(fd, linux.EVIOCGNAME(256))
	d.phys = readString(fd, linux.EVIOCGPHYS(256))
	return d, nil
}

func (d *Device) Fd() int      { return d.fd }
func (d *Device) Path() string { return d.path }
func (d *Device) Name() string { return d.name }
func (d *Device) Phys() string { return d.phys }

// Grab takes exclusive control: the kernel stops routing this device's
// events to any other reader.
func (d *Device) Grab() error {
	if err := linux.IoctlSetInt(d.fd, linux.EVIOCGRAB, 1); err != nil {
		return fmt.Errorf("grab %s: %w", d.path, err)
	}
	d.grabbed = true
	return nil
}

func (d *Device) Ungrab() error {
	if !d.grabbed {
		return nil
	}
	if err := linux.IoctlSetInt(d.fd, linux.EVIOCGRAB, 0); err != nil {
		return fmt.Errorf("ungrab %s: %w", d.path, err)
	}
	d.grabbed = false
	return nil
}

func (d *Device) Grabbed() bool { return d.grabbed }

// ActiveKeys returns the scan codes the kernel currently reports as held
// down on this device.
func (d *Device) ActiveKeys() ([]uint16, error) {
	buf := make([]byte, bitsToBytes(linux.KeyMax+1))
	if err := linux.IoctlRead(d.fd, linux.EVIOCGKEY(len(buf)), buf); err != nil {
		return nil, fmt.Errorf("key state %s: %w", d.path, err)
	}
	var keys []uint16
	for code := 0; code <= linux.KeyMax; code++ {
		if testBit(buf, code) {
			keys = append(keys, uint16(code))
		}
	}
	return keys, nil
}

// ReadEvents drains every complete event currently available. A drained
// device returns an empty slice and no error.
func (d *Device) ReadEvents() ([]util.InputEvent, error) {
	size := util.InputEventSize()
	var events []util.InputEvent
	for {
		var ev util.InputEvent
		n, err := unix.Read(d.fd, ev.Bytes())
		if err != nil {
			if err == unix.EAGAIN {
				return events, nil
			}
			if err == unix.EINTR {
				continue
			}
			return events, fmt.Errorf("read %s: %w", d.path, err)
		}
		if n != size {
			// Partial or zero-length read; nothing sane to frame.
			return events, nil
		}
		events = append(events, ev)
	}
}

func (d *Device) Close() error {
	if d.fd < 0 {
		return nil
	}
	err := unix.Close(d.fd)
	d.fd = -1
	return err
}

// caps holds the raw capability bitmaps used by the filter. Split out so the
// predicate itself stays testable without ioctls.
type caps struct {
	name    string
	phys    string
	evBits  []byte
	keyBits []byte
}

func (d *Device) readCaps() (caps, error) {
	c := caps{name: d.name, phys: d.phys}
	c.evBits = make([]byte, bitsToBytes(linux.EvMax+1))
	if err := linux.IoctlRead(d.fd, linux.EVIOCGBIT(0, len(c.evBits)), c.evBits); err != nil {
		return c, fmt.Errorf("event capabilities %s: %w", d.path, err)
	}
	c.keyBits = make([]byte, bitsToBytes(linux.KeyMax+1))
	if err := linux.IoctlRead(d.fd, linux.EVIOCGBIT(linux.EvKey, len(c.keyBits)), c.keyBits); err != nil {
		return c, fmt.Errorf("key capabilities %s: %w", d.path, err)
	}
	return c, nil
}

// proofKeys must all be present before a device counts as a keyboard. A
// device that cannot type escape, space, enter and left shift is a macro pad
// or a switch, not something to grab.
var proofKeys = []int{linux.KeyEsc, linux.KeySpace, linux.KeyEnter, linux.KeyLeftShift}

// isKeyboard applies the filter: keyboards only, never our own synthetic
// device, never pointers, never switch-class devices.
func isKeyboard(c caps, opts Options) bool {
	if opts.ReservedName != "" && (c.name == opts.ReservedName || c.phys == opts.ReservedName) {
		return false
	}
	if !testBit(c.evBits, linux.EvKey) {
		return false
	}
	if testBit(c.evBits, linux.EvRel) || testBit(c.evBits, linux.EvAbs) {
		return false
	}
	minKeys := opts.MinKeys
	if minKeys <= 0 {
		minKeys = DefaultMinKeys
	}
	if countBits(c.keyBits) < minKeys {
		return false
	}
	for _, code := range proofKeys {
		if !testBit(c.keyBits, code) {
			return false
		}
	}
	return true
}

// List opens every /dev/input event node and returns the ones that pass the
// keyboard filter, sorted by path. Nodes that fail the filter are closed
// again.
func List(opts Options) ([]*Device, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	candidates := eventNodes()
	devices := make([]*Device, 0, len(candidates))
	permissionDenied := false
	var lastErr error

	for _, path := range candidates {
		dev, err := Open(path)
		if err != nil {
			if errors.Is(err, os.ErrPermission) || errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
				permissionDenied = true
			}
			lastErr = err
			continue
		}
		c, err := dev.readCaps()
		if err != nil {
			lastErr = err
			dev.Close()
			continue
		}
		if !isKeyboard(c, opts) {
			log.Debug("skipping non-keyboard device", "path", path, "name", dev.Name())
			dev.Close()
			continue
		}
		devices = append(devices, dev)
	}

	if len(devices) == 0 {
		switch {
		case permissionDenied:
			return nil, DetectionError{Message: "Permission denied while probing input devices. Try running as root or adjusting udev permissions."}
		case len(candidates) == 0:
			return nil, DetectionError{Message: "No evdev devices found under /dev/input."}
		case lastErr != nil:
			return nil, DetectionError{Message: fmt.Sprintf("No keyboard device found. Last error: %v", lastErr)}
		default:
			return nil, DetectionError{Message: "No keyboard device found."}
		}
	}

	sort.SliceStable(devices, func(i, j int) bool { return devices[i].path < devices[j].path })
	return devices, nil
}

// OpenPaths opens an explicit list of device paths without filtering, for
// configurations that pin specific keyboards.
func OpenPaths(paths []string) ([]*Device, error) {
	devices := make([]*Device, 0, len(paths))
	for _, path := range paths {
		dev, err := Open(path)
		if err != nil {
			for _, opened := range devices {
				opened.Close()
			}
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

func eventNodes() []string {
	entries, err := os.ReadDir("/dev/input")
	if err != nil {
		return nil
	}
	var nodes []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasPrefix(entry.Name(), "event") {
			nodes = append(nodes, filepath.Join("/dev/input", entry.Name()))
		}
	}
	sort.Strings(nodes)
	return nodes
}

func readString(fd int, req uintptr) string {
	buf := make([]byte, 256)
	if err := linux.IoctlRead(fd, req, buf); err != nil {
		return ""
	}
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}

func bitsToBytes(bits int) int {
	return (bits + 7) / 8
}

func testBit(bits []byte, bit int) bool {
	if bit < 0 {
		return false
	}
	idx := bit / 8
	off := bit % 8
	if idx >= len(bits) {
		return false
	}
	return (bits[idx] & (1 << uint(off))) != 0
}

func countBits(bits []byte) int {
	count := 0
	for _, b := range bits {
		for b != 0 {
			count += int(b & 1)
			b >>= 1
		}
	}
	return count
}
