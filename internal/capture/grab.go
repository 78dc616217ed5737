package capture

import (
	"fmt"

	"golang.org/x/sys/unix"
)

const idlePollTimeoutMs = 250

// grabAll takes exclusive control of every device in order. On any failure
// the devices grabbed so far are released again, so a partial grab never
// leaves a keyboard dead.
func (c *Capture) grabAll() error {
	var grabbed []Device
	for _, dev := range c.devices {
		if err := c.waitIdle(dev); err != nil {
			c.releaseDevices(grabbed)
			return err
		}
		if err := dev.Grab(); err != nil {
			c.releaseDevices(grabbed)
			return err
		}
		grabbed = append(grabbed, dev)
		c.log.Debug("grabbed device", "path", dev.Path(), "name", dev.Name())
	}
	return nil
}

// waitIdle blocks until the device reports no held keys. Grabbing while a key
// is down makes the grabbed key appear stuck until the next press. There is a
// window between the last check and the grab, but in practice the user is not
// typing at the instant capture starts.
func (c *Capture) waitIdle(dev Device) error {
	for {
		keys, err := dev.ActiveKeys()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		c.log.Debug("waiting for held keys before grab",
			"path", dev.Path(), "held", len(keys))

		fds := []unix.PollFd{{Fd: int32(dev.Fd()), Events: unix.POLLIN}}
		if _, err := unix.Poll(fds, idlePollTimeoutMs); err != nil && err != unix.EINTR {
			return fmt.Errorf("poll %s: %w", dev.Path(), err)
		}
		if _, err := dev.ReadEvents(); err != nil {
			return err
		}
	}
}

func (c *Capture) releaseAll() {
	c.releaseDevices(c.devices)
}

func (c *Capture) releaseDevices(devices []Device) {
	for _, dev := range devices {
		if err := dev.Ungrab(); err != nil {
			c.log.Error("failed to ungrab device", "path", dev.Path(), "error", err)
		}
	}
}
