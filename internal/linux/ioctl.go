package linux

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

func Ioctl(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func IoctlSetInt(fd int, req uintptr, value int) error {
	return Ioctl(fd, req, uintptr(value))
}

func IoctlRead(fd int, req uintptr, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	return Ioctl(fd, req, uintptr(unsafe.Pointer(&buf[0])))
}
