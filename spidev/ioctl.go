package spidev

import (
	"reflect"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl implementation.  This is basically a golang replica of
// https://github.com/torvalds/linux/blob/master/include/uapi/asm-generic/ioctl.h

const (
	_IOC_NRBITS   uint32 = 8
	_IOC_TYPEBITS uint32 = 8

	_IOC_SIZEBITS uint32 = 14
	_IOC_DIRBITS         = 2

	_IOC_NRSHIFT   = 0
	_IOC_TYPESHIFT = (_IOC_NRSHIFT + _IOC_NRBITS)
	_IOC_SIZESHIFT = (_IOC_TYPESHIFT + _IOC_TYPEBITS)
	_IOC_DIRSHIFT  = (_IOC_SIZESHIFT + _IOC_SIZEBITS)

	_IOC_NONE  uint32 = 0
	_IOC_WRITE uint32 = 1
	_IOC_READ  uint32 = 2
)

func ioc(dir uint32, typ uint32, nr uint32, size uint32) uint32 {
	return (((dir) << _IOC_DIRSHIFT) |
		((typ) << _IOC_TYPESHIFT) |
		((nr) << _IOC_NRSHIFT) |
		((size) << _IOC_SIZESHIFT))
}

func io(typ uint32, nr uint32) uint32 {
	return ioc(_IOC_NONE, typ, nr, 0)
}

func ior(typ uint32, nr uint32, size interface{}) uint32 {
	return ioc(_IOC_READ, typ, nr, uint32(reflect.TypeOf(size).Size()))
}

func iow(typ uint32, nr uint32, size interface{}) uint32 {
	return ioc(_IOC_WRITE, typ, nr, uint32(reflect.TypeOf(size).Size()))
}

func iowr(typ uint32, nr uint32, size interface{}) uint32 {
	return ioc(_IOC_READ|_IOC_WRITE, typ, nr, uint32(reflect.TypeOf(size).Size()))
}

// sysIoctl issues one ioctl against fd.  It's a package variable so that the
// marshaling tests can swap it for a fake that records the commands issued.
var sysIoctl = func(fd uintptr, cmd uint32, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(
		unix.SYS_IOCTL,
		fd,
		uintptr(cmd),
		uintptr(arg),
	)
	if errno != 0 {
		return errno
	}
	return nil
}

func ioctlUint8(fd uintptr, cmd uint32, val uint8) error {
	return sysIoctl(fd, cmd, unsafe.Pointer(&val))
}

func ioctlUint32(fd uintptr, cmd uint32, val uint32) error {
	return sysIoctl(fd, cmd, unsafe.Pointer(&val))
}

func ioctlRdUint8(fd uintptr, cmd uint32) (uint8, error) {
	var val uint8
	err := sysIoctl(fd, cmd, unsafe.Pointer(&val))
	return val, err
}

func ioctlRdUint32(fd uintptr, cmd uint32) (uint32, error) {
	var val uint32
	err := sysIoctl(fd, cmd, unsafe.Pointer(&val))
	return val, err
}
