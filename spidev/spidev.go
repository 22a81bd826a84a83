// Package spidev drives Linux SPI character devices (/dev/spidevB.D).
//
// Half-duplex traffic goes through the ordinary Read and Write methods.
// Full-duplex and multi-segment transactions are built from Transfer
// descriptors and submitted with Transfer or TransferMultiple; the kernel
// fills each descriptor's receive buffer in place.  Device settings (mode,
// word size, clock speed, bit order) are applied via Options and Configure.
package spidev

import (
	"fmt"
	"os"
	"sync"
)

// Spidev is an open SPI device.  A mutex serializes operations so one
// handle can be shared between goroutines, but transfers then contend
// rather than interleave.  The kernel holds the authoritative device
// configuration; the handle keeps no state beyond the file.
type Spidev struct {
	mu sync.Mutex
	f  *os.File
}

// Open opens an SPI device node, e.g. "/dev/spidev0.0".  The node must
// already exist and be accessible read-write.
func Open(path string) (*Spidev, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %v", path, err)
	}
	return &Spidev{f: f}, nil
}

// Close releases the device.
func (s *Spidev) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

// Read does a half-duplex read; all outgoing bits are zero.
func (s *Spidev) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Read(p)
}

// Write does a half-duplex write; incoming bits are discarded.
func (s *Spidev) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Write(p)
}

// Configure writes each option set in o to the device, one ioctl per
// field.  Unset fields are skipped and keep their current device value.
// On error the fields already written stay applied; there's no rollback.
func (s *Spidev) Configure(o *Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fd := s.f.Fd()

	if o.bitsPerWord != nil {
		cmd := iow(SPI_IOC_MAGIC, SPI_IOC_NR_BITS_PER_WORD, uint8(0))
		if err := ioctlUint8(fd, cmd, *o.bitsPerWord); err != nil {
			return fmt.Errorf("couldn't set bits per word: %v", err)
		}
	}
	if o.maxSpeedHz != nil {
		cmd := iow(SPI_IOC_MAGIC, SPI_IOC_NR_MAX_SPEED_HZ, uint32(0))
		if err := ioctlUint32(fd, cmd, *o.maxSpeedHz); err != nil {
			return fmt.Errorf("couldn't set max speed: %v", err)
		}
	}
	if o.lsbFirst != nil {
		var v uint8
		if *o.lsbFirst {
			v = 1
		}
		cmd := iow(SPI_IOC_MAGIC, SPI_IOC_NR_LSB_FIRST, uint8(0))
		if err := ioctlUint8(fd, cmd, v); err != nil {
			return fmt.Errorf("couldn't set bit order: %v", err)
		}
	}
	if o.mode != nil {
		// Flags above the low byte only exist in the 32-bit mode
		// ioctl.  Plain modes go through the legacy byte-sized one,
		// which older kernels also understand.
		if o.mode.wide() {
			cmd := iow(SPI_IOC_MAGIC, SPI_IOC_NR_MODE32, uint32(0))
			if err := ioctlUint32(fd, cmd, uint32(*o.mode)); err != nil {
				return fmt.Errorf("couldn't set mode: %v", err)
			}
		} else {
			cmd := iow(SPI_IOC_MAGIC, SPI_IOC_NR_MODE, uint8(0))
			if err := ioctlUint8(fd, cmd, uint8(*o.mode)); err != nil {
				return fmt.Errorf("couldn't set mode: %v", err)
			}
		}
	}
	return nil
}

// Transfer runs one full-duplex transaction segment.  On return the
// kernel has filled t's receive buffer.
func (s *Spidev) Transfer(t *Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dispatch(s.f.Fd(), []*Transfer{t})
}

// TransferMultiple runs the transfers as one kernel message, in order,
// without returning to userspace in between.  That makes multi-phase
// protocols (command then read) a single bus transaction.  A failure is
// for the whole batch; the kernel doesn't attribute it to a segment.
func (s *Spidev) TransferMultiple(transfers []*Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return dispatch(s.f.Fd(), transfers)
}

// Mode reads the device's current mode flags.
func (s *Spidev) Mode() (Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := ioctlRdUint32(s.f.Fd(), ior(SPI_IOC_MAGIC, SPI_IOC_NR_MODE32, uint32(0)))
	if err != nil {
		return 0, fmt.Errorf("couldn't read mode: %v", err)
	}
	return Mode(m), nil
}

// BitsPerWord reads the device's current word size.  Zero means eight.
func (s *Spidev) BitsPerWord() (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bpw, err := ioctlRdUint8(s.f.Fd(), ior(SPI_IOC_MAGIC, SPI_IOC_NR_BITS_PER_WORD, uint8(0)))
	if err != nil {
		return 0, fmt.Errorf("couldn't read bits per word: %v", err)
	}
	return bpw, nil
}

// MaxSpeedHz reads the device's current maximum clock frequency.
func (s *Spidev) MaxSpeedHz() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hz, err := ioctlRdUint32(s.f.Fd(), ior(SPI_IOC_MAGIC, SPI_IOC_NR_MAX_SPEED_HZ, uint32(0)))
	if err != nil {
		return 0, fmt.Errorf("couldn't read max speed: %v", err)
	}
	return hz, nil
}

// LSBFirst reads whether the device currently shifts words out
// least-significant-bit first.
func (s *Spidev) LSBFirst() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, err := ioctlRdUint8(s.f.Fd(), ior(SPI_IOC_MAGIC, SPI_IOC_NR_LSB_FIRST, uint8(0)))
	if err != nil {
		return false, fmt.Errorf("couldn't read bit order: %v", err)
	}
	return v != 0, nil
}
