package spidev

import (
	"fmt"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
)

// Transfer describes one segment of an SPI transaction.  The zero-value
// overrides mean "use the device's current setting".
type Transfer struct {
	tx     []byte
	rx     []byte
	length uint32

	// SpeedHz overrides the clock speed for this segment only.
	SpeedHz uint32
	// DelayUsecs is a delay after this segment, before the chip select
	// status is changed.
	DelayUsecs uint16
	// BitsPerWord overrides the word size for this segment only.
	BitsPerWord uint8
	// CSChange deselects the device after this segment.
	CSChange bool
}

// Read returns a receive-only transfer of n bytes.  The received data is
// available from Rx after dispatch.
func Read(n int) *Transfer {
	return &Transfer{rx: make([]byte, n), length: uint32(n)}
}

// Write returns a transmit-only transfer of the bytes in tx.  The bus is
// full duplex, so a same-length throwaway receive buffer is supplied to the
// kernel; it's available from Rx should the caller want it after all.
func Write(tx []byte) *Transfer {
	return &Transfer{tx: tx, rx: make([]byte, len(tx)), length: uint32(len(tx))}
}

// ReadWrite returns a full-duplex transfer shifting out tx while the kernel
// fills rx in place.  The buffers must be the same length.
func ReadWrite(tx, rx []byte) (*Transfer, error) {
	if len(tx) != len(rx) {
		return nil, fmt.Errorf("tx is %d bytes but rx is %d, must be equal", len(tx), len(rx))
	}
	return &Transfer{tx: tx, rx: rx, length: uint32(len(tx))}, nil
}

// Delay returns a zero-length transfer that only pauses the bus for usecs
// microseconds.  No data moves.
func Delay(usecs uint16) *Transfer {
	return &Transfer{DelayUsecs: usecs}
}

// Rx returns the receive buffer.  After a successful dispatch it holds the
// bytes the device shifted in.  Nil for transfers without a receive side.
func (t *Transfer) Rx() []byte {
	return t.rx
}

// Len returns the segment length in bytes.
func (t *Transfer) Len() int {
	return int(t.length)
}

// spiIocTransfer mirrors struct spi_ioc_transfer from linux/spi/spidev.h
// byte for byte.  Buffer addresses cross the ioctl boundary as plain
// integers; pad is reserved by the kernel and stays zero.
type spiIocTransfer struct {
	txBuf       uint64
	rxBuf       uint64
	length      uint32
	speedHz     uint32
	delayUsecs  uint16
	bitsPerWord uint8
	csChange    uint8
	pad         uint32
}

const sizeofSpiIocTransfer = 32 // unsafe.Sizeof(spiIocTransfer{}), fixed by the kernel ABI

// Operation numbers from linux/spi/spidev.h.
const (
	SPI_IOC_MAGIC = 'k'

	SPI_IOC_NR_MESSAGE       = 0
	SPI_IOC_NR_MODE          = 1
	SPI_IOC_NR_LSB_FIRST     = 2
	SPI_IOC_NR_BITS_PER_WORD = 3
	SPI_IOC_NR_MAX_SPEED_HZ  = 4
	SPI_IOC_NR_MODE32        = 5
)

// iocMessage is SPI_IOC_MESSAGE(n): the command word for a batch of n
// transfer records.
func iocMessage(n int) uint32 {
	return ioc(_IOC_WRITE, SPI_IOC_MAGIC, SPI_IOC_NR_MESSAGE, uint32(n*sizeofSpiIocTransfer))
}

// maxMessages is the largest batch whose payload size fits the command
// word's size field.  The kernel's SPI_MSGSIZE check is strict, so 511,
// not 512.
const maxMessages = ((1 << _IOC_SIZEBITS) - 1) / sizeofSpiIocTransfer

// stagingLen returns how many arena bytes t needs.
func (t *Transfer) stagingLen() int {
	return len(t.tx) + len(t.rx)
}

// encode fills in the kernel record for t.  The tx bytes are copied into
// arena at offs and the record's addresses point into arena, which must not
// move until the ioctl returns.  Returns the next free arena offset.
func (t *Transfer) encode(r *spiIocTransfer, arena []byte, offs int) int {
	*r = spiIocTransfer{
		length:      t.length,
		speedHz:     t.SpeedHz,
		delayUsecs:  t.DelayUsecs,
		bitsPerWord: t.BitsPerWord,
	}
	if t.CSChange {
		r.csChange = 1
	}
	if len(t.tx) > 0 {
		copy(arena[offs:], t.tx)
		r.txBuf = uint64(uintptr(unsafe.Pointer(&arena[offs])))
		offs += len(t.tx)
	}
	if len(t.rx) > 0 {
		r.rxBuf = uint64(uintptr(unsafe.Pointer(&arena[offs])))
		offs += len(t.rx)
	}
	return offs
}

// finish copies the kernel-written receive bytes back out of the arena.
// Offsets must mirror encode exactly.
func (t *Transfer) finish(arena []byte, offs int) int {
	offs += len(t.tx)
	copy(t.rx, arena[offs:offs+len(t.rx)])
	return offs + len(t.rx)
}

// dispatch submits transfers as one SPI_IOC_MESSAGE ioctl.  The kernel
// executes the segments in slice order within a single chip select cycle
// (barring CSChange).  Failure is reported for the batch as a whole; the
// kernel doesn't say which segment was at fault.
//
// The kernel reads and writes the data buffers through raw addresses, so
// the bytes are staged in an anonymous mmap'd region the Go runtime will
// never relocate: tx is copied in before the syscall, rx copied back out
// after.
func dispatch(fd uintptr, transfers []*Transfer) error {
	n := len(transfers)
	if n == 0 {
		return nil
	}
	if n > maxMessages {
		return fmt.Errorf("%d transfers, maximum per message is %d", n, maxMessages)
	}

	need := 0
	for _, t := range transfers {
		need += t.stagingLen()
	}
	var arena mmap.MMap
	if need > 0 {
		var err error
		arena, err = mmap.MapRegion(nil, need, mmap.RDWR, mmap.ANON, 0)
		if err != nil {
			return fmt.Errorf("couldn't map staging buffer of %d bytes: %v", need, err)
		}
		defer arena.Unmap() // Ignore error
	}

	records := make([]spiIocTransfer, n)
	offs := 0
	for i, t := range transfers {
		offs = t.encode(&records[i], arena, offs)
	}

	if err := sysIoctl(fd, iocMessage(n), unsafe.Pointer(&records[0])); err != nil {
		return fmt.Errorf("message of %d transfers failed: %v", n, err)
	}

	offs = 0
	for _, t := range transfers {
		offs = t.finish(arena, offs)
	}
	return nil
}
