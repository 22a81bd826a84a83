package spidev

// Mode is a bit-set of SPI mode flags.  The values are those of
// linux/spi/spidev.h.  Flags above 0xFF need a kernel with the 32-bit mode
// ioctls (3.15+); Configure picks the right ioctl automatically.
type Mode uint32

const (
	SPI_CPHA       Mode = 0x01 // clock phase
	SPI_CPOL       Mode = 0x02 // clock polarity
	SPI_CS_HIGH    Mode = 0x04 // chipselect active high
	SPI_LSB_FIRST  Mode = 0x08 // per-word bits-on-wire
	SPI_3WIRE      Mode = 0x10 // SI/SO signals shared
	SPI_LOOP       Mode = 0x20 // loopback mode
	SPI_NO_CS      Mode = 0x40 // one dev/bus, no chipselect
	SPI_READY      Mode = 0x80 // slave pulls low to pause
	SPI_TX_DUAL    Mode = 0x100
	SPI_TX_QUAD    Mode = 0x200
	SPI_RX_DUAL    Mode = 0x400
	SPI_RX_QUAD    Mode = 0x800

	SPI_MODE_0 Mode = 0
	SPI_MODE_1 Mode = SPI_CPHA
	SPI_MODE_2 Mode = SPI_CPOL
	SPI_MODE_3 Mode = SPI_CPOL | SPI_CPHA
)

// wide reports whether m sets any flag outside the low byte, in which case
// the legacy single-byte mode ioctl can't carry it.
func (m Mode) wide() bool {
	return m&^0xFF != 0
}
