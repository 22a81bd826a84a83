package spidev

// Options collects device settings to be applied in one Configure call.
// Each field is independently optional: fields never set are never written
// to the device, so existing kernel state isn't clobbered.
type Options struct {
	bitsPerWord *uint8
	maxSpeedHz  *uint32
	lsbFirst    *bool
	mode        *Mode
}

func NewOptions() *Options {
	return &Options{}
}

// BitsPerWord sets the word size in bits.  Zero means the device default
// of eight.
func (o *Options) BitsPerWord(bpw uint8) *Options {
	o.bitsPerWord = &bpw
	return o
}

// MaxSpeedHz sets the maximum clock frequency in Hz.
func (o *Options) MaxSpeedHz(hz uint32) *Options {
	o.maxSpeedHz = &hz
	return o
}

// LSBFirst sets whether words are shifted out least-significant-bit first.
func (o *Options) LSBFirst(lsb bool) *Options {
	o.lsbFirst = &lsb
	return o
}

// Mode sets the mode flags (clock polarity/phase plus peripheral options).
func (o *Options) Mode(m Mode) *Options {
	o.mode = &m
	return o
}
