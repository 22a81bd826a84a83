package spidev

import (
	"bytes"
	"testing"
	"unsafe"
)

func TestRecordLayout(t *testing.T) {
	// The record crosses the ioctl boundary, so its layout has to match
	// struct spi_ioc_transfer exactly.
	if got := unsafe.Sizeof(spiIocTransfer{}); got != sizeofSpiIocTransfer {
		t.Errorf("sizeof record got: %d, want: %d", got, sizeofSpiIocTransfer)
	}
	offsets := []struct {
		name string
		got  uintptr
		want uintptr
	}{
		{"txBuf", unsafe.Offsetof(spiIocTransfer{}.txBuf), 0},
		{"rxBuf", unsafe.Offsetof(spiIocTransfer{}.rxBuf), 8},
		{"length", unsafe.Offsetof(spiIocTransfer{}.length), 16},
		{"speedHz", unsafe.Offsetof(spiIocTransfer{}.speedHz), 20},
		{"delayUsecs", unsafe.Offsetof(spiIocTransfer{}.delayUsecs), 24},
		{"bitsPerWord", unsafe.Offsetof(spiIocTransfer{}.bitsPerWord), 26},
		{"csChange", unsafe.Offsetof(spiIocTransfer{}.csChange), 27},
		{"pad", unsafe.Offsetof(spiIocTransfer{}.pad), 28},
	}
	for _, o := range offsets {
		if o.got != o.want {
			t.Errorf("offsetof %s got: %d, want: %d", o.name, o.got, o.want)
		}
	}
}

func TestWriteEncode(t *testing.T) {
	src := []byte{0xAA, 0xBB, 0xCC}
	tr := Write(src)
	if tr.Len() != 3 {
		t.Fatalf("Len got: %d, want: 3", tr.Len())
	}

	arena := make([]byte, tr.stagingLen())
	var r spiIocTransfer
	end := tr.encode(&r, arena, 0)

	if end != 6 {
		t.Errorf("next offset got: %d, want: 6", end)
	}
	if r.length != 3 {
		t.Errorf("length got: %d, want: 3", r.length)
	}
	if r.pad != 0 {
		t.Errorf("pad got: %d, want: 0", r.pad)
	}
	if r.txBuf != uint64(uintptr(unsafe.Pointer(&arena[0]))) {
		t.Errorf("txBuf got: %#x, want address of staged tx %p", r.txBuf, &arena[0])
	}
	// Write always supplies a throwaway receive buffer; the transaction
	// is full duplex either way.
	if r.rxBuf == 0 {
		t.Error("rxBuf got: 0, want staged receive buffer")
	}
	if !bytes.Equal(arena[0:3], src) {
		t.Errorf("staged tx got: %v, want: %v", arena[0:3], src)
	}
}

func TestReadEncode(t *testing.T) {
	tr := Read(4)

	arena := make([]byte, tr.stagingLen())
	var r spiIocTransfer
	tr.encode(&r, arena, 0)

	if r.txBuf != 0 {
		t.Errorf("txBuf got: %#x, want: 0", r.txBuf)
	}
	if r.rxBuf != uint64(uintptr(unsafe.Pointer(&arena[0]))) {
		t.Errorf("rxBuf got: %#x, want address of staged rx %p", r.rxBuf, &arena[0])
	}
	if r.length != 4 {
		t.Errorf("length got: %d, want: 4", r.length)
	}
	if len(tr.Rx()) != 4 {
		t.Errorf("Rx length got: %d, want: 4", len(tr.Rx()))
	}
}

func TestDelayEncode(t *testing.T) {
	tr := Delay(150)

	var r spiIocTransfer
	tr.encode(&r, nil, 0)

	if r.txBuf != 0 || r.rxBuf != 0 || r.length != 0 {
		t.Errorf("delay record moves data: tx %#x rx %#x len %d", r.txBuf, r.rxBuf, r.length)
	}
	if r.delayUsecs != 150 {
		t.Errorf("delayUsecs got: %d, want: 150", r.delayUsecs)
	}
}

func TestOverridesEncode(t *testing.T) {
	tr := Read(1)
	tr.SpeedHz = 500000
	tr.DelayUsecs = 10
	tr.BitsPerWord = 16
	tr.CSChange = true

	arena := make([]byte, tr.stagingLen())
	var r spiIocTransfer
	tr.encode(&r, arena, 0)

	if r.speedHz != 500000 {
		t.Errorf("speedHz got: %d, want: 500000", r.speedHz)
	}
	if r.delayUsecs != 10 {
		t.Errorf("delayUsecs got: %d, want: 10", r.delayUsecs)
	}
	if r.bitsPerWord != 16 {
		t.Errorf("bitsPerWord got: %d, want: 16", r.bitsPerWord)
	}
	if r.csChange != 1 {
		t.Errorf("csChange got: %d, want: 1", r.csChange)
	}
}

func TestReadWriteMismatch(t *testing.T) {
	_, err := ReadWrite(make([]byte, 3), make([]byte, 5))
	if err == nil {
		t.Error("ReadWrite with mismatched lengths succeeded, want error")
	}
}

// fakeKernel stands in for the spidev driver: it records the command words
// it's given and, for message commands, plays back canned receive bytes
// through the raw rxBuf addresses, just as the kernel would.
type fakeKernel struct {
	cmds   []uint32
	rxFill byte
}

func (k *fakeKernel) ioctl(fd uintptr, cmd uint32, arg unsafe.Pointer) error {
	k.cmds = append(k.cmds, cmd)
	size := (cmd >> _IOC_SIZESHIFT) & ((1 << _IOC_SIZEBITS) - 1)
	n := int(size) / sizeofSpiIocTransfer
	records := unsafe.Slice((*spiIocTransfer)(arg), n)
	for i, r := range records {
		if r.rxBuf == 0 {
			continue
		}
		rx := unsafe.Slice((*byte)(unsafe.Pointer(uintptr(r.rxBuf))), r.length)
		for j := range rx {
			rx[j] = k.rxFill + byte(i)
		}
	}
	return nil
}

func swapIoctl(t *testing.T, fn func(uintptr, uint32, unsafe.Pointer) error) {
	old := sysIoctl
	sysIoctl = fn
	t.Cleanup(func() { sysIoctl = old })
}

func TestDispatchSingle(t *testing.T) {
	k := &fakeKernel{rxFill: 0x5A}
	swapIoctl(t, k.ioctl)

	tr, err := ReadWrite([]byte{1, 2, 3, 4}, make([]byte, 4))
	if err != nil {
		t.Fatalf("ReadWrite: %v", err)
	}
	if err := dispatch(0, []*Transfer{tr}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	if len(k.cmds) != 1 || k.cmds[0] != 0x40206B00 {
		t.Errorf("cmds got: %08X, want: [40206B00]", k.cmds)
	}
	want := []byte{0x5A, 0x5A, 0x5A, 0x5A}
	if !bytes.Equal(tr.Rx(), want) {
		t.Errorf("rx got: %v, want: %v", tr.Rx(), want)
	}
}

func TestDispatchBatchOrder(t *testing.T) {
	k := &fakeKernel{rxFill: 0x10}
	swapIoctl(t, k.ioctl)

	// Command-then-read: a written command byte followed by two reads.
	cmdXfer := Write([]byte{0x9F})
	rd1 := Read(2)
	rd2 := Read(3)
	rd2.CSChange = true

	if err := dispatch(0, []*Transfer{cmdXfer, rd1, rd2}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	// Payload size is count * record size.
	if len(k.cmds) != 1 || k.cmds[0] != iocMessage(3) {
		t.Errorf("cmds got: %08X, want: [%08X]", k.cmds, iocMessage(3))
	}
	// The fake fills each segment's rx with rxFill+index, so the
	// copied-back buffers show the order the records were submitted in.
	if want := []byte{0x11, 0x11}; !bytes.Equal(rd1.Rx(), want) {
		t.Errorf("rd1 rx got: %v, want: %v", rd1.Rx(), want)
	}
	if want := []byte{0x12, 0x12, 0x12}; !bytes.Equal(rd2.Rx(), want) {
		t.Errorf("rd2 rx got: %v, want: %v", rd2.Rx(), want)
	}
}

func TestDispatchTooMany(t *testing.T) {
	called := false
	swapIoctl(t, func(uintptr, uint32, unsafe.Pointer) error {
		called = true
		return nil
	})

	transfers := make([]*Transfer, maxMessages+1)
	for i := range transfers {
		transfers[i] = Delay(1)
	}
	if err := dispatch(0, transfers); err == nil {
		t.Error("dispatch of oversized batch succeeded, want error")
	}
	if called {
		t.Error("oversized batch still reached the ioctl")
	}
}

func TestDispatchEmpty(t *testing.T) {
	called := false
	swapIoctl(t, func(uintptr, uint32, unsafe.Pointer) error {
		called = true
		return nil
	})

	if err := dispatch(0, nil); err != nil {
		t.Errorf("dispatch of no transfers: %v", err)
	}
	if called {
		t.Error("empty batch issued an ioctl")
	}
}
