package main

import (
	"encoding/hex"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/Jon-Bright/spidev/spidev"
)

// script describes a transfer sequence to run against one device.  The
// options are each optional: ones left out of the file keep whatever the
// device already has, same as spidev.Options.
//
// Example:
//
//	device: /dev/spidev0.0
//	options:
//	  mode: 0
//	  max_speed_hz: 500000
//	transfers:
//	  - tx: "9f"
//	  - rx_len: 3
//	    cs_change: true
type script struct {
	Device  string         `json:"device"`
	Options *scriptOptions `json:"options,omitempty"`
	Batch   bool           `json:"batch,omitempty"`

	Transfers []scriptTransfer `json:"transfers"`
}

type scriptOptions struct {
	Mode        *uint32 `json:"mode,omitempty"`
	MaxSpeedHz  *uint32 `json:"max_speed_hz,omitempty"`
	BitsPerWord *uint8  `json:"bits_per_word,omitempty"`
	LSBFirst    *bool   `json:"lsb_first,omitempty"`
}

type scriptTransfer struct {
	Tx         string `json:"tx,omitempty"`     // hex bytes to shift out
	RxLen      int    `json:"rx_len,omitempty"` // bytes to receive
	SpeedHz    uint32 `json:"speed_hz,omitempty"`
	DelayUsecs uint16 `json:"delay_usecs,omitempty"`
	Bits       uint8  `json:"bits_per_word,omitempty"`
	CSChange   bool   `json:"cs_change,omitempty"`
}

func loadScript(path string) (*script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc script
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("couldn't parse %s: %w", path, err)
	}
	if sc.Device == "" {
		return nil, fmt.Errorf("%s: no device given", path)
	}
	if len(sc.Transfers) == 0 {
		return nil, fmt.Errorf("%s: no transfers given", path)
	}
	return &sc, nil
}

func (o *scriptOptions) build() *spidev.Options {
	opts := spidev.NewOptions()
	if o == nil {
		return opts
	}
	if o.Mode != nil {
		opts.Mode(spidev.Mode(*o.Mode))
	}
	if o.MaxSpeedHz != nil {
		opts.MaxSpeedHz(*o.MaxSpeedHz)
	}
	if o.BitsPerWord != nil {
		opts.BitsPerWord(*o.BitsPerWord)
	}
	if o.LSBFirst != nil {
		opts.LSBFirst(*o.LSBFirst)
	}
	return opts
}

func (st *scriptTransfer) build(i int) (*spidev.Transfer, error) {
	tx, err := parseHex(st.Tx)
	if err != nil {
		return nil, fmt.Errorf("transfer %d: bad tx: %w", i, err)
	}

	var t *spidev.Transfer
	switch {
	case len(tx) > 0 && st.RxLen > 0:
		if st.RxLen != len(tx) {
			return nil, fmt.Errorf("transfer %d: tx is %d bytes but rx_len is %d", i, len(tx), st.RxLen)
		}
		t, err = spidev.ReadWrite(tx, make([]byte, st.RxLen))
		if err != nil {
			return nil, fmt.Errorf("transfer %d: %w", i, err)
		}
	case len(tx) > 0:
		t = spidev.Write(tx)
	case st.RxLen > 0:
		t = spidev.Read(st.RxLen)
	default:
		t = spidev.Delay(st.DelayUsecs)
	}

	t.SpeedHz = st.SpeedHz
	if t.Len() > 0 {
		t.DelayUsecs = st.DelayUsecs
	}
	t.BitsPerWord = st.Bits
	t.CSChange = st.CSChange
	return t, nil
}

func runScript(sc *script) error {
	s, err := spidev.Open(sc.Device)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.Configure(sc.Options.build()); err != nil {
		return err
	}

	transfers := make([]*spidev.Transfer, len(sc.Transfers))
	for i := range sc.Transfers {
		if transfers[i], err = sc.Transfers[i].build(i); err != nil {
			return err
		}
	}

	if sc.Batch {
		// One kernel message: the sequence runs in order with no
		// userspace round trips in between.
		log.Debugf("batching %d transfers", len(transfers))
		if err := s.TransferMultiple(transfers); err != nil {
			return err
		}
	} else {
		for i, t := range transfers {
			if err := s.Transfer(t); err != nil {
				return fmt.Errorf("transfer %d: %w", i, err)
			}
		}
	}

	for i, t := range transfers {
		if rx := t.Rx(); len(rx) > 0 {
			fmt.Printf("transfer %d received:\n%s", i, hex.Dump(rx))
		}
	}
	return nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <script.yaml>",
		Short: "Run a transfer sequence described in a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := loadScript(args[0])
			if err != nil {
				return err
			}
			log.Infof("running %d transfers against %s", len(sc.Transfers), sc.Device)
			return runScript(sc)
		},
	}
}
