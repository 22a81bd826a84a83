package main

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Jon-Bright/spidev/spidev"
)

// deviceSettings is the kernel-reported state of one device node.
type deviceSettings struct {
	mode     spidev.Mode
	bits     uint8
	speedHz  uint32
	lsbFirst bool
}

func readSettings(s *spidev.Spidev) (*deviceSettings, error) {
	var (
		ds  deviceSettings
		err error
	)
	if ds.mode, err = s.Mode(); err != nil {
		return nil, err
	}
	if ds.bits, err = s.BitsPerWord(); err != nil {
		return nil, err
	}
	if ds.speedHz, err = s.MaxSpeedHz(); err != nil {
		return nil, err
	}
	if ds.lsbFirst, err = s.LSBFirst(); err != nil {
		return nil, err
	}
	return &ds, nil
}

func printSettings(w io.Writer, dev string, ds *deviceSettings) {
	bits := ds.bits
	if bits == 0 {
		bits = 8
	}
	order := "MSB first"
	if ds.lsbFirst {
		order = "LSB first"
	}

	table := tablewriter.NewTable(w)
	table.Header("DEVICE", "MODE", "BITS/WORD", "MAX SPEED", "BIT ORDER")
	table.Append(dev,
		fmt.Sprintf("%#x", uint32(ds.mode)),
		fmt.Sprintf("%d", bits),
		fmt.Sprintf("%d Hz", ds.speedHz),
		order)
	table.Render()
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <device>",
		Short: "Show a device's current settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := spidev.Open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			ds, err := readSettings(s)
			if err != nil {
				return err
			}
			printSettings(os.Stdout, args[0], ds)
			return nil
		},
	}
}
