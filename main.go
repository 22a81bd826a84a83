// spidev is a command-line tool for poking at Linux SPI character devices.
//
// Usage:
//
//	spidev info /dev/spidev0.0
//	spidev xfer /dev/spidev0.0 --tx "9f 00 00 00" --speed 500000
//	spidev run flash-id.yaml
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Jon-Bright/spidev/spidev"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "spidev",
		Short:         "SPI userspace tool",
		Long:          "Inspect and exercise SPI peripherals through /dev/spidevB.D device nodes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := log.ParseLevel(logLevel)
			if err != nil {
				return fmt.Errorf("invalid log level %q: %w", logLevel, err)
			}
			log.SetLevel(lvl)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")

	root.AddCommand(
		newInfoCmd(),
		newHelloCmd(),
		newXferCmd(),
		newRunCmd(),
	)

	return root
}

func newHelloCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hello <device>",
		Short: "Smoke-test a device: write a few bytes, then read some back",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := spidev.Open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			wrote, err := s.Write([]byte{0xAA, 0x00, 0x01, 0x02, 0x04})
			if err != nil {
				return err
			}
			log.Infof("wrote %d bytes", wrote)

			buf := make([]byte, 10)
			read, err := s.Read(buf)
			if err != nil {
				return err
			}
			fmt.Printf("read %d bytes:\n%s", read, hex.Dump(buf[:read]))
			return nil
		},
	}
}

func newXferCmd() *cobra.Command {
	var (
		txHex string
		rxLen int
		speed uint32
		bpw   uint8
		mode  uint32
	)

	cmd := &cobra.Command{
		Use:   "xfer <device>",
		Short: "Run one full-duplex transfer and dump the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tx, err := parseHex(txHex)
			if err != nil {
				return fmt.Errorf("bad --tx: %w", err)
			}
			if rxLen == 0 {
				rxLen = len(tx)
			}

			s, err := spidev.Open(args[0])
			if err != nil {
				return err
			}
			defer s.Close()

			opts := spidev.NewOptions()
			if cmd.Flags().Changed("mode") {
				opts.Mode(spidev.Mode(mode))
			}
			if speed != 0 {
				opts.MaxSpeedHz(speed)
			}
			if bpw != 0 {
				opts.BitsPerWord(bpw)
			}
			if err := s.Configure(opts); err != nil {
				return err
			}

			var t *spidev.Transfer
			switch {
			case len(tx) == 0:
				t = spidev.Read(rxLen)
			case rxLen == len(tx):
				t, err = spidev.ReadWrite(tx, make([]byte, rxLen))
				if err != nil {
					return err
				}
			default:
				// Different lengths: shift the command out, then
				// keep clocking for the reply, one chip select
				// cycle for both.
				log.Debugf("split transfer: %d tx, %d rx", len(tx), rxLen)
				rd := spidev.Read(rxLen)
				rd.CSChange = true
				if err := s.TransferMultiple([]*spidev.Transfer{spidev.Write(tx), rd}); err != nil {
					return err
				}
				fmt.Println(hex.Dump(rd.Rx()))
				return nil
			}

			if err := s.Transfer(t); err != nil {
				return err
			}
			fmt.Println(hex.Dump(t.Rx()))
			return nil
		},
	}

	cmd.Flags().StringVar(&txHex, "tx", "", "Hex bytes to transmit, e.g. \"9f 00 00 00\"")
	cmd.Flags().IntVar(&rxLen, "len", 0, "Bytes to receive (default: length of --tx)")
	cmd.Flags().Uint32Var(&speed, "speed", 0, "Max clock speed in Hz (0: leave device setting)")
	cmd.Flags().Uint8Var(&bpw, "bpw", 0, "Bits per word (0: leave device setting)")
	cmd.Flags().Uint32Var(&mode, "mode", 0, "SPI mode flags, e.g. 3 for CPOL|CPHA")

	return cmd
}

// parseHex accepts "9f000000" as well as "9f 00 00 00" or "9f:00:00:00".
func parseHex(s string) ([]byte, error) {
	clean := strings.Map(func(r rune) rune {
		if r == ' ' || r == ':' || r == ',' {
			return -1
		}
		return r
	}, s)
	if clean == "" {
		return nil, nil
	}
	return hex.DecodeString(clean)
}
