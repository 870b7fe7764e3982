package cmd

import (
	"context"
	"log"
	"time"

	"github.com/roffe/flexcan"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(sendCmd)
	f := sendCmd.Flags()
	f.BoolP("extended", "e", false, "29 bit identifier")
	f.BoolP("remote", "r", false, "remote request")
	f.Uint8P("length", "n", 0, "remote request length")
	f.Uint8P("mailbox", "m", 0, "transmit mailbox, 0 = any")
	f.DurationP("timeout", "t", 250*time.Millisecond, "wait for a free mailbox")
}

var sendCmd = &cobra.Command{
	Use:   "send <id> [data...]",
	Short: "send one frame",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		ext, _ := f.GetBool("extended")
		rtr, _ := f.GetBool("remote")
		length, _ := f.GetUint8("length")
		mb, _ := f.GetUint8("mailbox")
		timeout, _ := f.GetDuration("timeout")

		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		data, err := parseData(args[1:])
		if err != nil {
			return err
		}

		var frame flexcan.Frame
		switch {
		case rtr:
			frame = flexcan.NewRemoteFrame(id, ext, length)
		case ext:
			frame = flexcan.NewExtendedFrame(id, data)
		default:
			frame = flexcan.NewFrame(id, data)
		}

		s, err := initCAN(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := context.WithTimeout(s.ctx, timeout)
		defer cancel()
		if err := s.TransmitWait(ctx, flexcan.Mailbox(mb), &frame); err != nil {
			return err
		}
		log.Println(frame.ColorString())
		return nil
	},
}
