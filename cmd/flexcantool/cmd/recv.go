package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/roffe/flexcan"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(recvCmd)
	f := recvCmd.Flags()
	f.Uint8P("mailbox", "m", 0, "receive mailbox, 0 = any")
	f.IntP("count", "n", 0, "stop after n frames, 0 = forever")
	f.DurationP("timeout", "t", 0, "stop when no frame arrives in time, 0 = never")
}

var recvCmd = &cobra.Command{
	Use:   "recv",
	Short: "print received frames",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		mb, _ := f.GetUint8("mailbox")
		count, _ := f.GetInt("count")
		timeout, _ := f.GetDuration("timeout")

		s, err := initCAN(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		for n := 0; count == 0 || n < count; n++ {
			frame, err := receiveOne(s.ctx, s.Driver, flexcan.Mailbox(mb), timeout)
			if err != nil {
				var te *flexcan.TimeoutError
				if errors.As(err, &te) {
					return nil
				}
				return err
			}
			fmt.Printf("%s %s\n", time.Now().Format("15:04:05.000"), frame.ColorString())
		}
		return nil
	},
}

func receiveOne(ctx context.Context, d *flexcan.Driver, mb flexcan.Mailbox, timeout time.Duration) (flexcan.Frame, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return d.ReceiveWait(ctx, mb)
}
