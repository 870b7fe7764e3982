package cmd

import (
	"context"
	"log"
	"time"

	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/bar"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(burstCmd)
	f := burstCmd.Flags()
	f.IntP("count", "n", 1000, "number of frames")
	f.BoolP("extended", "e", false, "29 bit identifier")
	f.DurationP("timeout", "t", time.Second, "wait for a free mailbox per frame")
}

var burstCmd = &cobra.Command{
	Use:   "burst <id>",
	Short: "send a numbered burst of frames as fast as mailboxes free up",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		count, _ := f.GetInt("count")
		ext, _ := f.GetBool("extended")
		timeout, _ := f.GetDuration("timeout")

		id, err := parseID(args[0])
		if err != nil {
			return err
		}

		s, err := initCAN(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		pb := bar.Frames(count, "sending")
		start := time.Now()
		for i := 0; i < count; i++ {
			frame := flexcan.Frame{ID: id, Extended: ext, Length: 8}
			frame.Data[0] = byte(i >> 24)
			frame.Data[1] = byte(i >> 16)
			frame.Data[2] = byte(i >> 8)
			frame.Data[3] = byte(i)
			if err := sendOne(s.ctx, s.Driver, &frame, timeout); err != nil {
				return err
			}
			pb.Add(1)
		}
		pb.Finish()
		log.Printf("sent %d frames in %s, %s", count, time.Since(start).Round(time.Millisecond), s.Stats())
		return nil
	},
}

func sendOne(ctx context.Context, d *flexcan.Driver, f *flexcan.Frame, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.TransmitWait(ctx, flexcan.AnyMailbox, f)
}
