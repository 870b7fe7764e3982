package cmd

import (
	"log"

	"github.com/roffe/flexcan/pkg/slcan"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bridgeCmd)
	f := bridgeCmd.Flags()
	f.StringP("port", "p", "", "serial port")
	f.IntP("baudrate", "b", 115200, "baudrate")
	bridgeCmd.MarkFlagRequired("port")
}

var bridgeCmd = &cobra.Command{
	Use:   "bridge",
	Short: "expose the controller as an SLCAN adapter on a serial port",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		portName, _ := f.GetString("port")
		baudrate, _ := f.GetInt("baudrate")
		debug, _ := f.GetBool(flagDebug)

		s, err := initCAN(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		cfg, err := startConfig(cmd)
		if err != nil {
			return err
		}
		// The host opens the channel with the O command.
		if err := s.Stop(); err != nil {
			return err
		}

		port, err := slcan.OpenPort(portName, baudrate)
		if err != nil {
			return err
		}
		defer port.Close()

		b := slcan.New(port, s.Driver, cfg)
		b.Debug = debug
		b.OnMessage = func(msg string) {
			log.Println(msg)
		}
		log.Printf("bridging %s to %s", s.Info.Name, portName)
		return b.Run(s.ctx)
	},
}
