package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "flexcantool",
	Short:        "FlexCAN controller tool",
	Long:         `Send, receive and inspect frames through FlexCAN mailboxes`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Println(err)
	}
}

const (
	flagInstance = "instance"
	flagConfig   = "config"
	flagRx       = "rx"
	flagDebug    = "debug"
	flagLoopback = "loopback"
	flagRecover  = "recover"
)

func init() {
	log.SetFlags(log.Lshortfile | log.LstdFlags)

	pf := rootCmd.PersistentFlags()
	pf.StringP(flagInstance, "i", "", "controller instance, empty = select interactively")
	pf.StringP(flagConfig, "c", "", "YAML start configuration")
	pf.Int(flagRx, 0, "receive mailboxes, 0 = driver default")
	pf.BoolP(flagDebug, "d", false, "debug mode")
	pf.BoolP(flagLoopback, "l", false, "internal loopback")
	pf.Bool(flagRecover, false, "restart the controller after bus off")
}
