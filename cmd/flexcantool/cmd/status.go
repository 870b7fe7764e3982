package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/roffe/flexcan"
	"github.com/roffe/flexcan/pkg/regs"
	"github.com/roffe/flexcan/pkg/status"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "print error state and mailbox codes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := initCAN(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		printStatus(s.Driver)
		return nil
	},
}

func printStatus(d *flexcan.Driver) {
	st := d.Status()
	state := color.GreenString
	switch {
	case st.State == status.Off || d.State() == flexcan.StateError:
		state = color.RedString
	case st.State == status.ErrorPassive || st.TxWarning || st.RxWarning:
		state = color.YellowString
	}
	fmt.Println(state("%s: %s", d.Name(), d.State()))
	fmt.Println(state("%s", st))
	fmt.Println(d.Stats())

	t := d.Table()
	for i, c := range t.Codes() {
		role := "rx"
		if i >= t.Rx() {
			role = "tx"
		}
		line := fmt.Sprintf("%2d %s %-5s %s", i, role, t.Selector(i), c)
		switch {
		case c.HoldsData():
			color.Cyan("%s", line)
		case c.InFlight():
			color.Yellow("%s", line)
		case c == regs.CodeInvalid:
			color.Red("%s", line)
		default:
			fmt.Println(line)
		}
	}
}
