package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/roffe/flexcan/instance"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolP("vectors", "v", false, "show interrupt vectors")
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "list controller instances",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		vectors, _ := cmd.Flags().GetBool("vectors")
		for _, info := range instance.List() {
			if info.Simulated {
				color.Yellow("%s", info.String())
			} else {
				color.Green("%s", info.String())
			}
			if !vectors {
				continue
			}
			for _, v := range info.Vectors() {
				fmt.Printf("    %-10s %3d\n", v, info.IRQ[v])
			}
		}
		return nil
	},
}
