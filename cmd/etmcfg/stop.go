package main

import (
	"github.com/spf13/cobra"

	"etmcfg/etm"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Teardown; leaves the trace unit configured",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		etm.Stop(logger)
	},
}
