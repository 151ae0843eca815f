package main

import (
	"fmt"

	"github.com/spf13/cobra"

	errs "etmcfg/internal/common"
	"etmcfg/internal/etmdef"
)

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List error codes and their descriptions",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "etmcfg Error Code List")
		fmt.Fprintln(out)
		for _, d := range errs.Codes() {
			if d.Code == etmdef.ErrLast {
				continue
			}
			fmt.Fprintf(out, "%d: %s - %s\n", d.Code, d.Name, d.Msg)
		}
	},
}
