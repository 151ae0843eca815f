package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"etmcfg/etm"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Read and decode the registers the configuration uses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, _, err := options(settings)
		if err != nil {
			return err
		}
		vals, err := etm.Dump(opts)
		out := cmd.OutOrStdout()
		for _, v := range vals {
			if v.Err != nil {
				fmt.Fprintf(out, "%-14s <%v>\n", v.Name, v.Err)
				continue
			}
			fmt.Fprintf(out, "%-14s 0x%08X\n", v.Name, v.Value)
			for _, f := range v.Fields {
				if f.Meaning != "" {
					fmt.Fprintf(out, "    %-14s %#x (%s)\n", f.Name, f.Value, f.Meaning)
				} else {
					fmt.Fprintf(out, "    %-14s %#x\n", f.Name, f.Value)
				}
			}
		}
		return err
	},
}
