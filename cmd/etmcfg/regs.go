package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"etmcfg/internal/regs"
)

var regsFields bool

var regsCmd = &cobra.Command{
	Use:   "regs [name...]",
	Short: "Print the register and bitfield model",
	RunE: func(cmd *cobra.Command, args []string) error {
		list := regs.Default().All()
		if len(args) > 0 {
			list = list[:0]
			for _, name := range args {
				r, err := regs.Lookup(name)
				if err != nil {
					return err
				}
				list = append(list, r)
			}
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 8, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tACCESS\tOFFSET\tSYSREG\tDESCRIPTION")
		for _, r := range list {
			off, sys := "-", "-"
			if r.HasOffset {
				off = fmt.Sprintf("0x%03X", r.Offset)
			}
			if r.HasSys {
				sys = r.Sys.String()
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Name, r.Access, off, sys, r.Desc)
			if !regsFields && len(args) == 0 {
				continue
			}
			for _, f := range r.Fields {
				bits := fmt.Sprintf("[%d:%d]", f.Msb, f.Lsb)
				if f.Msb == f.Lsb {
					bits = fmt.Sprintf("[%d]", f.Lsb)
				}
				desc := f.Desc
				if f.IsAlias() {
					desc = "view of " + f.AliasOf + "; " + desc
				}
				fmt.Fprintf(tw, "  %s\t%s\t\t\t%s\n", f.Name, bits, desc)
			}
		}
		return tw.Flush()
	},
}

func init() {
	regsCmd.Flags().BoolVar(&regsFields, "fields", false, "list the fields of every register")
}
