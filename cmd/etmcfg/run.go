package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"etmcfg/common"
	"etmcfg/etm"
)

var (
	runOpts = struct {
		format      string
		snapshotOut string
	}{}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Configure the trace unit",
		Long:  "Disable the trace unit, bind the SVC exception PMU event to Event element 0 and enable it again.\nSteps applied before a failure are left in place.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if runOpts.format != "text" && runOpts.format != "yaml" {
				return fmt.Errorf("unknown format %q (want text or yaml)", runOpts.format)
			}
			opts, unit, err := options(settings)
			if err != nil {
				return err
			}
			if runOpts.snapshotOut != "" && unit == nil {
				return fmt.Errorf("--snapshot-out needs the simulator (--backend sim or --sim-ini)")
			}

			rep, runErr := etm.Run(opts)
			out := cmd.OutOrStdout()
			if runOpts.format == "yaml" {
				err = rep.WriteYAML(out)
			} else {
				err = rep.WriteText(out)
			}
			if err != nil {
				return err
			}

			if runOpts.snapshotOut != "" {
				f, err := os.Create(runOpts.snapshotOut)
				if err != nil {
					return errors.Join(runErr, err)
				}
				if err := writeSnapshot(f, unit.Snapshot("ETE_0")); err != nil {
					return errors.Join(runErr, fmt.Errorf("%s: %w", runOpts.snapshotOut, err))
				}
			}
			return runErr
		},
	}
)

// writeSnapshot writes dev to w and closes it. The close error is joined
// with any write error.
func writeSnapshot(w io.WriteCloser, dev common.DeviceIni) (err error) {
	defer func() { err = errors.Join(err, w.Close()) }()
	_, err = dev.WriteTo(w)
	return err
}

func init() {
	runCmd.Flags().StringVarP(&runOpts.format, "format", "f", "text", "report format: text or yaml")
	runCmd.Flags().StringVar(&runOpts.snapshotOut, "snapshot-out", "", "write the simulated register state to this device .ini file")
}
