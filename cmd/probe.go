package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/smazurov/qhynode/internal/capture"
	"github.com/smazurov/qhynode/pkg/qhyccd"
	"github.com/spf13/cobra"
)

// CreateProbeCmd creates the probe command.
func CreateProbeCmd() *cobra.Command {
	var flags sdkFlags

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the SDK library and list connected cameras",
		Long: `Loads the QHYCCD SDK library, prints where it was found and which functions it exports, ` +
			`then initializes the SDK resource, scans for cameras and lists their identifiers.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			flags.initLogging()
			cmd.SilenceUsage = true
			return runProbe(cmd.OutOrStdout(), flags.source())
		},
	}

	flags.register(cmd)
	return cmd
}

func runProbe(w io.Writer, source capture.SDKSource) error {
	defer source.Unload()

	sdk, err := source.Acquire()
	status := source.Status()

	fmt.Fprintf(w, "library:   %s\n", status.Path)
	if status.Simulated {
		fmt.Fprintln(w, "mode:      simulated")
	}
	if status.Version != "" {
		fmt.Fprintf(w, "version:   %s\n", status.Version)
	}

	if len(status.Symbols) > 0 {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tREQUIRED\tBOUND")
		for _, sym := range status.Symbols {
			fmt.Fprintf(tw, "%s\t%v\t%v\n", sym.Name, sym.Required, sym.Bound)
		}
		tw.Flush()
	}

	if err != nil {
		return fmt.Errorf("%s: %w", capture.Message(err), err)
	}

	if code := sdk.InitResource(); code != qhyccd.Success {
		return fmt.Errorf("%s (code %d)", capture.MsgResourceInit, code)
	}
	defer sdk.ReleaseResource()

	count := sdk.Scan()
	fmt.Fprintf(w, "cameras:   %d\n", count)
	for i := uint32(0); i < count; i++ {
		id, code := sdk.CameraID(i)
		if code != qhyccd.Success {
			fmt.Fprintf(w, "  [%d] %s (code %d)\n", i, capture.MsgIdentification, code)
			continue
		}
		fmt.Fprintf(w, "  [%d] %s\n", i, id)
	}
	return nil
}
