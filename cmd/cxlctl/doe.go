package main

import (
	"fmt"
	"time"

	"github.com/cromshield-hub/plas-sub000/internal/color"
	"github.com/cromshield-hub/plas-sub000/internal/config"
	"github.com/cromshield-hub/plas-sub000/internal/doe"
	"github.com/cromshield-hub/plas-sub000/internal/pcidev"
	"github.com/spf13/cobra"
)

var (
	doeTimeoutMillis  int
	doeIntervalMicros int
)

var doeCmd = &cobra.Command{
	Use:   "doe <device>",
	Short: "Discover the protocols of a device's DOE mailbox",
	Long: `Locates the device's DOE extended capability and runs the discovery
protocol against its mailbox, listing every advertised protocol.

Example:
  cxlctl doe 0000:03:00.0 --timeout-ms 500`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := resolveAddress(args[0])
		if err != nil {
			return err
		}

		opts := doeOptions(cmd)
		d, err := pcidev.Open(addr,
			pcidev.WithSysfsRoot(sysfsRoot),
			pcidev.WithLogger(logger()),
			pcidev.WithDoeOptions(opts...),
		)
		if err != nil {
			return err
		}
		defer d.Close()

		mb, err := d.DOE()
		if err != nil {
			return fmt.Errorf("no DOE mailbox on %s: %w", addr, err)
		}

		protocols, err := mb.Discover()
		if err != nil {
			return fmt.Errorf("doe discovery on %s: %w", addr, err)
		}

		fmt.Println(color.Okf("%s advertises %d DOE protocol(s):", addr, len(protocols)))
		for _, proto := range protocols {
			fmt.Printf("  vendor %04x, object type %02x\n", proto.VendorID, proto.DataObjectType)
		}
		return nil
	},
}

// doeOptions merges the inventory defaults with explicit flags; flags win.
func doeOptions(cmd *cobra.Command) []doe.Option {
	var opts []doe.Option
	if configPath != "" {
		if cfg, err := config.Load(configPath); err == nil {
			if cfg.DoeTimeout() > 0 {
				opts = append(opts, doe.WithTimeout(cfg.DoeTimeout()))
			}
			if cfg.DoePollInterval() > 0 {
				opts = append(opts, doe.WithPollInterval(cfg.DoePollInterval()))
			}
		}
	}
	if cmd.Flags().Changed("timeout-ms") {
		opts = append(opts, doe.WithTimeout(time.Duration(doeTimeoutMillis)*time.Millisecond))
	}
	if cmd.Flags().Changed("interval-us") {
		opts = append(opts, doe.WithPollInterval(time.Duration(doeIntervalMicros)*time.Microsecond))
	}
	return opts
}

func init() {
	doeCmd.Flags().IntVar(&doeTimeoutMillis, "timeout-ms", 1000, "poll deadline in milliseconds")
	doeCmd.Flags().IntVar(&doeIntervalMicros, "interval-us", 100, "poll interval in microseconds")
	rootCmd.AddCommand(doeCmd)
}
