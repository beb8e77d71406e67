package main

import (
	"fmt"
	"os"

	"github.com/cromshield-hub/plas-sub000/internal/color"
	"github.com/cromshield-hub/plas-sub000/internal/config"
	"github.com/cromshield-hub/plas-sub000/internal/pci"
	"github.com/cromshield-hub/plas-sub000/internal/topology"
	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"
)

var (
	sysfsRoot  string
	configPath string
	verbose    bool
	noColor    bool
)

var rootCmd = &cobra.Command{
	Use:   "cxlctl",
	Short: "PCI/CXL topology and mailbox inspection tool",
	Long: `cxlctl inspects PCI/CXL devices through sysfs: bus topology, capability
chains, BAR layout, CXL DVSEC state, and the DOE mailbox protocols a device
advertises.

Devices are addressed as DDDD:BB:DD.F, as driver://DDDD:BB:DD.F URIs, or by
name from a YAML inventory passed via --config.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sysfsRoot, "sysfs", "/sys", "sysfs root")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "device inventory YAML")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentPreRun = func(*cobra.Command, []string) {
		if noColor {
			color.Disable()
		}
	}
}

func logger() logr.Logger {
	if !verbose {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		fmt.Fprintln(os.Stderr, prefix, args)
	}, funcr.Options{Verbosity: 2})
}

func newScanner() *topology.Scanner {
	return topology.NewScanner(
		topology.WithRoot(sysfsRoot),
		topology.WithLogger(logger()),
	)
}

// resolveAddress accepts a raw PCI address, a driver:// URI, or a device
// name from the --config inventory.
func resolveAddress(arg string) (pci.Address, error) {
	if addr, err := pci.ParseAddress(arg); err == nil {
		return addr, nil
	}
	if _, addr, err := config.ParseDeviceURI(arg); err == nil {
		return addr, nil
	}
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return pci.Address{}, err
		}
		return cfg.Lookup(arg)
	}
	return pci.Address{}, fmt.Errorf("cannot resolve device %q: not an address, uri, or configured name", arg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
