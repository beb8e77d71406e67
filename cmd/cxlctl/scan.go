package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List PCI devices",
	Long:  "Scans <sysfs>/bus/pci/devices and lists every device with its classification.",
	RunE: func(cmd *cobra.Command, args []string) error {
		nodes, err := newScanner().Scan()
		if err != nil {
			return fmt.Errorf("failed to scan devices: %w", err)
		}

		if len(nodes) == 0 {
			fmt.Println("No PCI devices found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ADDRESS\tVENDOR\tDEVICE\tCLASS\tPORT TYPE\tBRIDGE")
		fmt.Fprintln(w, "-------\t------\t------\t-----\t---------\t------")

		for _, node := range nodes {
			bridge := ""
			if node.IsBridge {
				bridge = "yes"
			}
			fmt.Fprintf(w, "%s\t%04x\t%04x\t%06x\t%s\t%s\n",
				node.Address,
				node.VendorID,
				node.DeviceID,
				node.ClassCode,
				node.PortType,
				bridge,
			)
		}
		w.Flush()

		fmt.Printf("\nTotal: %d devices\n", len(nodes))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}
