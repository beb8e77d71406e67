package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/cromshield-hub/plas-sub000/internal/pci"
	"github.com/cromshield-hub/plas-sub000/internal/pcidev"
	"github.com/spf13/cobra"
)

var capsCmd = &cobra.Command{
	Use:   "caps <device>",
	Short: "List a device's capability chains",
	Long: `Walks the standard capability list from the Capabilities Pointer and the
extended capability list from 0x100, printing every entry.

Example:
  cxlctl caps 0000:03:00.0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := resolveAddress(args[0])
		if err != nil {
			return err
		}
		d, err := pcidev.Open(addr, pcidev.WithSysfsRoot(sysfsRoot), pcidev.WithLogger(logger()))
		if err != nil {
			return err
		}
		defer d.Close()

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "OFFSET\tID\tNAME")

		if err := listCapabilities(w, d); err != nil {
			return err
		}
		if err := listExtCapabilities(w, d); err != nil {
			return err
		}
		return w.Flush()
	},
}

// listCapabilities walks the standard capability list the same way
// FindCapability does, printing instead of matching.
func listCapabilities(w *tabwriter.Writer, d *pcidev.Device) error {
	status, err := d.ReadConfig16(0x06)
	if err != nil {
		return err
	}
	if status&0x0010 == 0 {
		return nil
	}
	ptr, err := d.ReadConfig8(0x34)
	if err != nil {
		return err
	}

	offset := pci.ConfigOffset(ptr & 0xFC)
	for hops := 0; offset != 0 && hops < 48; hops++ {
		id, err := d.ReadConfig8(offset)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%#04x\t%02x\t%s\n", uint16(offset), id, pci.CapabilityID(id))

		next, err := d.ReadConfig8(offset + 1)
		if err != nil {
			return err
		}
		offset = pci.ConfigOffset(next & 0xFC)
	}
	return nil
}

// listExtCapabilities walks the extended list from 0x100 with the same
// termination rules as FindExtCapability.
func listExtCapabilities(w *tabwriter.Writer, d *pcidev.Device) error {
	offset := pci.ConfigOffset(0x100)
	for hops := 0; hops < 256; hops++ {
		header, err := d.ReadConfig32(offset)
		if err != nil {
			return err
		}
		if header == 0 || header == 0xFFFFFFFF {
			return nil
		}
		id := pci.ExtCapabilityID(header & 0xFFFF)
		fmt.Fprintf(w, "%#05x\t%04x\t%s\n", uint16(offset), uint16(id), id)

		next := pci.ConfigOffset(header >> 20 & 0xFFC)
		if next == 0 || next <= offset {
			return nil
		}
		offset = next
	}
	return nil
}

func init() {
	rootCmd.AddCommand(capsCmd)
}
