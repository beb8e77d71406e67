package main

import (
	"fmt"

	"github.com/cromshield-hub/plas-sub000/internal/color"
	"github.com/cromshield-hub/plas-sub000/internal/cxl"
	"github.com/cromshield-hub/plas-sub000/internal/pcidev"
	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <device>",
	Short: "Show a device's classification and CXL state",
	Long: `Prints the device's classification snapshot, and, when the device carries
the CXL DVSEC, its cache/io/mem capability and enable bits.

Example:
  cxlctl info 0000:03:00.0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := resolveAddress(args[0])
		if err != nil {
			return err
		}

		node, err := newScanner().DeviceInfo(addr)
		if err != nil {
			return err
		}

		fmt.Println(color.Header(fmt.Sprintf("Device %s", node.Address)))
		fmt.Printf("Identity:   %04x:%04x (rev %02x), class %06x\n",
			node.VendorID, node.DeviceID, node.RevisionID, node.ClassCode)
		fmt.Printf("Port type:  %s\n", node.PortType)
		fmt.Printf("Bridge:     %v\n", node.IsBridge)
		fmt.Printf("Sysfs path: %s\n", node.SysfsPath)

		d, err := pcidev.Open(addr, pcidev.WithSysfsRoot(sysfsRoot), pcidev.WithLogger(logger()))
		if err != nil {
			return nil
		}
		defer d.Close()

		caps, err := d.CxlCaps()
		if err != nil {
			return nil // not a CXL device
		}
		fmt.Println(color.Header("CXL"))
		fmt.Printf("Capable: cache=%v io=%v mem=%v\n", caps.Cache, caps.IO, caps.Mem)
		fmt.Printf("Enabled: cache=%v io=%v mem=%v\n", caps.CacheEn, caps.IOEn, caps.MemEn)
		if dvsec, err := d.CxlDvsec(cxl.DvsecIDRegisterLocator); err == nil {
			fmt.Printf("Register locator DVSEC at %#x (rev %d)\n", uint16(dvsec.Offset), dvsec.Revision)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
