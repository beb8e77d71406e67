package main

import (
	"fmt"

	"github.com/cromshield-hub/plas-sub000/internal/color"
	"github.com/spf13/cobra"
)

var removeCmd = &cobra.Command{
	Use:   "remove <device>",
	Short: "Hot-remove a device from the bus",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := resolveAddress(args[0])
		if err != nil {
			return err
		}
		if err := newScanner().RemoveDevice(addr); err != nil {
			return fmt.Errorf("failed to remove %s: %w", addr, err)
		}
		fmt.Println(color.Okf("removed %s", addr))
		return nil
	},
}

var rescanCmd = &cobra.Command{
	Use:   "rescan [bridge]",
	Short: "Rescan the whole bus, or the segment below a bridge",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := newScanner()
		if len(args) == 0 {
			if err := s.RescanAll(); err != nil {
				return fmt.Errorf("bus rescan failed: %w", err)
			}
			fmt.Println(color.OK("bus rescan triggered"))
			return nil
		}

		addr, err := resolveAddress(args[0])
		if err != nil {
			return err
		}
		if err := s.RescanBridge(addr); err != nil {
			return fmt.Errorf("failed to rescan below %s: %w", addr, err)
		}
		fmt.Println(color.Okf("rescan below %s triggered", addr))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
	rootCmd.AddCommand(rescanCmd)
}
