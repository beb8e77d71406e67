package main

import (
	"fmt"
	"strings"

	"github.com/cromshield-hub/plas-sub000/internal/color"
	"github.com/spf13/cobra"
)

var topoCmd = &cobra.Command{
	Use:   "topo <device>",
	Short: "Show a device's path to the root complex",
	Long: `Resolves the device's ancestor chain and prints it root-first, together
with the root port and the device's direct children when it is a bridge.

Example:
  cxlctl topo 0000:03:00.0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := resolveAddress(args[0])
		if err != nil {
			return err
		}
		s := newScanner()

		nodes, err := s.PathToRoot(addr)
		if err != nil {
			return fmt.Errorf("failed to resolve path to root: %w", err)
		}

		fmt.Println(color.Header("Path to root"))
		for i := len(nodes) - 1; i >= 0; i-- {
			node := nodes[i]
			indent := strings.Repeat("  ", len(nodes)-1-i)
			marker := ""
			if node.Address == addr {
				marker = " " + color.Bold("<- device")
			}
			fmt.Printf("%s%s  %s%s\n", indent, node.Address, color.Dim("["+node.PortType.String()+"]"), marker)
		}

		if rp, err := s.RootPort(addr); err == nil {
			fmt.Printf("\nRoot port: %s\n", rp)
		}

		if parent, err := s.Parent(addr); err == nil {
			if parent == nil {
				fmt.Println("Parent:    none (directly under the root complex)")
			} else {
				fmt.Printf("Parent:    %s\n", *parent)
			}
		}

		if children, err := s.Children(addr); err == nil && len(children) > 0 {
			fmt.Println("Children:")
			for _, child := range children {
				fmt.Printf("  %s\n", child)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(topoCmd)
}
