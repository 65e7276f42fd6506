package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/tasktree/pkg/tasktree"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the taskd version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("taskd", tasktree.Version)
	},
}
