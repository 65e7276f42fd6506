package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Export and import move JSONL snapshots of the tasks table across stores,
// including between the sqlite and postgres drivers.
var (
	exportOut string
	importIn  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every task to a JSONL file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "export:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		if err := backend.ExportJSONL(cmd.Context(), exportOut); err != nil {
			fmt.Fprintln(os.Stderr, "export:", err)
			os.Exit(exitSysError)
		}
		fmt.Println("exported tasks to", exportOut)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load tasks from a JSONL file",
	Long:  "Insert every task record from the file, replacing rows that share an id. Malformed lines are skipped.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := attachStore()
		if err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}
		defer backend.Detach()

		if err := backend.ImportJSONL(cmd.Context(), importIn); err != nil {
			fmt.Fprintln(os.Stderr, "import:", err)
			os.Exit(exitSysError)
		}
		fmt.Println("imported tasks from", importIn)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportOut, "out", "tasks.jsonl", "output file")
	importCmd.Flags().StringVar(&importIn, "in", "tasks.jsonl", "input file")
}
