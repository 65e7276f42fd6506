// Command taskd serves a hierarchical task tree over HTTP and ships the
// maintenance commands around it.
package main

import "os"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitUserError)
	}
}
