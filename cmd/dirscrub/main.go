package main

import (
	"fmt"
	"os"

	"dirscrub/internal/cmd"
	"dirscrub/internal/exitcodes"
)

func main() {
	rootCmd := cmd.NewRootCommand()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitcodes.FromError(err))
	}
}
