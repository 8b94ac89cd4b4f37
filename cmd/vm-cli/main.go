package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "vm-cli",
	Short: "VM management command line tool",
	Long: `VM management command line tool for deploying and executing contract
bytecode modules against a pluggable state store.`,
}

func init() {
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(executeCmd)
	rootCmd.AddCommand(inspectCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
