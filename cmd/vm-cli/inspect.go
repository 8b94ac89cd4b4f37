package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgervm/vm/repository"
)

var inspectRepoDir string

var inspectCmd = &cobra.Command{
	Use:   "inspect [contract]",
	Short: "Show deployed contracts and their ABI",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := repository.NewManager(inspectRepoDir)
		if err != nil {
			return err
		}

		if len(args) == 0 {
			names, err := mgr.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Println(name)
			}
			return nil
		}

		module, err := mgr.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Contract: %s (%d bytes)\n", module.Name, len(module.Code))
		for _, m := range module.ABI.Methods {
			fmt.Printf("  %s @ %d", m.DisplayName(), m.Offset)
			if len(m.Inputs) > 0 || len(m.Outputs) > 0 {
				fmt.Printf("  (%d in, %d out)", len(m.Inputs), len(m.Outputs))
			}
			fmt.Println()
		}
		for _, s := range module.ABI.Structs {
			fmt.Printf("  struct %s with %d fields\n", s.Name, len(s.Fields))
		}
		for _, e := range module.ABI.Enums {
			fmt.Printf("  enum %s with %d members\n", e.Name, len(e.Members))
		}
		return nil
	},
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectRepoDir, "repo", "r", ".contracts", "repository directory")
}
