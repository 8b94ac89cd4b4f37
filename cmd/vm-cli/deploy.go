package main

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ledgervm/vm/abi"
	"github.com/ledgervm/vm/repository"
)

var (
	codeFile string
	abiFile  string
	repoDir  string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy a contract module",
	Long: `Deploy a compiled contract module to the repository.
Example: vm-cli deploy -c contract.hex -a contract.abi.json -r ./contracts`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if codeFile == "" || abiFile == "" {
			return fmt.Errorf("both --code and --abi are required")
		}

		code, err := readBytecode(codeFile)
		if err != nil {
			return fmt.Errorf("failed to read bytecode: %w", err)
		}

		abiData, err := os.ReadFile(abiFile)
		if err != nil {
			return fmt.Errorf("failed to read ABI file: %w", err)
		}
		contract, err := abi.Decode(abiData)
		if err != nil {
			return fmt.Errorf("failed to parse ABI: %w", err)
		}

		mgr, err := repository.NewManager(repoDir)
		if err != nil {
			return err
		}

		module := &repository.Module{
			Name: contract.Name,
			Code: code,
			ABI:  contract,
		}
		if err := mgr.Register(module); err != nil {
			return fmt.Errorf("failed to deploy contract: %w", err)
		}

		slog.Info("contract deployed", "name", contract.Name, "code_size", len(code), "methods", len(contract.Methods))
		fmt.Printf("Deployed %s (%d bytes, %d methods)\n", contract.Name, len(code), len(contract.Methods))
		return nil
	},
}

// readBytecode loads a module's bytecode. Files ending in .hex hold
// hex text, anything else is raw bytes.
func readBytecode(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.HasSuffix(path, ".hex") {
		return hex.DecodeString(strings.TrimSpace(string(data)))
	}
	return data, nil
}

func init() {
	deployCmd.Flags().StringVarP(&codeFile, "code", "c", "", "bytecode file (.hex or raw)")
	deployCmd.Flags().StringVarP(&abiFile, "abi", "a", "", "ABI JSON file")
	deployCmd.Flags().StringVarP(&repoDir, "repo", "r", ".contracts", "repository directory")
}
