package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgervm/vm/repository"
	"github.com/ledgervm/vm/storage"
	_ "github.com/ledgervm/vm/storage/db"
	_ "github.com/ledgervm/vm/storage/leveldb"
	_ "github.com/ledgervm/vm/storage/memory"
	"github.com/ledgervm/vm/vm"
)

var (
	execRepoDir  string
	contractName string
	methodName   string
	storeType    string
	storePath    string
	methodArgs   []string
)

var executeCmd = &cobra.Command{
	Use:   "execute",
	Short: "Execute a deployed contract method",
	Long: `Execute a method of a deployed contract against a state store.
Arguments are pushed onto the evaluation stack in the order given;
values parsing as integers are pushed as Number, anything else as
String.
Example: vm-cli execute -r ./contracts -n counter -m increment -s db --store-path ./state.db`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if contractName == "" || methodName == "" {
			return fmt.Errorf("both --contract and --method are required")
		}

		mgr, err := repository.NewManager(execRepoDir)
		if err != nil {
			return err
		}

		module, err := mgr.Get(contractName)
		if err != nil {
			return err
		}
		ctx, err := vm.NewExecutionContext(module.Name, module.Code, module.ABI.MethodOffsets())
		if err != nil {
			return err
		}

		store, err := storage.Get(storage.StoreType(storeType), map[string]any{
			"db_path": storePath,
		})
		if err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer store.Close()

		engine, err := vm.NewEngineForMethod(ctx, methodName, vm.Config{
			Store:     store,
			Loader:    mgr.Loader(),
			BlockTime: time.Now().Unix(),
		})
		if err != nil {
			return err
		}
		if err := engine.RegisterDefaultInterops(); err != nil {
			return err
		}

		for _, arg := range methodArgs {
			if n, err := strconv.ParseInt(arg, 10, 64); err == nil {
				engine.Stack().Push(vm.NewNumberFromInt64(n))
			} else {
				engine.Stack().Push(vm.NewString(arg))
			}
		}

		state := engine.Run()
		for state == vm.StateBreak {
			engine.Resume()
			state = engine.Run()
		}
		if state == vm.StateFault {
			return fmt.Errorf("execution faulted: %w", engine.FaultError())
		}

		for _, line := range engine.Logs() {
			fmt.Printf("log: %s\n", line)
		}
		results := engine.Stack().Items()
		if len(results) == 0 {
			fmt.Println("Halted with no results")
			return nil
		}
		fmt.Println("Results:")
		for i, value := range results {
			fmt.Printf("  [%d] %s: %s\n", i, value.Type(), value)
		}
		return nil
	},
}

func init() {
	executeCmd.Flags().StringVarP(&execRepoDir, "repo", "r", ".contracts", "repository directory")
	executeCmd.Flags().StringVarP(&contractName, "contract", "n", "", "contract name")
	executeCmd.Flags().StringVarP(&methodName, "method", "m", "", "method name")
	executeCmd.Flags().StringVarP(&storeType, "store", "s", "memory", "state store backend (memory, db, leveldb)")
	executeCmd.Flags().StringVar(&storePath, "store-path", "", "state store path for db and leveldb backends")
	executeCmd.Flags().StringArrayVar(&methodArgs, "arg", nil, "argument to push before execution (repeatable)")
}
