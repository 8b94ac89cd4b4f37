// Package repository stores deployed contract modules on disk and
// resolves them by name for the virtual machine's context loader.
package repository

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/ledgervm/vm/abi"
	"github.com/ledgervm/vm/core"
	"github.com/ledgervm/vm/vm"
)

// Module is one deployed contract: its bytecode and its ABI, bundled
// into a CBOR envelope on disk.
type Module struct {
	Name string        `cbor:"1,keyasint"`
	Code []byte        `cbor:"2,keyasint"`
	ABI  *abi.Contract `cbor:"3,keyasint"`
}

// metadata sits next to the envelope for quick inspection without
// decoding it.
type metadata struct {
	Name       string    `json:"name"`
	Hash       string    `json:"hash"`
	UpdateTime time.Time `json:"update_time"`
}

const (
	moduleFile   = "module.cbor"
	metadataFile = "metadata.json"
)

// Manager is the on-disk module store. One directory per contract
// name under the root.
type Manager struct {
	rootDir string
}

// NewManager creates a module store rooted at rootDir.
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		slog.Error("failed to create root directory", "dir", rootDir, "error", err)
		return nil, fmt.Errorf("failed to create root directory: %w", err)
	}

	return &Manager{rootDir: rootDir}, nil
}

// Register stores a new module. The module's ABI must validate and the
// name must not already be taken; deployed modules are immutable.
func (m *Manager) Register(module *Module) error {
	if module == nil || module.Name == "" {
		return fmt.Errorf("%w: module and module name are required", core.ErrInvalidArgument)
	}
	if !validModuleName(module.Name) {
		return fmt.Errorf("%w: module name %q must not contain path separators", core.ErrInvalidArgument, module.Name)
	}
	if len(module.Code) == 0 {
		return fmt.Errorf("%w: module %s has no bytecode", core.ErrInvalidArgument, module.Name)
	}
	if module.ABI == nil {
		return fmt.Errorf("%w: module %s has no ABI", core.ErrInvalidArgument, module.Name)
	}
	if module.ABI.Name != module.Name {
		return fmt.Errorf("%w: ABI is for %s, module is %s", core.ErrInvalidArgument, module.ABI.Name, module.Name)
	}
	if err := module.ABI.Validate(); err != nil {
		return err
	}

	moduleDir := m.moduleDir(module.Name)
	if _, err := os.Stat(moduleDir); err == nil {
		return fmt.Errorf("contract already exists: %s", module.Name)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to check module directory: %w", err)
	}

	if err := os.MkdirAll(moduleDir, 0755); err != nil {
		return fmt.Errorf("failed to create module directory: %w", err)
	}

	envelope, err := cbor.Marshal(module)
	if err != nil {
		os.RemoveAll(moduleDir)
		return fmt.Errorf("failed to encode module: %w", err)
	}

	hash := sha256.Sum256(module.Code)
	meta, err := json.MarshalIndent(metadata{
		Name:       module.Name,
		Hash:       hex.EncodeToString(hash[:]),
		UpdateTime: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		os.RemoveAll(moduleDir)
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := os.WriteFile(filepath.Join(moduleDir, moduleFile), envelope, 0644); err != nil {
		os.RemoveAll(moduleDir)
		return fmt.Errorf("failed to write module file: %w", err)
	}
	if err := os.WriteFile(filepath.Join(moduleDir, metadataFile), meta, 0644); err != nil {
		os.RemoveAll(moduleDir)
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	return nil
}

// Get loads a deployed module by name.
func (m *Manager) Get(name string) (*Module, error) {
	if !validModuleName(name) {
		return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, name)
	}
	envelope, err := os.ReadFile(filepath.Join(m.moduleDir(name), moduleFile))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", core.ErrContractNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read module file: %w", err)
	}

	var module Module
	if err := cbor.Unmarshal(envelope, &module); err != nil {
		return nil, fmt.Errorf("failed to decode module %s: %w", name, err)
	}
	return &module, nil
}

// List returns the names of all deployed modules.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read root directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	return names, nil
}

// Loader adapts the manager into the engine's context loader hook.
// Unknown names resolve to nil, which the engine reports as an unknown
// context fault at the call site.
func (m *Manager) Loader() vm.ContextLoader {
	return func(name string) *vm.ExecutionContext {
		module, err := m.Get(name)
		if err != nil {
			return nil
		}
		ctx, err := vm.NewExecutionContext(module.Name, module.Code, module.ABI.MethodOffsets())
		if err != nil {
			slog.Error("deployed module is not loadable", "name", name, "error", err)
			return nil
		}
		return ctx
	}
}

func (m *Manager) moduleDir(name string) string {
	return filepath.Join(m.rootDir, name)
}

// validModuleName rejects names that would resolve to a directory
// outside the repository root.
func validModuleName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.Contains(name, "..") {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}
