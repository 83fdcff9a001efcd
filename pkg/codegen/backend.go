package codegen

import (
	"bytes"
	"fmt"

	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/typeChecker"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate lowers a checked program to target assembly. info must be the
	// Context the type checker produced for prog.
	Generate(prog *ast.Program, info *typeChecker.Context, cfg *config.Config) (*bytes.Buffer, error)
}

// NewBackend returns the backend cfg selects.
func NewBackend(cfg *config.Config) (Backend, error) {
	switch cfg.BackendName {
	case config.BackendI8086:
		return NewI8086Backend(), nil
	case config.BackendQBE:
		return NewQBEBackend(), nil
	}
	return nil, fmt.Errorf("unsupported backend '%s'", cfg.BackendName)
}
