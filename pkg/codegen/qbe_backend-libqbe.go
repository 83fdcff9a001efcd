//go:build !windows

package codegen

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/typeChecker"
	"modernc.org/libqbe"
)

func (b *qbeBackend) Generate(prog *ast.Program, info *typeChecker.Context, cfg *config.Config) (*bytes.Buffer, error) {
	qbeIR, err := b.GenerateIR(prog, info, cfg)
	if err != nil {
		return nil, err
	}

	var asmBuf bytes.Buffer
	err = libqbe.Main(cfg.BackendTarget, "input.ssa", strings.NewReader(qbeIR), &asmBuf, nil)
	if err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nlibqbe error: %w", qbeIR, err)
	}
	return &asmBuf, nil
}
