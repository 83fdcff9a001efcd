//go:build windows

package codegen

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/typeChecker"
)

func (b *qbeBackend) Generate(prog *ast.Program, info *typeChecker.Context, cfg *config.Config) (*bytes.Buffer, error) {
	if _, err := exec.LookPath("qbe"); err != nil {
		return nil, fmt.Errorf("self-contained QBE backend is not supported on Windows and 'qbe' is not in PATH: %w", err)
	}

	qbeIR, err := b.GenerateIR(prog, info, cfg)
	if err != nil {
		return nil, err
	}

	inputFile, err := os.CreateTemp("", "qlc-qbe-*.ssa")
	if err != nil {
		return nil, err
	}
	defer os.Remove(inputFile.Name())
	defer inputFile.Close()

	if _, err = inputFile.WriteString(qbeIR); err != nil {
		return nil, err
	}

	outputFileName := inputFile.Name() + ".s"
	cmd := exec.Command("qbe", "-o", outputFileName, "-t", cfg.BackendTarget, inputFile.Name())
	if err = cmd.Run(); err != nil {
		return nil, fmt.Errorf("\n--- QBE Compilation Failed ---\nGenerated IR:\n%s\n\nError: %w", qbeIR, err)
	}

	outputFile, err := os.Open(outputFileName)
	if err != nil {
		return nil, err
	}
	defer os.Remove(outputFileName)
	defer outputFile.Close()

	var asmBuf bytes.Buffer
	if _, err = io.Copy(&asmBuf, outputFile); err != nil {
		return nil, err
	}
	return &asmBuf, nil
}
