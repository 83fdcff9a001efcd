// Package compiler drives one source file through every stage.
package compiler

import (
	"github.com/quinlang/qlc/pkg/ast"
	"github.com/quinlang/qlc/pkg/codegen"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/lexer"
	"github.com/quinlang/qlc/pkg/parser"
	"github.com/quinlang/qlc/pkg/typeChecker"
	"github.com/quinlang/qlc/pkg/util"
)

// Stage names a pipeline step for progress reporting.
type Stage string

const (
	StageLex      Stage = "Lexing"
	StageParse    Stage = "Parsing"
	StageCheck    Stage = "Type checking"
	StageFold     Stage = "Folding constants"
	StageGenerate Stage = "Generating code"
)

type Options struct {
	// DumpIR returns the backend's intermediate form (QBE IL) instead of
	// assembling it. The 8086 backend has no separate IR.
	DumpIR bool
	// OnStage, when set, is called as each stage starts.
	OnStage func(Stage)
}

type Result struct {
	Assembly string
	Warnings []*util.Diagnostic
	Program  *ast.Program
	Context  *typeChecker.Context
}

type irDumper interface {
	GenerateIR(prog *ast.Program, info *typeChecker.Context, cfg *config.Config) (string, error)
}

// Compile runs Lex, Parse, Check, the optional fold, and Generate. The
// first error aborts; warnings gathered up to that point are still returned
// in the partial Result.
func Compile(src []byte, cfg *config.Config, opts Options) (*Result, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	res := &Result{}
	stage := func(s Stage) {
		if opts.OnStage != nil {
			opts.OnStage(s)
		}
	}

	stage(StageLex)
	l := lexer.NewLexer([]rune(string(src)), cfg)
	tokens, err := l.Tokenize()
	res.Warnings = append(res.Warnings, l.Warnings()...)
	if err != nil {
		return res, err
	}

	stage(StageParse)
	prog, err := parser.NewParser(tokens).Parse()
	if err != nil {
		return res, err
	}
	res.Program = prog

	stage(StageCheck)
	tc := typeChecker.NewTypeChecker(cfg)
	info, err := tc.Check(prog)
	res.Warnings = append(res.Warnings, tc.Warnings()...)
	if err != nil {
		return res, err
	}
	res.Context = info

	if cfg.IsFeatureEnabled(config.FeatFold) {
		stage(StageFold)
		folder := &ast.Folder{Arena: prog.Arena, OnFold: info.CopyAnnotation}
		if err := folder.FoldProgram(prog); err != nil {
			return res, err
		}
	}

	stage(StageGenerate)
	backend, err := codegen.NewBackend(cfg)
	if err != nil {
		return res, err
	}
	if dumper, ok := backend.(irDumper); ok && opts.DumpIR {
		res.Assembly, err = dumper.GenerateIR(prog, info, cfg)
		return res, err
	}
	buf, err := backend.Generate(prog, info, cfg)
	if err != nil {
		return res, err
	}
	res.Assembly = buf.String()
	return res, nil
}
