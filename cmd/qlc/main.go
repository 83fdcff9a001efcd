package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pterm/pterm"
	"github.com/quinlang/qlc/pkg/cli"
	"github.com/quinlang/qlc/pkg/compiler"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/util"
)

const defaultOutput = "build/out.asm"

func main() {
	os.Exit(run(os.Args[1:]))
}

// run executes one qlc invocation and returns the process exit status.
func run(args []string) int {
	app := cli.NewApp("qlc")
	app.Synopsis = "[options] <input.ql>"
	app.Description = "An ahead-of-time compiler for QuinLang. Emits 16-bit 8086 assembly (NASM syntax), or host assembly through QBE."
	app.Authors = []string{"The QuinLang authors"}
	app.Repository = "<https://github.com/quinlang/qlc>"

	var (
		outFile    string
		std        string
		target     string
		configFile string
		dumpIR     bool
		verbose    bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Place the output into <file> (default "+defaultOutput+").", "file")
	fs.String(&target, "target", "t", "", "Set the backend and target: i8086, qbe or qbe/<target>.", "backend/target")
	fs.Bool(&dumpIR, "dump-ir", "d", false, "Write the backend's intermediate representation instead of assembly.")
	fs.String(&std, "std", "", "", "Specify language standard (ql, legacy).", "std")
	fs.String(&configFile, "config", "c", "", "Read project settings from a qlc.toml file.", "file")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation stage.")

	cfg := config.NewConfig()
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)

	app.Action = func(inputFiles []string) error {
		if len(inputFiles) != 1 {
			pterm.Error.Println("expected exactly one input file")
			return fmt.Errorf("expected exactly one input file, got %d", len(inputFiles))
		}
		inputPath := inputFiles[0]

		// Project file first, so command-line switches override it
		if configFile != "" {
			if err := cfg.LoadFile(configFile); err != nil {
				pterm.Error.Println(err)
				return err
			}
		}
		if std != "" {
			if err := cfg.ApplyStd(std); err != nil {
				pterm.Error.Println(err)
				return err
			}
		}
		cfg.ApplyFlagGroups(warningFlags, featureFlags)

		if target == "" {
			target = cfg.Target
		}
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, target); err != nil {
			pterm.Error.Println(err)
			return err
		}
		if outFile == "" {
			outFile = cfg.OutputPath
		}
		if outFile == "" {
			outFile = defaultOutput
		}

		content, err := os.ReadFile(inputPath)
		if err != nil {
			err = fmt.Errorf("could not read file '%s': %w", inputPath, err)
			pterm.Error.Println(err)
			return err
		}

		opts := compiler.Options{DumpIR: dumpIR}
		if verbose {
			opts.OnStage = func(s compiler.Stage) { pterm.Info.Printf("%s %s...\n", s, inputPath) }
		}

		printer := util.NewPrinter(os.Stderr, util.SourceFileRecord{Name: inputPath, Content: []rune(string(content))})
		res, err := compiler.Compile(content, cfg, opts)
		if res != nil {
			printer.PrintAll(res.Warnings)
		}
		if err != nil {
			printer.Print(err)
			return err
		}

		if err := writeOutput(outFile, res.Assembly); err != nil {
			pterm.Error.Println(err)
			return err
		}
		if verbose {
			pterm.Success.Printf("Wrote %s (%s backend)\n", outFile, cfg.BackendName)
		}
		return nil
	}

	if err := app.Run(args); err != nil {
		return 1
	}
	return 0
}

func writeOutput(path, text string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("could not create output directory '%s': %w", dir, err)
		}
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("could not write '%s': %w", path, err)
	}
	return nil
}
