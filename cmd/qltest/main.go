// qltest compiles every matching .ql file in-process and compares the result
// against the golden .<name>.ql.json stored next to it (or in -dir).
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/pterm/pterm"
	"github.com/quinlang/qlc/pkg/cli"
	"github.com/quinlang/qlc/pkg/compiler"
	"github.com/quinlang/qlc/pkg/config"
	"github.com/quinlang/qlc/pkg/util"
)

// Failure records the diagnostic a program is expected to stop with.
type Failure struct {
	Kind    string `json:"kind"`
	Line    int    `json:"line"`
	Column  int    `json:"column"`
	Message string `json:"message"`
}

// Golden is the recorded outcome of compiling one source file.
type Golden struct {
	SourceHash string   `json:"source_hash"`
	Target     string   `json:"target"`
	Std        string   `json:"std"`
	Assembly   string   `json:"assembly,omitempty"`
	Error      *Failure `json:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

type FileTestResult struct {
	File     string        `json:"file"`
	Status   string        `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message  string        `json:"message,omitempty"`
	Diff     string        `json:"diff,omitempty"`
	Duration time.Duration `json:"duration"`
}

type TestSuiteResults map[string]*FileTestResult

type options struct {
	testFiles      string
	skipFiles      string
	generateGolden bool
	outputJSON     string
	jsonDir        string
	target         string
	std            string
	jobs           string
	verbose        bool
}

func main() {
	app := cli.NewApp("qltest")
	app.Synopsis = "[options]"
	app.Description = "Golden-file test runner for the QuinLang compiler."

	opts := &options{}
	fs := app.FlagSet
	fs.String(&opts.testFiles, "test-files", "", "tests/*.ql", "Glob pattern(s) for files to test (space-separated).", "glob")
	fs.String(&opts.skipFiles, "skip-files", "", "", "Files to skip (space-separated).", "files")
	fs.Bool(&opts.generateGolden, "generate-golden", "g", false, "Write golden files for the matched sources instead of testing them.")
	fs.String(&opts.outputJSON, "output", "o", ".test_results.json", "Output file for the JSON test report.", "file")
	fs.String(&opts.jsonDir, "dir", "", "", "Directory to store/read golden JSON files (defaults to source file dir).", "dir")
	fs.String(&opts.target, "target", "t", config.BackendI8086, "Backend the sources are compiled for.", "backend/target")
	fs.String(&opts.std, "std", "", "ql", "Language standard the sources are compiled under.", "std")
	fs.String(&opts.jobs, "jobs", "j", "4", "Number of parallel test jobs.", "n")
	fs.Bool(&opts.verbose, "verbose", "v", false, "Print every result, not only failures.")

	app.Action = func([]string) error {
		files, err := expandGlobPatterns(opts.testFiles)
		if err != nil {
			pterm.Error.Printf("Invalid glob pattern(s): %v\n", err)
			return err
		}
		if len(files) == 0 {
			pterm.Warning.Println("No test files found matching the pattern(s).")
			return nil
		}
		if opts.generateGolden {
			return handleGenerateGolden(opts, files)
		}
		return handleRunTestSuite(opts, files)
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func (o *options) newConfig() (*config.Config, error) {
	cfg := config.NewConfig()
	if err := cfg.ApplyStd(o.std); err != nil {
		return nil, err
	}
	if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, o.target); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *options) workers() int {
	var n int
	if _, err := fmt.Sscanf(o.jobs, "%d", &n); err != nil || n < 1 {
		return 1
	}
	return n
}

func (o *options) goldenPath(sourceFile string) string {
	name := "." + filepath.Base(sourceFile) + ".json"
	if o.jsonDir != "" {
		return filepath.Join(o.jsonDir, name)
	}
	return filepath.Join(filepath.Dir(sourceFile), name)
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

// compileFile records what the compiler does with path under cfg.
func compileFile(path, hash string, cfg *config.Config) (*Golden, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g := &Golden{SourceHash: hash, Target: cfg.Target, Std: cfg.StdName}
	res, cerr := compiler.Compile(src, cfg, compiler.Options{})
	if res != nil {
		for _, w := range res.Warnings {
			g.Warnings = append(g.Warnings, w.Error())
		}
	}
	if cerr != nil {
		d, ok := util.AsDiagnostic(cerr)
		if !ok {
			return nil, cerr
		}
		g.Error = &Failure{Kind: d.Kind.String(), Line: d.Tok.Line, Column: d.Tok.Column, Message: d.Msg}
		return g, nil
	}
	g.Assembly = res.Assembly
	return g, nil
}

func handleGenerateGolden(opts *options, files []string) error {
	if opts.jsonDir != "" {
		if err := os.MkdirAll(opts.jsonDir, 0o755); err != nil {
			pterm.Error.Printf("Failed to create directory %s: %v\n", opts.jsonDir, err)
			return err
		}
	}
	for _, file := range files {
		cfg, err := opts.newConfig()
		if err != nil {
			pterm.Error.Println(err)
			return err
		}
		hash, err := hashFile(file)
		if err != nil {
			pterm.Error.Printf("Could not hash source file %s: %v\n", file, err)
			return err
		}
		golden, err := compileFile(file, hash, cfg)
		if err != nil {
			pterm.Error.Printf("Could not generate golden file for %s: %v\n", file, err)
			return err
		}
		data, err := json.MarshalIndent(golden, "", "  ")
		if err != nil {
			return err
		}
		path := opts.goldenPath(file)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			pterm.Error.Printf("Failed to write golden file %s: %v\n", path, err)
			return err
		}
		pterm.Success.Printf("Golden file created at %s\n", path)
	}
	return nil
}

func handleRunTestSuite(opts *options, files []string) error {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(opts.skipFiles) {
		if abs, err := filepath.Abs(f); err == nil {
			skipList[abs] = true
		}
	}

	tasks := make(chan string, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < opts.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range tasks {
				resultsChan <- testFile(opts, file)
			}
		}()
	}

	for _, file := range files {
		if skipList[file] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		tasks <- file
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var allResults []*FileTestResult
	for result := range resultsChan {
		allResults = append(allResults, result)
	}
	sort.Slice(allResults, func(i, j int) bool {
		return allResults[i].File < allResults[j].File
	})

	printSummary(opts, allResults)
	resultsMap := writeJSONReport(opts, allResults)
	if hasFailures(resultsMap) {
		return fmt.Errorf("test suite failed")
	}
	return nil
}

func testFile(opts *options, file string) *FileTestResult {
	goldenFile := opts.goldenPath(file)
	goldenData, err := os.ReadFile(goldenFile)
	if os.IsNotExist(err) {
		return &FileTestResult{File: file, Status: "SKIP", Message: "No golden file; run with --generate-golden"}
	}
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not read golden file %s: %v", goldenFile, err)}
	}
	var want Golden
	if err := json.Unmarshal(goldenData, &want); err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Could not parse golden file %s: %v", goldenFile, err)}
	}

	hash, err := hashFile(file)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to hash source file: %v", err)}
	}
	if hash != want.SourceHash {
		return &FileTestResult{File: file, Status: "FAIL", Message: "Source changed since the golden file was generated"}
	}

	cfg, err := opts.newConfig()
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
	}
	if want.Std != "" {
		if err := cfg.ApplyStd(want.Std); err != nil {
			return &FileTestResult{File: file, Status: "ERROR", Message: err.Error()}
		}
	}
	if want.Target != "" {
		if err := cfg.SetTarget(runtime.GOOS, runtime.GOARCH, want.Target); err != nil {
			return &FileTestResult{File: file, Status: "SKIP", Message: err.Error()}
		}
	}

	start := time.Now()
	got, err := compileFile(file, hash, cfg)
	elapsed := time.Since(start)
	if err != nil {
		return &FileTestResult{File: file, Status: "ERROR", Message: err.Error(), Duration: elapsed}
	}

	if diff := cmp.Diff(&want, got); diff != "" {
		msg := "Assembly mismatch"
		switch {
		case want.Error == nil && got.Error != nil:
			msg = "Expected success, compiler reported " + got.Error.Kind
		case want.Error != nil && got.Error == nil:
			msg = "Expected " + want.Error.Kind + ", compiler succeeded"
		case want.Error != nil:
			msg = "Diagnostic mismatch"
		}
		return &FileTestResult{File: file, Status: "FAIL", Message: msg, Diff: diff, Duration: elapsed}
	}

	msg := "Output matches golden file"
	if want.Error != nil {
		msg = "Rejected as expected (" + want.Error.Kind + ")"
	}
	return &FileTestResult{File: file, Status: "PASS", Message: msg, Duration: elapsed}
}

func printSummary(opts *options, results []*FileTestResult) {
	var passed, failed, skipped, errored int
	var total time.Duration
	for _, result := range results {
		total += result.Duration
		show := opts.verbose || result.Status == "FAIL" || result.Status == "ERROR"
		if show {
			fmt.Println("----------------------------------------------------------------------")
			fmt.Printf("Testing %s...\n", pterm.FgCyan.Sprint(result.File))
		}
		switch result.Status {
		case "PASS":
			passed++
			if show {
				fmt.Printf("  [%s] %s (%s)\n", pterm.FgGreen.Sprint("PASS"), result.Message, result.Duration)
			}
		case "FAIL":
			failed++
			fmt.Printf("  [%s] %s\n", pterm.FgRed.Sprint("FAIL"), result.Message)
			fmt.Print(formatDiff(result.Diff))
		case "SKIP":
			skipped++
			if show {
				fmt.Printf("  [%s] %s\n", pterm.FgYellow.Sprint("SKIP"), result.Message)
			}
		case "ERROR":
			errored++
			fmt.Printf("  [%s] %s\n", pterm.FgRed.Sprint("ERROR"), result.Message)
		}
	}

	fmt.Println("----------------------------------------------------------------------")
	fmt.Printf("%s %s, %s, %s, %s, %d Total in %s\n",
		pterm.Bold.Sprint("Test Summary:"),
		pterm.FgGreen.Sprint(fmt.Sprintf("%d Passed", passed)),
		pterm.FgRed.Sprint(fmt.Sprintf("%d Failed", failed)),
		pterm.FgYellow.Sprint(fmt.Sprintf("%d Skipped", skipped)),
		pterm.FgRed.Sprint(fmt.Sprintf("%d Errored", errored)),
		len(results), total)
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	builder.WriteString("    --- Diff ---\n")
	for _, line := range strings.Split(diff, "\n") {
		lineWithIndent := "    " + line
		trimmedLine := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmedLine, "-"):
			lineWithIndent = pterm.FgRed.Sprint(lineWithIndent)
		case strings.HasPrefix(trimmedLine, "+"):
			lineWithIndent = pterm.FgGreen.Sprint(lineWithIndent)
		}
		builder.WriteString(lineWithIndent)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(opts *options, results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		pterm.Error.Printf("Failed to marshal results to JSON: %v\n", err)
		return resultsMap
	}

	outputFile := opts.outputJSON
	if opts.jsonDir != "" {
		if err := os.MkdirAll(opts.jsonDir, 0o755); err != nil {
			pterm.Error.Printf("Failed to create dir %s: %v\n", opts.jsonDir, err)
		}
		outputFile = filepath.Join(opts.jsonDir, opts.outputJSON)
	}

	if err := os.WriteFile(outputFile, jsonData, 0o644); err != nil {
		pterm.Error.Printf("Failed to write JSON report to %s: %v\n", outputFile, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", outputFile)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			absFile, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if !seen[absFile] {
				if info, err := os.Stat(absFile); err == nil && info.Mode().IsRegular() {
					allFiles = append(allFiles, absFile)
					seen[absFile] = true
				}
			}
		}
	}
	return allFiles, nil
}
