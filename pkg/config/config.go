package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml"
	"github.com/quinlang/qlc/pkg/cli"
	"modernc.org/libqbe"
)

type Feature int

const (
	FeatCComments Feature = iota
	FeatBoolCond
	FeatPathReturn
	FeatFold
	FeatCount
)

type Warning int

const (
	WarnOverflow Warning = iota
	WarnUnknownType
	WarnUnreachableCode
	WarnShadow
	WarnCount
)

type Info struct {
	Name        string
	Enabled     bool
	Description string
}

// Runtime names the externally linked support routines the generated code
// calls, and the terminator appended to every pooled string.
type Runtime struct {
	PrintInt   string
	PrintStr   string
	StrCmp     string
	Terminator string
}

type Config struct {
	Features      map[Feature]Info
	Warnings      map[Warning]Info
	FeatureMap    map[string]Feature
	WarningMap    map[string]Warning
	StdName       string
	Target        string
	BackendName   string
	BackendTarget string
	WordSize      int
	OutputPath    string
	Runtime       Runtime
}

const (
	BackendI8086 = "i8086"
	BackendQBE   = "qbe"
)

func NewConfig() *Config {
	cfg := &Config{
		Features:   make(map[Feature]Info),
		Warnings:   make(map[Warning]Info),
		FeatureMap: make(map[string]Feature),
		WarningMap: make(map[string]Warning),
		StdName:    "ql",
		Target:     BackendI8086,
		Runtime: Runtime{
			PrintInt:   "rt_print_num16",
			PrintStr:   "rt_print_str",
			StrCmp:     "rt_strcmp",
			Terminator: "$",
		},
	}

	features := map[Feature]Info{
		FeatCComments:  {"c-comments", true, "Recognize C-style '//' line comments."},
		FeatBoolCond:   {"bool-cond", true, "Require 'if' and 'while' conditions to be bool."},
		FeatPathReturn: {"path-return", true, "Check that every control-flow path of a non-void function returns."},
		FeatFold:       {"fold", false, "Fold constant integer expressions before code generation."},
	}

	warnings := map[Warning]Info{
		WarnOverflow:        {"overflow", true, "Warn when an integer constant does not fit a signed 16-bit word."},
		WarnUnknownType:     {"unknown-type", true, "Warn when an unknown type name is treated as 'int'."},
		WarnUnreachableCode: {"unreachable-code", true, "Warn about code that will never be executed."},
		WarnShadow:          {"shadow", false, "Warn when a nested 'let' hides an outer binding."},
	}

	cfg.Features, cfg.Warnings = features, warnings
	for ft, info := range features {
		cfg.FeatureMap[info.Name] = ft
	}
	for wt, info := range warnings {
		cfg.WarningMap[info.Name] = wt
	}

	cfg.SetTarget("", "", BackendI8086)
	return cfg
}

// SetTarget selects the backend. target is "i8086", "qbe" or "qbe/<qbe-target>";
// a bare "qbe" uses the host's default QBE target.
func (c *Config) SetTarget(goos, goarch, target string) error {
	backend, sub, _ := strings.Cut(target, "/")
	switch backend {
	case "", BackendI8086, "8086":
		c.Target = BackendI8086
		c.BackendName, c.BackendTarget = BackendI8086, BackendI8086
		c.WordSize = 2
		return nil
	case BackendQBE:
		if sub == "" {
			sub = libqbe.DefaultTarget(goos, goarch)
		}
		switch sub {
		case "amd64_sysv", "amd64_apple", "arm64", "arm64_apple", "rv64":
			c.WordSize = 8
		default:
			return fmt.Errorf("unsupported QBE target '%s'", sub)
		}
		c.Target = target
		c.BackendName, c.BackendTarget = BackendQBE, sub
		return nil
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: 'i8086', 'qbe'", backend)
	}
}

func (c *Config) SetFeature(ft Feature, enabled bool) {
	if info, ok := c.Features[ft]; ok {
		info.Enabled = enabled
		c.Features[ft] = info
	}
}

func (c *Config) IsFeatureEnabled(ft Feature) bool { return c.Features[ft].Enabled }

func (c *Config) SetWarning(wt Warning, enabled bool) {
	if info, ok := c.Warnings[wt]; ok {
		info.Enabled = enabled
		c.Warnings[wt] = info
	}
}

func (c *Config) IsWarningEnabled(wt Warning) bool { return c.Warnings[wt].Enabled }

// ApplyStd switches between the checked dialect ("ql") and the permissive
// one the first compiler accepted ("legacy").
func (c *Config) ApplyStd(stdName string) error {
	type stdSettings struct {
		feature     Feature
		qlValue     bool
		legacyValue bool
	}

	settings := []stdSettings{
		{FeatBoolCond, true, false},
		{FeatPathReturn, true, false},
	}

	switch stdName {
	case "ql":
		for _, s := range settings {
			c.SetFeature(s.feature, s.qlValue)
		}
		c.SetWarning(WarnUnknownType, true)
	case "legacy":
		for _, s := range settings {
			c.SetFeature(s.feature, s.legacyValue)
		}
		c.SetWarning(WarnUnknownType, false)
	default:
		return fmt.Errorf("unsupported standard '%s'. Supported: 'ql', 'legacy'", stdName)
	}
	c.StdName = stdName
	return nil
}

// SetupFlagGroups registers -W<warning>/-Wno-<warning> and -F<feature>/-Fno-<feature>
// on fs. The returned entries are indexed by Warning and Feature respectively.
func (c *Config) SetupFlagGroups(fs *cli.FlagSet) ([]cli.FlagGroupEntry, []cli.FlagGroupEntry) {
	warningFlags := make([]cli.FlagGroupEntry, WarnCount)
	for i := Warning(0); i < WarnCount; i++ {
		info := c.Warnings[i]
		warningFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "W", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool),
		}
	}

	featureFlags := make([]cli.FlagGroupEntry, FeatCount)
	for i := Feature(0); i < FeatCount; i++ {
		info := c.Features[i]
		featureFlags[i] = cli.FlagGroupEntry{
			Name: info.Name, Prefix: "F", Usage: info.Description,
			Enabled: new(bool), Disabled: new(bool),
		}
	}

	fs.AddFlagGroup("Warning Flags", "Enable or disable specific warnings", "warning", "Available Warnings:", warningFlags)
	fs.AddFlagGroup("Feature Flags", "Enable or disable specific language features", "feature", "Available Features:", featureFlags)
	return warningFlags, featureFlags
}

// ApplyFlagGroups copies the parsed state of the flag groups built by
// SetupFlagGroups into the feature and warning tables.
func (c *Config) ApplyFlagGroups(warningFlags, featureFlags []cli.FlagGroupEntry) {
	for i, entry := range warningFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetWarning(Warning(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetWarning(Warning(i), false)
		}
	}
	for i, entry := range featureFlags {
		if entry.Enabled != nil && *entry.Enabled {
			c.SetFeature(Feature(i), true)
		}
		if entry.Disabled != nil && *entry.Disabled {
			c.SetFeature(Feature(i), false)
		}
	}
}

type tomlFile struct {
	Build    *tomlBuild      `toml:"build"`
	Features map[string]bool `toml:"features"`
	Warnings map[string]bool `toml:"warnings"`
	Runtime  *tomlRuntime    `toml:"runtime"`
}

type tomlBuild struct {
	Target string `toml:"target"`
	Output string `toml:"output"`
	Std    string `toml:"std"`
}

type tomlRuntime struct {
	PrintInt   string `toml:"print-int"`
	PrintStr   string `toml:"print-str"`
	StrCmp     string `toml:"strcmp"`
	Terminator string `toml:"terminator"`
}

// LoadFile reads a qlc.toml project file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read config '%s': %w", path, err)
	}
	if err := c.Load(data); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// Load applies a TOML document: the std first, so that explicit
// [features] and [warnings] entries override it.
func (c *Config) Load(data []byte) error {
	tf := &tomlFile{}
	if err := toml.Unmarshal(data, tf); err != nil {
		return err
	}

	if b := tf.Build; b != nil {
		if b.Std != "" {
			if err := c.ApplyStd(b.Std); err != nil {
				return err
			}
		}
		if b.Target != "" {
			c.Target = b.Target
		}
		if b.Output != "" {
			c.OutputPath = b.Output
		}
	}

	for name, enabled := range tf.Features {
		ft, ok := c.FeatureMap[name]
		if !ok {
			return fmt.Errorf("unknown feature '%s'", name)
		}
		c.SetFeature(ft, enabled)
	}
	for name, enabled := range tf.Warnings {
		wt, ok := c.WarningMap[name]
		if !ok {
			return fmt.Errorf("unknown warning '%s'", name)
		}
		c.SetWarning(wt, enabled)
	}

	if rt := tf.Runtime; rt != nil {
		if rt.PrintInt != "" {
			c.Runtime.PrintInt = rt.PrintInt
		}
		if rt.PrintStr != "" {
			c.Runtime.PrintStr = rt.PrintStr
		}
		if rt.StrCmp != "" {
			c.Runtime.StrCmp = rt.StrCmp
		}
		if rt.Terminator != "" {
			c.Runtime.Terminator = rt.Terminator
		}
	}
	return nil
}
