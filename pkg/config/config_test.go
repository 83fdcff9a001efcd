package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"
	"github.com/quinlang/qlc/pkg/cli"
)

func TestDefaults(t *testing.T) {
	cfg := NewConfig()
	be.Equal(t, cfg.StdName, "ql")
	be.Equal(t, cfg.BackendName, BackendI8086)
	be.Equal(t, cfg.WordSize, 2)
	be.True(t, cfg.IsFeatureEnabled(FeatBoolCond))
	be.True(t, cfg.IsFeatureEnabled(FeatPathReturn))
	be.True(t, !cfg.IsFeatureEnabled(FeatFold))
	be.True(t, cfg.IsWarningEnabled(WarnOverflow))
	be.True(t, !cfg.IsWarningEnabled(WarnShadow))
	be.Equal(t, cfg.Runtime.Terminator, "$")
	be.Equal(t, cfg.FeatureMap["c-comments"], FeatCComments)
	be.Equal(t, cfg.WarningMap["unreachable-code"], WarnUnreachableCode)
}

func TestApplyStd(t *testing.T) {
	cfg := NewConfig()
	be.Err(t, cfg.ApplyStd("legacy"), nil)
	be.Equal(t, cfg.StdName, "legacy")
	be.True(t, !cfg.IsFeatureEnabled(FeatBoolCond))
	be.True(t, !cfg.IsFeatureEnabled(FeatPathReturn))
	be.True(t, !cfg.IsWarningEnabled(WarnUnknownType))

	be.Err(t, cfg.ApplyStd("ql"), nil)
	be.True(t, cfg.IsFeatureEnabled(FeatBoolCond))
	be.True(t, cfg.IsWarningEnabled(WarnUnknownType))

	be.Err(t, cfg.ApplyStd("c99"), "unsupported standard 'c99'")
}

func TestSetTarget(t *testing.T) {
	cfg := NewConfig()
	be.Err(t, cfg.SetTarget("linux", "amd64", "qbe"), nil)
	be.Equal(t, cfg.BackendName, BackendQBE)
	be.Equal(t, cfg.BackendTarget, "amd64_sysv")
	be.Equal(t, cfg.WordSize, 8)

	be.Err(t, cfg.SetTarget("linux", "amd64", "qbe/arm64"), nil)
	be.Equal(t, cfg.BackendTarget, "arm64")

	be.Err(t, cfg.SetTarget("linux", "amd64", "8086"), nil)
	be.Equal(t, cfg.BackendName, BackendI8086)
	be.Equal(t, cfg.WordSize, 2)

	be.Err(t, cfg.SetTarget("linux", "amd64", "qbe/vax"), "unsupported QBE target 'vax'")
	be.Err(t, cfg.SetTarget("linux", "amd64", "z80"), "unsupported backend 'z80'")
}

func TestLoadTOML(t *testing.T) {
	cfg := NewConfig()
	err := cfg.Load([]byte(`
[build]
std = "legacy"
target = "qbe"
output = "out/prog.s"

[features]
fold = true
bool-cond = true

[warnings]
shadow = true
overflow = false

[runtime]
print-int = "print_int"
terminator = ""
`))
	be.Err(t, err, nil)
	be.Equal(t, cfg.StdName, "legacy")
	be.Equal(t, cfg.Target, "qbe")
	be.Equal(t, cfg.OutputPath, "out/prog.s")
	be.True(t, cfg.IsFeatureEnabled(FeatFold))
	// explicit entries win over the std
	be.True(t, cfg.IsFeatureEnabled(FeatBoolCond))
	be.True(t, !cfg.IsFeatureEnabled(FeatPathReturn))
	be.True(t, cfg.IsWarningEnabled(WarnShadow))
	be.True(t, !cfg.IsWarningEnabled(WarnOverflow))
	be.Equal(t, cfg.Runtime.PrintInt, "print_int")
	be.Equal(t, cfg.Runtime.PrintStr, "rt_print_str")
	be.Equal(t, cfg.Runtime.Terminator, "$")
}

func TestLoadErrors(t *testing.T) {
	be.Err(t, NewConfig().Load([]byte("[features]\nturbo = true\n")), "unknown feature 'turbo'")
	be.Err(t, NewConfig().Load([]byte("[warnings]\nloud = true\n")), "unknown warning 'loud'")
	be.Err(t, NewConfig().Load([]byte("[build]\nstd = \"k&r\"\n")), "unsupported standard")
	be.Err(t, NewConfig().Load([]byte("[build\n")))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qlc.toml")
	be.Err(t, os.WriteFile(path, []byte("[warnings]\nshadow = true\n"), 0o644), nil)

	cfg := NewConfig()
	be.Err(t, cfg.LoadFile(path), nil)
	be.True(t, cfg.IsWarningEnabled(WarnShadow))

	be.Err(t, cfg.LoadFile(filepath.Join(t.TempDir(), "missing.toml")), "could not read config")
}

func TestFlagGroupsOverrideConfig(t *testing.T) {
	cfg := NewConfig()
	fs := cli.NewFlagSet("qlc")
	warningFlags, featureFlags := cfg.SetupFlagGroups(fs)
	be.Equal(t, len(warningFlags), int(WarnCount))
	be.Equal(t, len(featureFlags), int(FeatCount))

	be.Err(t, fs.Parse([]string{"-Wshadow", "-Wno-overflow", "-Ffold", "-Fno-bool-cond"}), nil)
	cfg.ApplyFlagGroups(warningFlags, featureFlags)

	be.True(t, cfg.IsWarningEnabled(WarnShadow))
	be.True(t, !cfg.IsWarningEnabled(WarnOverflow))
	be.True(t, cfg.IsFeatureEnabled(FeatFold))
	be.True(t, !cfg.IsFeatureEnabled(FeatBoolCond))
	// untouched entries keep their value
	be.True(t, cfg.IsFeatureEnabled(FeatPathReturn))
}
