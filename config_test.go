package linker_test

import (
	"flag"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/ZenLiuCN/linker"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := linker.DefaultConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 64<<10, cfg.DirectMapThreshold)
	require.Equal(t, 1024, cfg.ResolveCacheSize)
	require.Equal(t, runtime.GOARCH, cfg.Arch)
	require.False(t, cfg.RunInitializers)
}

func TestConfigValidate(t *testing.T) {
	for name, mutate := range map[string]func(*linker.Config){
		"page size": func(c *linker.Config) { c.PageSize = 3000 },
		"negative":  func(c *linker.Config) { c.PageSize = -4096 },
		"threshold": func(c *linker.Config) { c.DirectMapThreshold = 0 },
		"cache":     func(c *linker.Config) { c.ResolveCacheSize = 0 },
		"arch":      func(c *linker.Config) { c.Arch = "mips" },
	} {
		t.Run(name, func(t *testing.T) {
			cfg := linker.DefaultConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
			_, err := linker.New(cfg)
			require.Error(t, err)
		})
	}
}

func TestConfigFlags(t *testing.T) {
	var cfg linker.Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-linker.page-size=16384", "-linker.debug", "-linker.arch=arm64"}))
	require.Equal(t, 16384, cfg.PageSize)
	require.True(t, cfg.Debug)
	require.Equal(t, "arm64", cfg.Arch)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "linker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("page_size: 16384\narch: arm64\nrun_initializers: true\n"), 0o644))
	cfg, err := linker.LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, 16384, cfg.PageSize)
	require.Equal(t, "arm64", cfg.Arch)
	require.True(t, cfg.RunInitializers)
	require.Equal(t, 1024, cfg.ResolveCacheSize)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("page_size: [1\n"), 0o644))
	_, err = linker.LoadConfig(bad)
	require.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("resolve_cache_size: -1\n"), 0o644))
	_, err = linker.LoadConfig(invalid)
	require.Error(t, err)

	_, err = linker.LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
