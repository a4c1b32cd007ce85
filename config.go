package linker

import (
	"flag"
	"os"
	"runtime"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config of a Linker.
type Config struct {
	Debug              bool   `yaml:"debug"`
	PageSize           int    `yaml:"page_size"`
	DirectMapThreshold int    `yaml:"direct_map_threshold"`
	ResolveCacheSize   int    `yaml:"resolve_cache_size"`
	RunInitializers    bool   `yaml:"run_initializers"`
	Arch               string `yaml:"arch"`
}

// RegisterFlags registers the linker flags with their defaults.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.BoolVar(&cfg.Debug, "linker.debug", false, "Log debug traces of the object linker.")
	f.IntVar(&cfg.PageSize, "linker.page-size", 0, "Page size for segments, 0 uses the OS page size.")
	f.IntVar(&cfg.DirectMapThreshold, "linker.direct-map-threshold", 64<<10, "Sections at least this large get a mapping of their own.")
	f.IntVar(&cfg.ResolveCacheSize, "linker.resolve-cache-size", 1024, "Entries of the address to symbol cache.")
	f.BoolVar(&cfg.RunInitializers, "linker.run-initializers", false, "Run static initializers after load and finalizers before unload.")
	f.StringVar(&cfg.Arch, "linker.arch", runtime.GOARCH, "Architecture of the jump islands.")
}

// DefaultConfig returns the flag defaults.
func DefaultConfig() Config {
	var cfg Config
	cfg.RegisterFlags(flag.NewFlagSet("", flag.PanicOnError))
	return cfg
}

// Validate checks the config.
func (cfg *Config) Validate() error {
	if cfg.PageSize < 0 || cfg.PageSize&(cfg.PageSize-1) != 0 {
		return errors.Errorf("page size %d is not a power of two", cfg.PageSize)
	}
	if cfg.DirectMapThreshold <= 0 {
		return errors.Errorf("direct map threshold must be positive, got %d", cfg.DirectMapThreshold)
	}
	if cfg.ResolveCacheSize <= 0 {
		return errors.Errorf("resolve cache size must be positive, got %d", cfg.ResolveCacheSize)
	}
	if _, err := archFor(cfg.Arch); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads a yaml file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err = yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse %s", path)
	}
	return cfg, cfg.Validate()
}
