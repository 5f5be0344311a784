package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// TCO2EQ_MAX_OPEN_WORKBOOKS=8.
const EnvPrefix = "TCO2EQ_"

// FileName and FileNameAlt are the config file names searched in the working
// directory when no explicit path is given.
const (
	FileName    = "tco2eq.yaml"
	FileNameAlt = "tco2eq.yml"
)

// Settings is the resolved server configuration after layering defaults, an
// optional YAML file, and environment overrides.
type Settings struct {
	MaxConcurrentRequests int `koanf:"max_concurrent_requests"`
	MaxOpenWorkbooks      int `koanf:"max_open_workbooks"`
	MaxPayloadBytes       int `koanf:"max_payload_bytes"`
	MaxCellsPerOp         int `koanf:"max_cells_per_op"`
	PreviewRowLimit       int `koanf:"preview_row_limit"`
	MaxFetchBytes         int `koanf:"max_fetch_bytes"`
	TopValues             int `koanf:"top_values"`

	OperationTimeout      time.Duration `koanf:"operation_timeout"`
	AcquireRequestTimeout time.Duration `koanf:"acquire_request_timeout"`
	FetchTimeout          time.Duration `koanf:"fetch_timeout"`
	WorkbookIdleTTL       time.Duration `koanf:"workbook_idle_ttl"`
	WorkbookCleanupPeriod time.Duration `koanf:"workbook_cleanup_period"`

	// AllowedDirs seeds the filesystem allow-list; the TCO2EQ_ALLOWED_DIRS
	// environment variable (path-list separated) takes precedence when set.
	AllowedDirs []string `koanf:"allowed_dirs"`

	// ModelName selects the model whose context window bounds text payloads.
	ModelName string `koanf:"model_name"`
}

// Load resolves Settings from defaults, then the YAML file at path (or
// tco2eq.yaml/tco2eq.yml in the working directory when path is empty), then
// TCO2EQ_-prefixed environment variables. A missing config file is not an
// error; a named file that fails to parse is.
func Load(path string) (Settings, error) {
	var s Settings

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"max_concurrent_requests": DefaultMaxConcurrentRequests,
		"max_open_workbooks":      DefaultMaxOpenWorkbooks,
		"max_payload_bytes":       DefaultMaxPayloadBytes,
		"max_cells_per_op":        DefaultMaxCellsPerOp,
		"preview_row_limit":       DefaultPreviewRowLimit,
		"max_fetch_bytes":         DefaultMaxFetchBytes,
		"top_values":              DefaultTopValues,
		"operation_timeout":       DefaultOperationTimeout,
		"acquire_request_timeout": DefaultAcquireRequestTimeout,
		"fetch_timeout":           DefaultFetchTimeout,
		"workbook_idle_ttl":       DefaultWorkbookIdleTTL,
		"workbook_cleanup_period": DefaultWorkbookCleanupPeriod,
		"model_name":              "gpt-4o",
	}, "."), nil); err != nil {
		return s, fmt.Errorf("config: load defaults: %w", err)
	}

	explicit := strings.TrimSpace(path)
	cfgFile := explicit
	if cfgFile == "" {
		cfgFile = findConfigFile(".")
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			if explicit != "" || !os.IsNotExist(err) {
				return s, fmt.Errorf("config: read %s: %w", cfgFile, err)
			}
		}
	}

	// TCO2EQ_MAX_OPEN_WORKBOOKS -> max_open_workbooks. TCO2EQ_ALLOWED_DIRS is
	// excluded here; the security manager parses it with path-list semantics.
	if err := k.Load(env.Provider(EnvPrefix, ".", func(key string) string {
		name := strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
		if name == "allowed_dirs" {
			return ""
		}
		return name
	}), nil); err != nil {
		return s, fmt.Errorf("config: load env: %w", err)
	}

	if err := k.Unmarshal("", &s); err != nil {
		return s, fmt.Errorf("config: decode: %w", err)
	}
	return s, nil
}

func findConfigFile(dir string) string {
	for _, name := range []string{FileName, FileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
