// Package config is the flat, env-var-backed configuration surface for the
// virtual structure service. It follows an envBool/default-fallback idiom
// rather than a layered bundle system: the whole config surface is a short
// list of scalars, paths, and one optional inline document, not a
// multi-tenant profile tree.
package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nimbusgraph/vstructure/internal/structure/model"
	errs "github.com/nimbusgraph/vstructure/pkg/errors"
)

// Config is the read-only singleton loaded once at startup. Nothing else
// in this module is process-global.
type Config struct {
	// Adapter / HTTP surface.
	AdapterActive  bool
	HTTPBaseURL    string
	ListenAddr     string
	RoutePrefix    string
	TLSVerify      bool
	RequestTimeout time.Duration

	// Database.
	DBDialect string
	DBDSN     string

	// Prepopulation.
	PrepopulateOnStartup bool
	PrepopulateViaFile   bool
	OverwriteExisting    bool
	StructureFilePath    string
	InlineStructure      *model.CompleteStructure

	// Maintenance API.
	MaintenanceSecret string

	// APIKey gates the ambient authentication guard in front of the
	// browsing routes. Left empty, the guard is a no-op.
	APIKey string
}

// Load reads every setting from the environment, applies defaults, and
// validates the prepopulation precedence rules before returning. An
// optional YAML overlay file (VST_CONFIG_FILE) is applied first; env vars
// always win over it.
func Load() (*Config, error) {
	cfg := &Config{
		AdapterActive:  true,
		HTTPBaseURL:    envString("VST_HTTP_BASE_URL", "http://localhost:8080"),
		ListenAddr:     envString("VST_LISTEN_ADDR", ":8080"),
		RoutePrefix:    envString("VST_ROUTE_PREFIX", "/adapters/virtual_structure"),
		TLSVerify:      true,
		RequestTimeout: 30 * time.Second,
		DBDialect:      envString("VST_DB_DIALECT", "sqlite"),
		DBDSN:          envString("VST_DB_DSN", "file:vstructure.db?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON"),
	}

	if overlay := strings.TrimSpace(os.Getenv("VST_CONFIG_FILE")); overlay != "" {
		if err := applyYAMLOverlay(cfg, overlay); err != nil {
			return nil, err
		}
	}

	cfg.AdapterActive = envBool("VST_ADAPTER_ACTIVE", cfg.AdapterActive)
	cfg.TLSVerify = envBool("VST_TLS_VERIFY", cfg.TLSVerify)
	if v := envString("VST_REQUEST_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errs.Wrap(errs.PrepopulationError, "invalid VST_REQUEST_TIMEOUT", err)
		}
		cfg.RequestTimeout = d
	}
	cfg.HTTPBaseURL = envString("VST_HTTP_BASE_URL", cfg.HTTPBaseURL)
	cfg.ListenAddr = envString("VST_LISTEN_ADDR", cfg.ListenAddr)
	cfg.RoutePrefix = envString("VST_ROUTE_PREFIX", cfg.RoutePrefix)
	cfg.DBDialect = envString("VST_DB_DIALECT", cfg.DBDialect)
	cfg.DBDSN = envString("VST_DB_DSN", cfg.DBDSN)

	cfg.PrepopulateOnStartup = envBool("VST_PREPOPULATE_ON_STARTUP", cfg.PrepopulateOnStartup)
	cfg.PrepopulateViaFile = envBool("VST_PREPOPULATE_VIA_FILE", cfg.PrepopulateViaFile)
	cfg.OverwriteExisting = envBool("VST_OVERWRITE_EXISTING", cfg.OverwriteExisting)
	cfg.StructureFilePath = envString("VST_STRUCTURE_FILE_PATH", cfg.StructureFilePath)
	cfg.MaintenanceSecret = envString("VST_MAINTENANCE_SECRET", cfg.MaintenanceSecret)
	cfg.APIKey = envString("VST_API_KEY", cfg.APIKey)

	if raw := strings.TrimSpace(os.Getenv("VST_INLINE_STRUCTURE")); raw != "" {
		cs, err := model.ParseCompleteStructure([]byte(raw))
		if err != nil {
			return nil, err
		}
		cfg.InlineStructure = cs
	}

	if err := cfg.validatePrepopulationRules(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validatePrepopulationRules enforces the prepopulation precedence and
// mutual-exclusivity rules at config-construction time rather than at run
// time.
func (c *Config) validatePrepopulationRules() error {
	if c.PrepopulateViaFile && strings.TrimSpace(c.StructureFilePath) == "" {
		return errs.New(errs.PrepopulationError, "VST_PREPOPULATE_VIA_FILE is enabled but VST_STRUCTURE_FILE_PATH is not set")
	}
	if c.PrepopulateOnStartup && !c.PrepopulateViaFile && c.InlineStructure == nil {
		return errs.New(errs.PrepopulationError, "VST_PREPOPULATE_ON_STARTUP is enabled without VST_PREPOPULATE_VIA_FILE, but no inline structure (VST_INLINE_STRUCTURE) is set")
	}
	if c.PrepopulateViaFile && c.InlineStructure != nil {
		return errs.New(errs.PrepopulationError, "VST_PREPOPULATE_VIA_FILE is enabled but an inline structure is also set; these are mutually exclusive")
	}
	return nil
}

func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errs.Wrap(errs.PrepopulationError, "could not read VST_CONFIG_FILE", err)
	}
	var overlay struct {
		AdapterActive        *bool   `yaml:"adapter_active"`
		HTTPBaseURL          *string `yaml:"http_base_url"`
		ListenAddr           *string `yaml:"listen_addr"`
		RoutePrefix          *string `yaml:"route_prefix"`
		TLSVerify            *bool   `yaml:"tls_verify"`
		RequestTimeout       *string `yaml:"request_timeout"`
		DBDialect            *string `yaml:"db_dialect"`
		DBDSN                *string `yaml:"db_dsn"`
		PrepopulateOnStartup *bool   `yaml:"prepopulate_on_startup"`
		PrepopulateViaFile   *bool   `yaml:"prepopulate_via_file"`
		OverwriteExisting    *bool   `yaml:"overwrite_existing"`
		StructureFilePath    *string `yaml:"structure_file_path"`
		MaintenanceSecret    *string `yaml:"maintenance_secret"`
		APIKey               *string `yaml:"api_key"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return errs.Wrap(errs.PrepopulationError, "VST_CONFIG_FILE is not valid YAML", err)
	}

	if overlay.AdapterActive != nil {
		cfg.AdapterActive = *overlay.AdapterActive
	}
	if overlay.HTTPBaseURL != nil {
		cfg.HTTPBaseURL = *overlay.HTTPBaseURL
	}
	if overlay.ListenAddr != nil {
		cfg.ListenAddr = *overlay.ListenAddr
	}
	if overlay.RoutePrefix != nil {
		cfg.RoutePrefix = *overlay.RoutePrefix
	}
	if overlay.TLSVerify != nil {
		cfg.TLSVerify = *overlay.TLSVerify
	}
	if overlay.RequestTimeout != nil {
		d, err := time.ParseDuration(*overlay.RequestTimeout)
		if err != nil {
			return errs.Wrap(errs.PrepopulationError, "invalid request_timeout in VST_CONFIG_FILE", err)
		}
		cfg.RequestTimeout = d
	}
	if overlay.DBDialect != nil {
		cfg.DBDialect = *overlay.DBDialect
	}
	if overlay.DBDSN != nil {
		cfg.DBDSN = *overlay.DBDSN
	}
	if overlay.PrepopulateOnStartup != nil {
		cfg.PrepopulateOnStartup = *overlay.PrepopulateOnStartup
	}
	if overlay.PrepopulateViaFile != nil {
		cfg.PrepopulateViaFile = *overlay.PrepopulateViaFile
	}
	if overlay.OverwriteExisting != nil {
		cfg.OverwriteExisting = *overlay.OverwriteExisting
	}
	if overlay.StructureFilePath != nil {
		cfg.StructureFilePath = *overlay.StructureFilePath
	}
	if overlay.MaintenanceSecret != nil {
		cfg.MaintenanceSecret = *overlay.MaintenanceSecret
	}
	if overlay.APIKey != nil {
		cfg.APIKey = *overlay.APIKey
	}
	return nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
