package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Warehouse     WarehouseConfig
	Cache         CacheConfig
	AdHoc         AdHocConfig
	Export        ExportConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// WarehouseConfig describes the warehouse session. Driver selects the
// database/sql driver: "pgx" for a remote endpoint, "duckdb" for a local
// warehouse file in the dev profile.
type WarehouseConfig struct {
	Driver          string
	Endpoint        string
	Token           string
	ClientID        string
	ClientSecret    string
	WarehouseID     string
	Catalog         string
	Schema          string
	LocalPath       string
	ConnectTimeout  time.Duration
	QueryTimeout    time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

type CacheConfig struct {
	DefaultTTL time.Duration
}

type AdHocConfig struct {
	RowCap         int
	Timeout        time.Duration
	RejectOverflow bool
}

type ExportConfig struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("ORDERLENS_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ORDERLENS_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "ORDERLENS_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_DRIVER", &cfg.Warehouse.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_ENDPOINT", &cfg.Warehouse.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_TOKEN", &cfg.Warehouse.Token); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_CLIENT_ID", &cfg.Warehouse.ClientID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_CLIENT_SECRET", &cfg.Warehouse.ClientSecret); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_ID", &cfg.Warehouse.WarehouseID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_CATALOG", &cfg.Warehouse.Catalog); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_SCHEMA", &cfg.Warehouse.Schema); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_WAREHOUSE_LOCAL_PATH", &cfg.Warehouse.LocalPath); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_WAREHOUSE_CONNECT_TIMEOUT", &cfg.Warehouse.ConnectTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_WAREHOUSE_QUERY_TIMEOUT", &cfg.Warehouse.QueryTimeout); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ORDERLENS_WAREHOUSE_MAX_OPEN_CONNS", &cfg.Warehouse.MaxOpenConns); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ORDERLENS_WAREHOUSE_MAX_IDLE_CONNS", &cfg.Warehouse.MaxIdleConns); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_WAREHOUSE_CONN_MAX_IDLE_TIME", &cfg.Warehouse.ConnMaxIdleTime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_WAREHOUSE_CONN_MAX_LIFETIME", &cfg.Warehouse.ConnMaxLifetime); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_CACHE_DEFAULT_TTL", &cfg.Cache.DefaultTTL); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "ORDERLENS_ADHOC_ROW_CAP", &cfg.AdHoc.RowCap); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ORDERLENS_ADHOC_TIMEOUT", &cfg.AdHoc.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ORDERLENS_ADHOC_REJECT_OVERFLOW", &cfg.AdHoc.RejectOverflow); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_EXPORT_ENDPOINT", &cfg.Export.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_EXPORT_REGION", &cfg.Export.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_EXPORT_BUCKET", &cfg.Export.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_EXPORT_ACCESS_KEY", &cfg.Export.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_EXPORT_SECRET_KEY", &cfg.Export.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ORDERLENS_EXPORT_USE_SSL", &cfg.Export.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_EXPORT_PREFIX", &cfg.Export.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ORDERLENS_EXPORT_AUTO_CREATE_BUCKET", &cfg.Export.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ORDERLENS_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "ORDERLENS_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ORDERLENS_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ORDERLENS_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if err := validateWarehouse(cfg.Warehouse); err != nil {
		return Config{}, err
	}
	if cfg.Cache.DefaultTTL <= 0 {
		return Config{}, fmt.Errorf("cache default ttl must be positive")
	}
	if cfg.AdHoc.RowCap <= 0 {
		return Config{}, fmt.Errorf("adhoc row cap must be positive")
	}
	return cfg, nil
}

func validateWarehouse(cfg WarehouseConfig) error {
	switch cfg.Driver {
	case "pgx":
		if cfg.Endpoint == "" {
			return fmt.Errorf("warehouse endpoint is required for driver pgx")
		}
		if cfg.Token == "" && (cfg.ClientID == "" || cfg.ClientSecret == "") {
			return fmt.Errorf("warehouse credentials are required: set ORDERLENS_WAREHOUSE_TOKEN or client id/secret")
		}
	case "duckdb":
		// Empty LocalPath opens an in-memory database, which is fine for dev.
	default:
		return fmt.Errorf("invalid warehouse driver: %q", cfg.Driver)
	}
	return nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "orderlens-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Warehouse: WarehouseConfig{
			Driver:          "duckdb",
			Catalog:         "orderlens",
			Schema:          "tpch",
			LocalPath:       "orderlens.duckdb",
			ConnectTimeout:  5 * time.Second,
			QueryTimeout:    30 * time.Second,
			MaxOpenConns:    8,
			MaxIdleConns:    4,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Cache: CacheConfig{
			DefaultTTL: time.Hour,
		},
		AdHoc: AdHocConfig{
			RowCap:         10_000,
			Timeout:        15 * time.Second,
			RejectOverflow: false,
		},
		Export: ExportConfig{
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "orderlens",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Warehouse.LocalPath = ""
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Warehouse.Driver = "pgx"
		cfg.Warehouse.Catalog = "samples"
		cfg.Warehouse.LocalPath = ""
		cfg.Auth.Required = true
		cfg.Export.UseSSL = true
		cfg.Export.AutoCreateBucket = false
	}

	return cfg
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
