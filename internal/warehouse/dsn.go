package warehouse

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/orderlens/orderlens/internal/config"
)

// BuildDSN assembles the driver connection string from the warehouse
// configuration. For pgx the compute target identifier becomes the database
// name; a token credential is sent as the password of the "token" user,
// client credentials map to user/password.
func BuildDSN(cfg config.WarehouseConfig) (string, error) {
	switch cfg.Driver {
	case "duckdb":
		return cfg.LocalPath, nil
	case "pgx":
		return buildPostgresDSN(cfg)
	default:
		return "", fmt.Errorf("unsupported warehouse driver: %q", cfg.Driver)
	}
}

func buildPostgresDSN(cfg config.WarehouseConfig) (string, error) {
	host := strings.TrimSpace(cfg.Endpoint)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		return "", fmt.Errorf("warehouse endpoint is required")
	}

	var user *url.Userinfo
	switch {
	case cfg.Token != "":
		user = url.UserPassword("token", cfg.Token)
	case cfg.ClientID != "" && cfg.ClientSecret != "":
		user = url.UserPassword(cfg.ClientID, cfg.ClientSecret)
	default:
		return "", fmt.Errorf("warehouse credentials are required")
	}

	database := strings.TrimSpace(cfg.WarehouseID)
	if database == "" {
		database = "default"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   host,
		Path:   "/" + database,
	}
	query := url.Values{}
	query.Set("application_name", "orderlens")
	if cfg.ConnectTimeout > 0 {
		seconds := int(cfg.ConnectTimeout.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		query.Set("connect_timeout", fmt.Sprintf("%d", seconds))
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
