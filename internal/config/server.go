package config

import (
	"fmt"
	"path/filepath"
	"time"
)

type Server struct {
	Common

	HTTPAddr string

	Driver          string
	DSN             string
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// LogSQL routes every statement through the logging connector at debug level.
	LogSQL bool

	// ModelPath points at the classifier YAML; empty labels every reading "unknown".
	ModelPath string
}

func LoadServerFromEnv() (Server, error) {
	common, err := loadCommon()
	if err != nil {
		return Server{}, err
	}

	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 1)
	if err != nil {
		return Server{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 1)
	if err != nil {
		return Server{}, err
	}

	connMaxLifetimeStr := envOr("DB_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Server{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	logSQL, err := envBool("DB_LOG_SQL", false)
	if err != nil {
		return Server{}, err
	}

	modelPath := env("MODEL_PATH")
	if modelPath != "" {
		modelPath, err = filepath.Abs(modelPath)
		if err != nil {
			return Server{}, fmt.Errorf("MODEL_PATH %q: %w", modelPath, err)
		}
	}

	return Server{
		Common:          common,
		HTTPAddr:        envOr("HTTP_ADDR", ":8080"),
		Driver:          envOr("DB_DRIVER", "sqlite3"),
		DSN:             env("DB_DSN"),
		Path:            envOr("SQLITE_PATH", "../dev/sqlite/app.db"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		LogSQL:          logSQL,
		ModelPath:       modelPath,
	}, nil
}
