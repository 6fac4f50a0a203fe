/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SupportedDialects lists the database dialects a DatabaseConfig may name.
var SupportedDialects = []string{"postgres", "cloudsqlpostgres", "mysql", "cloudsqlmysql", "sqlserver", "cloudsqlsqlserver", "sqlite"}

// Config holds all configuration for the application
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Schema   SchemaConfig   `mapstructure:"schema"`
	Server   ServerConfig   `mapstructure:"server"`
	Tagger   TaggerConfig   `mapstructure:"tagger"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Dialect                        string `mapstructure:"dialect"`
	Host                           string `mapstructure:"host"`
	Port                           int    `mapstructure:"port"`
	User                           string `mapstructure:"username"`
	Password                       string `mapstructure:"password"`
	DBName                         string `mapstructure:"database"`
	SSLMode                        string `mapstructure:"sslmode"`
	CloudSQLInstanceConnectionName string `mapstructure:"cloudsql_instance_connection_name"`
	UsePrivateIP                   bool   `mapstructure:"cloudsql_use_private_ip"`
	MaxOpenConns                   int    `mapstructure:"max_open_conns"`
}

// Enabled reports whether a database has been configured at all.
func (c DatabaseConfig) Enabled() bool {
	return c.Dialect != ""
}

// ResolverConfig selects the word resolution strategy for the deployment.
type ResolverConfig struct {
	Strategy  string  `mapstructure:"strategy"`
	Threshold float64 `mapstructure:"threshold"`
}

// SchemaTable is one table of a statically configured catalog.
type SchemaTable struct {
	Name    string   `mapstructure:"name"`
	Columns []string `mapstructure:"columns"`
}

// SchemaConfig describes where the schema catalog comes from. Inline takes
// precedence over Tables; Introspect reads the catalog from the database.
type SchemaConfig struct {
	Inline     string        `mapstructure:"inline"`
	Tables     []SchemaTable `mapstructure:"tables"`
	Introspect bool          `mapstructure:"introspect"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// TaggerConfig selects the entity tagger backend.
type TaggerConfig struct {
	Backend      string `mapstructure:"backend"`
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	Model        string `mapstructure:"model"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GetConfig returns the default configuration.
func GetConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			SSLMode:      "disable",
			MaxOpenConns: 5,
		},
		Resolver: ResolverConfig{
			Strategy:  "fuzzy",
			Threshold: 60,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Tagger: TaggerConfig{
			Backend: "gemini",
			Model:   "gemini-1.5-flash-latest",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// SetDefaults registers the defaults from GetConfig on v.
func SetDefaults(v *viper.Viper) {
	d := GetConfig()
	// Every key needs a default so AutomaticEnv can override it during Unmarshal.
	v.SetDefault("database.dialect", d.Database.Dialect)
	v.SetDefault("database.host", d.Database.Host)
	v.SetDefault("database.port", d.Database.Port)
	v.SetDefault("database.username", d.Database.User)
	v.SetDefault("database.password", d.Database.Password)
	v.SetDefault("database.database", d.Database.DBName)
	v.SetDefault("database.cloudsql_instance_connection_name", d.Database.CloudSQLInstanceConnectionName)
	v.SetDefault("database.cloudsql_use_private_ip", d.Database.UsePrivateIP)
	v.SetDefault("schema.inline", d.Schema.Inline)
	v.SetDefault("schema.introspect", d.Schema.Introspect)
	v.SetDefault("tagger.gemini_api_key", d.Tagger.GeminiAPIKey)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("resolver.strategy", d.Resolver.Strategy)
	v.SetDefault("resolver.threshold", d.Resolver.Threshold)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("tagger.backend", d.Tagger.Backend)
	v.SetDefault("tagger.model", d.Tagger.Model)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads configuration from v. An optional config file is read when
// configFile is non-empty. Environment variables use the NL2SQL_ prefix with
// dots replaced by underscores (NL2SQL_DATABASE_HOST); GEMINI_API_KEY is also
// honored.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix("NL2SQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	cfg := GetConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	if cfg.Tagger.GeminiAPIKey == "" {
		cfg.Tagger.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	cfg.Database.Dialect = strings.ToLower(cfg.Database.Dialect)
	cfg.Resolver.Strategy = strings.ToLower(cfg.Resolver.Strategy)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	if c.Database.Enabled() {
		if err := ValidateDialect(c.Database.Dialect); err != nil {
			return err
		}
		if c.Database.Port < 0 || c.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", c.Database.Port)
		}
	}
	switch c.Resolver.Strategy {
	case "fuzzy", "substring":
	default:
		return fmt.Errorf("unsupported resolver strategy: %s (only fuzzy, substring are supported)", c.Resolver.Strategy)
	}
	if c.Resolver.Threshold < 0 || c.Resolver.Threshold > 100 {
		return fmt.Errorf("resolver threshold must be between 0 and 100, got %v", c.Resolver.Threshold)
	}
	switch c.Tagger.Backend {
	case "gemini", "static":
	default:
		return fmt.Errorf("unsupported tagger backend: %s (only gemini, static are supported)", c.Tagger.Backend)
	}
	return nil
}

// ValidateDialect returns an error unless dialect is supported.
func ValidateDialect(dialect string) error {
	if !slices.Contains(SupportedDialects, dialect) {
		return fmt.Errorf("unsupported dialect: %s (only %s are supported)", dialect, strings.Join(SupportedDialects, ", "))
	}
	return nil
}
