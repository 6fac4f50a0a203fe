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

package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/config"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/database"
	_ "github.com/GoogleCloudPlatform/db-nl2sql/internal/database/mysql"
	_ "github.com/GoogleCloudPlatform/db-nl2sql/internal/database/postgres"
	_ "github.com/GoogleCloudPlatform/db-nl2sql/internal/database/sqlite"
	_ "github.com/GoogleCloudPlatform/db-nl2sql/internal/database/sqlserver"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/logging"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/resolver"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/schema"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/service"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/tagger"
)

// app carries the state shared by one command tree.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	logger  *zap.Logger
}

// NewRootCmd builds the nl2sql command tree.
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New(), logger: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "nl2sql",
		Short: "Translate natural-language requests into SQL",
		Long: `nl2sql resolves the labeled spans of a natural-language request against a
database schema and synthesizes a SQL query from them. Queries can be printed,
executed against a configured database, or served over HTTP.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.initFlagsAndConfig,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.logger.Sync()
		},
	}

	defaults := config.GetConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "Path to a config file (yaml, json or toml)")

	// Database connection flags
	flags.String("dialect", "", fmt.Sprintf("Database dialect (%s)", strings.Join(config.SupportedDialects, ", ")))
	flags.String("host", "", "Database host")
	flags.Int("port", 0, "Database port")
	flags.String("username", "", "Database username")
	flags.String("password", "", "Database password")
	flags.String("database", "", "Database name (file path for sqlite)")
	flags.String("cloudsql-instance-connection-name", "", "Cloud SQL instance connection name (for Cloud SQL dialects)")
	flags.Bool("cloudsql-use-private-ip", false, "Use private IP for Cloud SQL connection (Cloud SQL)")

	// Resolution and schema flags
	flags.String("strategy", defaults.Resolver.Strategy, "Word resolution strategy (fuzzy, substring)")
	flags.Float64("threshold", defaults.Resolver.Threshold, "Minimum fuzzy score (0-100) for a match")
	flags.String("schema", "", `Inline schema catalog, e.g. "students[student_id,first_name],courses[course_id]"`)
	flags.Bool("introspect", false, "Read the schema catalog from the configured database")

	// Tagger and logging flags
	flags.String("tagger", defaults.Tagger.Backend, "Entity tagger backend (gemini, static)")
	flags.String("gemini-api-key", "", "Gemini API key (can also be set via GEMINI_API_KEY environment variable)")
	flags.String("model", defaults.Tagger.Model, "Gemini model used by the tagger")
	flags.String("log-level", defaults.Log.Level, "Log level (debug, info, warn, error)")
	flags.String("log-format", defaults.Log.Format, "Log format (console, json)")

	for key, flag := range map[string]string{
		"database.dialect":  "dialect",
		"database.host":     "host",
		"database.port":     "port",
		"database.username": "username",
		"database.password": "password",
		"database.database": "database",
		"database.cloudsql_instance_connection_name": "cloudsql-instance-connection-name",
		"database.cloudsql_use_private_ip":           "cloudsql-use-private-ip",
		"resolver.strategy":                          "strategy",
		"resolver.threshold":                         "threshold",
		"schema.inline":                              "schema",
		"schema.introspect":                          "introspect",
		"tagger.backend":                             "tagger",
		"tagger.gemini_api_key":                      "gemini-api-key",
		"tagger.model":                               "model",
		"log.level":                                  "log-level",
		"log.format":                                 "log-format",
	} {
		_ = a.v.BindPFlag(key, flags.Lookup(flag))
	}

	rootCmd.AddCommand(
		a.newSynthesizeCmd(),
		a.newTranslateCmd(),
		a.newQueryCmd(),
		a.newServeCmd(),
		a.newSchemaCmd(),
	)
	return rootCmd
}

// Execute runs the nl2sql command tree.
func Execute() error {
	return NewRootCmd().Execute()
}

// initFlagsAndConfig merges flags, environment and config file into a.cfg and
// builds the logger.
func (a *app) initFlagsAndConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	zap.ReplaceGlobals(logger)
	return nil
}

// openDatabase connects to the configured database. It returns nil when no
// dialect is configured.
func (a *app) openDatabase(ctx context.Context) (*database.DB, error) {
	if !a.cfg.Database.Enabled() {
		return nil, nil
	}
	db, err := database.New(ctx, a.cfg.Database, a.logger)
	if err != nil {
		a.logger.Error("failed to connect to database", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// buildCatalog picks the schema source in order of precedence: inline
// definition, configured tables, introspection, then the built-in schema.
func (a *app) buildCatalog(ctx context.Context, db *database.DB) (*schema.Catalog, error) {
	sc := a.cfg.Schema
	switch {
	case strings.TrimSpace(sc.Inline) != "":
		return schema.ParseInline(sc.Inline)
	case len(sc.Tables) > 0:
		tables := make([]schema.Table, 0, len(sc.Tables))
		for _, t := range sc.Tables {
			tables = append(tables, schema.Table{Name: t.Name, Columns: t.Columns})
		}
		return schema.NewCatalog(tables...)
	case sc.Introspect:
		if db == nil {
			return nil, fmt.Errorf("schema introspection requires a database dialect")
		}
		return schema.Introspect(ctx, db, a.logger)
	default:
		return schema.Default(), nil
	}
}

// components is everything a command may need, released by close.
type components struct {
	db      *database.DB
	tagger  tagger.Tagger
	catalog *schema.Catalog
	svc     *service.Service
}

func (c *components) close() {
	if closer, ok := c.tagger.(io.Closer); ok {
		_ = closer.Close()
	}
	if c.db != nil {
		_ = c.db.Close()
	}
}

type needs struct {
	tagger         bool
	optionalTagger bool
	database       bool
}

// setup builds the service for a command. A tagger that cannot be created is
// fatal only when the command needs one.
func (a *app) setup(ctx context.Context, n needs) (*components, error) {
	c := &components{}
	ok := false
	defer func() {
		if !ok {
			c.close()
		}
	}()

	db, err := a.openDatabase(ctx)
	if err != nil {
		return nil, err
	}
	c.db = db
	if n.database && db == nil {
		return nil, fmt.Errorf("a database dialect is required (set --dialect or NL2SQL_DATABASE_DIALECT)")
	}

	catalog, err := a.buildCatalog(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("failed to build schema catalog: %w", err)
	}
	c.catalog = catalog

	strategy, err := resolver.ParseStrategy(a.cfg.Resolver.Strategy)
	if err != nil {
		return nil, err
	}
	mapper, err := resolver.New(strategy, catalog, a.cfg.Resolver.Threshold)
	if err != nil {
		return nil, err
	}

	opts := []service.Option{service.WithLogger(a.logger)}
	if db != nil {
		opts = append(opts, service.WithExecutor(db))
	}
	if n.tagger || n.optionalTagger {
		t, err := tagger.New(ctx, a.cfg.Tagger, a.logger)
		if g, isGemini := t.(*tagger.Gemini); isGemini && err == nil {
			if err = g.IsAPIKeyValid(ctx); err != nil {
				g.Close()
			}
		}
		switch {
		case err == nil:
			c.tagger = t
			opts = append(opts, service.WithTagger(t))
		case n.tagger:
			return nil, fmt.Errorf("failed to create entity tagger: %w", err)
		default:
			a.logger.Warn("entity tagger unavailable, natural-language requests will be rejected", zap.Error(err))
		}
	}

	svc, err := service.New(catalog, mapper, opts...)
	if err != nil {
		return nil, err
	}
	c.svc = svc
	ok = true
	return c, nil
}
