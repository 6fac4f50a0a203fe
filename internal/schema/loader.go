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
package schema

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/database"
)

// ParseInline parses a catalog definition of the form
// "students[student_id,first_name],courses[course_id,course_name]".
// Table order is preserved.
func ParseInline(def string) (*Catalog, error) {
	def = strings.ReplaceAll(def, " ", "")
	if def == "" {
		return nil, fmt.Errorf("schema definition is empty")
	}

	var tables []Table
	for _, part := range splitOutsideBrackets(def) {
		if part == "" {
			continue
		}
		bracketStart := strings.Index(part, "[")
		if bracketStart == -1 {
			return nil, fmt.Errorf("table %q has no column list", part)
		}
		bracketEnd := strings.Index(part, "]")
		if bracketEnd == -1 || bracketEnd < bracketStart {
			return nil, fmt.Errorf("missing closing bracket in: %s", part)
		}

		t := Table{Name: part[:bracketStart]}
		for _, col := range strings.Split(part[bracketStart+1:bracketEnd], ",") {
			if col != "" {
				t.Columns = append(t.Columns, col)
			}
		}
		tables = append(tables, t)
	}
	return NewCatalog(tables...)
}

// splitOutsideBrackets splits s on commas that are not inside square brackets.
func splitOutsideBrackets(s string) []string {
	var result []string
	var current strings.Builder
	inBrackets := false

	for _, char := range s {
		switch char {
		case '[':
			inBrackets = true
			current.WriteRune(char)
		case ']':
			inBrackets = false
			current.WriteRune(char)
		case ',':
			if inBrackets {
				current.WriteRune(char)
			} else {
				result = append(result, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(char)
		}
	}
	if current.Len() > 0 {
		result = append(result, current.String())
	}
	return result
}

// Introspector lists the tables and columns of a live database.
type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	ListColumns(ctx context.Context, tableName string) ([]database.ColumnInfo, error)
}

// Introspect builds a catalog from a live database. Columns are fetched for
// all tables concurrently; the resulting catalog keeps the order returned by
// ListTables. Tables without columns are skipped.
func Introspect(ctx context.Context, src Introspector, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	names, err := src.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	tables := make([]Table, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, name := range names {
		g.Go(func() error {
			cols, err := src.ListColumns(gctx, name)
			if err != nil {
				return fmt.Errorf("failed to list columns for table %s: %w", name, err)
			}
			t := Table{Name: name, Columns: make([]string, 0, len(cols))}
			for _, c := range cols {
				t.Columns = append(t.Columns, c.Name)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kept := tables[:0]
	for _, t := range tables {
		if len(t.Columns) == 0 {
			logger.Warn("skipping table without columns", zap.String("table", t.Name))
			continue
		}
		kept = append(kept, t)
	}
	logger.Info("introspected schema catalog", zap.Int("tables", len(kept)))
	return NewCatalog(kept...)
}

type yamlCatalog struct {
	Tables []Table `yaml:"tables"`
}

// MarshalYAML renders the catalog as a `tables:` list, the same shape the
// config file accepts.
func (c *Catalog) MarshalYAML() (interface{}, error) {
	return yamlCatalog{Tables: c.Snapshot()}, nil
}

// EncodeYAML returns the YAML encoding of the catalog.
func EncodeYAML(c *Catalog) ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema catalog: %w", err)
	}
	return out, nil
}

// DecodeYAML parses a catalog from its YAML encoding.
func DecodeYAML(data []byte) (*Catalog, error) {
	var doc yamlCatalog
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode schema catalog: %w", err)
	}
	return NewCatalog(doc.Tables...)
}
