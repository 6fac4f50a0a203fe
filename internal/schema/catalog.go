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
	"fmt"
	"slices"
	"strings"
)

// Table is a single table in the catalog with its columns in declaration order.
type Table struct {
	Name    string   `yaml:"name" mapstructure:"name" json:"name"`
	Columns []string `yaml:"columns" mapstructure:"columns" json:"columns"`
}

// Catalog is an ordered, read-only mapping of table name to column names.
// It is safe for concurrent use once constructed.
type Catalog struct {
	tables []Table
	index  map[string]int
}

// NewCatalog builds a catalog from tables, preserving their order.
func NewCatalog(tables ...Table) (*Catalog, error) {
	c := &Catalog{
		tables: make([]Table, 0, len(tables)),
		index:  make(map[string]int, len(tables)),
	}
	for _, t := range tables {
		name := strings.TrimSpace(t.Name)
		if name == "" {
			return nil, fmt.Errorf("table name cannot be empty")
		}
		if _, exists := c.index[name]; exists {
			return nil, fmt.Errorf("duplicate table %q in schema catalog", name)
		}
		seen := make(map[string]bool, len(t.Columns))
		columns := make([]string, 0, len(t.Columns))
		for _, col := range t.Columns {
			col = strings.TrimSpace(col)
			if col == "" {
				return nil, fmt.Errorf("table %q has an empty column name", name)
			}
			if seen[col] {
				return nil, fmt.Errorf("duplicate column %q in table %q", col, name)
			}
			seen[col] = true
			columns = append(columns, col)
		}
		c.index[name] = len(c.tables)
		c.tables = append(c.tables, Table{Name: name, Columns: columns})
	}
	return c, nil
}

// MustCatalog is like NewCatalog but panics on invalid input. Intended for
// package-level schema literals and tests.
func MustCatalog(tables ...Table) *Catalog {
	c, err := NewCatalog(tables...)
	if err != nil {
		panic(err)
	}
	return c
}

// Default returns the university schema the query service ships with.
func Default() *Catalog {
	return MustCatalog(
		Table{Name: "departments", Columns: []string{"department_id", "department_name"}},
		Table{Name: "students", Columns: []string{"student_id", "first_name", "last_name", "date_of_birth", "department_id"}},
		Table{Name: "instructors", Columns: []string{"instructor_id", "first_name", "last_name", "department_id"}},
		Table{Name: "courses", Columns: []string{"course_id", "course_name", "department_id", "instructor_id", "credits"}},
		Table{Name: "enrollments", Columns: []string{"enrollment_id", "student_id", "course_id", "enrollment_date"}},
	)
}

// Len returns the number of tables.
func (c *Catalog) Len() int {
	return len(c.tables)
}

// Tables returns table names in catalog order.
func (c *Catalog) Tables() []string {
	names := make([]string, len(c.tables))
	for i, t := range c.tables {
		names[i] = t.Name
	}
	return names
}

// HasTable reports whether name is a table in the catalog.
func (c *Catalog) HasTable(name string) bool {
	_, ok := c.index[name]
	return ok
}

// Columns returns a copy of the columns of table.
func (c *Catalog) Columns(table string) ([]string, bool) {
	i, ok := c.index[table]
	if !ok {
		return nil, false
	}
	return slices.Clone(c.tables[i].Columns), true
}

// Each calls fn for every table in catalog order until fn returns false.
// The Table passed to fn must not be modified.
func (c *Catalog) Each(fn func(Table) bool) {
	for _, t := range c.tables {
		if !fn(t) {
			return
		}
	}
}

// Snapshot returns a deep copy of the catalog's tables.
func (c *Catalog) Snapshot() []Table {
	out := make([]Table, len(c.tables))
	for i, t := range c.tables {
		out[i] = Table{Name: t.Name, Columns: slices.Clone(t.Columns)}
	}
	return out
}
