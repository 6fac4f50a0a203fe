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

// Package resolver maps free-text words onto schema tables and columns.
//
// A deployment uses exactly one Strategy. StrategyFuzzy is the default and
// scores words with fuzzy.Ratio against a threshold; StrategySubstring accepts
// the first case-insensitive substring hit in catalog order.
package resolver

import (
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/fuzzy"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/schema"
)

// Reference is the outcome of resolving one word. Empty fields mean "none".
type Reference struct {
	Table  string
	Column string
}

func (r Reference) HasTable() bool  { return r.Table != "" }
func (r Reference) HasColumn() bool { return r.Column != "" }

// Mapper resolves a word, optionally within an already resolved table.
type Mapper interface {
	Resolve(word, tableContext string) Reference
}

// Strategy selects the resolution algorithm.
type Strategy string

const (
	StrategyFuzzy     Strategy = "fuzzy"
	StrategySubstring Strategy = "substring"
)

// ParseStrategy parses a strategy name case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFuzzy, "":
		return StrategyFuzzy, nil
	case StrategySubstring:
		return StrategySubstring, nil
	}
	return "", fmt.Errorf("unsupported resolver strategy: %s (only %s, %s are supported)", s, StrategyFuzzy, StrategySubstring)
}

// New returns the Mapper for strategy. threshold only applies to StrategyFuzzy.
func New(strategy Strategy, catalog *schema.Catalog, threshold float64) (Mapper, error) {
	if catalog == nil {
		return nil, fmt.Errorf("schema catalog is required")
	}
	switch strategy {
	case StrategyFuzzy:
		if threshold < 0 || threshold > 100 {
			return nil, fmt.Errorf("fuzzy threshold must be between 0 and 100, got %v", threshold)
		}
		return &FuzzyMapper{catalog: catalog, threshold: threshold}, nil
	case StrategySubstring:
		return &SubstringMapper{catalog: catalog}, nil
	}
	return nil, fmt.Errorf("unsupported resolver strategy: %q", strategy)
}

func normalize(word string) string {
	return strings.ToLower(strings.TrimSpace(word))
}

// FuzzyMapper is the threshold-based, table-aware resolution strategy.
type FuzzyMapper struct {
	catalog   *schema.Catalog
	threshold float64
}

// NewFuzzyMapper returns a FuzzyMapper using threshold as the minimum score.
func NewFuzzyMapper(catalog *schema.Catalog, threshold float64) *FuzzyMapper {
	return &FuzzyMapper{catalog: catalog, threshold: threshold}
}

// Resolve matches word against the columns of tableContext when it names a
// catalog table. Otherwise the word is scored against every table name and
// every column; the best column is taken from the earliest table on ties.
// The table candidate wins unless the column candidate scores strictly
// higher, so "student_id" resolves to the column while "student" still
// resolves to the table. Both candidates must reach the threshold.
func (m *FuzzyMapper) Resolve(word, tableContext string) Reference {
	w := normalize(word)

	if columns, ok := m.catalog.Columns(tableContext); ok {
		col, _ := fuzzy.Match(w, columns, m.threshold)
		return Reference{Table: tableContext, Column: col}
	}

	table, tableOK := fuzzy.BestMatch(w, m.catalog.Tables())
	tableOK = tableOK && table.Value >= m.threshold

	var colRef Reference
	var colScore float64
	m.catalog.Each(func(t schema.Table) bool {
		best, ok := fuzzy.BestMatch(w, t.Columns)
		if ok && best.Value >= m.threshold && best.Value > colScore {
			colRef = Reference{Table: t.Name, Column: best.Candidate}
			colScore = best.Value
		}
		return true
	})

	switch {
	case tableOK && (!colRef.HasColumn() || table.Value >= colScore):
		return Reference{Table: table.Candidate}
	case colRef.HasColumn():
		return colRef
	}
	return Reference{}
}

// SubstringMapper is the table-oblivious containment strategy. Ambiguous words
// resolve to whichever table is enumerated first.
type SubstringMapper struct {
	catalog *schema.Catalog
}

// NewSubstringMapper returns a SubstringMapper over catalog.
func NewSubstringMapper(catalog *schema.Catalog) *SubstringMapper {
	return &SubstringMapper{catalog: catalog}
}

// Resolve ignores tableContext.
func (m *SubstringMapper) Resolve(word, _ string) Reference {
	w := normalize(word)
	if w == "" {
		return Reference{}
	}

	var ref Reference
	m.catalog.Each(func(t schema.Table) bool {
		if strings.Contains(strings.ToLower(t.Name), w) {
			ref = Reference{Table: t.Name}
			return false
		}
		for _, col := range t.Columns {
			if strings.Contains(strings.ToLower(col), w) {
				ref = Reference{Table: t.Name, Column: col}
				return false
			}
		}
		return true
	})
	return ref
}
