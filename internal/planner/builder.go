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

// Package planner accumulates labeled entities into a query Plan.
package planner

import (
	"iter"
	"slices"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/resolver"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/schema"
)

// Aggregates are the aggregate functions a plan may contain.
var Aggregates = []string{"COUNT", "SUM", "AVG", "MIN", "MAX"}

// Builder turns entity sequences into plans. A Builder holds no per-run state
// and may be shared by concurrent callers.
type Builder struct {
	catalog *schema.Catalog
	mapper  resolver.Mapper
	logger  *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used to report dropped spans at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder returns a Builder resolving words against catalog with mapper.
func NewBuilder(catalog *schema.Catalog, mapper resolver.Mapper, opts ...Option) *Builder {
	b := &Builder{
		catalog: catalog,
		mapper:  mapper,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build consumes entities in order and returns the accumulated plan. It never
// fails: spans that cannot be used are recorded in Plan.Unresolved.
func (b *Builder) Build(entities iter.Seq[entity.Entity]) *Plan {
	plan := &Plan{}
	for ent := range entities {
		b.apply(plan, ent)
	}
	b.inferTable(plan)
	return plan
}

// BuildSlice is Build over a slice.
func (b *Builder) BuildSlice(entities []entity.Entity) *Plan {
	return b.Build(entity.Slice(entities...))
}

func (b *Builder) apply(plan *Plan, ent entity.Entity) {
	word := strings.TrimSpace(ent.Text)

	switch ent.Label {
	case entity.LabelTable:
		ref := b.mapper.Resolve(word, "")
		if !ref.HasTable() {
			b.drop(plan, ent, ReasonNoTable)
			return
		}
		plan.Table = ref.Table

	case entity.LabelJoin:
		ref := b.mapper.Resolve(word, "")
		if !ref.HasTable() {
			b.drop(plan, ent, ReasonNoTable)
			return
		}
		plan.Joins = append(plan.Joins, ref.Table)

	case entity.LabelColumn:
		if col, ok := b.resolveColumn(plan, ent, word); ok {
			plan.SelectColumns = append(plan.SelectColumns, col)
		}

	case entity.LabelOrderBy:
		if col, ok := b.resolveColumn(plan, ent, word); ok {
			plan.OrderBy = append(plan.OrderBy, col)
		}

	case entity.LabelGroupBy:
		if col, ok := b.resolveColumn(plan, ent, word); ok {
			plan.GroupBy = append(plan.GroupBy, col)
		}

	case entity.LabelCondition, entity.LabelValue:
		if word == "" {
			b.drop(plan, ent, ReasonEmptyText)
			return
		}
		plan.Conditions = append(plan.Conditions, word)

	case entity.LabelHaving:
		if word == "" {
			b.drop(plan, ent, ReasonEmptyText)
			return
		}
		plan.Having = append(plan.Having, word)

	case entity.LabelAggregate:
		fn := strings.ToUpper(word)
		if !slices.Contains(Aggregates, fn) {
			b.drop(plan, ent, ReasonNotAggregate)
			return
		}
		plan.AggregateFuncs = append(plan.AggregateFuncs, fn)

	case entity.LabelLimit:
		n, err := strconv.Atoi(word)
		if err != nil {
			b.drop(plan, ent, ReasonBadLimit)
			return
		}
		plan.Limit = &n

	case entity.LabelDistinct:
		plan.Distinct = true

	default:
		b.drop(plan, ent, ReasonUnknownLabel)
	}
}

// resolveColumn resolves word within the table resolved so far, if any.
func (b *Builder) resolveColumn(plan *Plan, ent entity.Entity, word string) (string, bool) {
	ref := b.mapper.Resolve(word, plan.Table)
	if !ref.HasColumn() {
		b.drop(plan, ent, ReasonNoColumn)
		return "", false
	}
	return ref.Column, true
}

func (b *Builder) drop(plan *Plan, ent entity.Entity, reason Reason) {
	plan.Unresolved = append(plan.Unresolved, Diagnostic{Entity: ent, Reason: reason})
	b.logger.Debug("dropping entity",
		zap.String("label", ent.Label.String()),
		zap.String("text", ent.Text),
		zap.String("reason", string(reason)),
	)
}

// inferTable sets the table to the first catalog table that owns any of the
// selected columns, when no TABLE span resolved.
func (b *Builder) inferTable(plan *Plan) {
	if plan.HasTable() || len(plan.SelectColumns) == 0 {
		return
	}
	b.catalog.Each(func(t schema.Table) bool {
		for _, col := range plan.SelectColumns {
			if slices.Contains(t.Columns, col) {
				plan.Table = t.Name
				plan.TableInferred = true
				return false
			}
		}
		return true
	})
	if plan.HasTable() {
		b.logger.Debug("inferred table from selected columns", zap.String("table", plan.Table))
	}
}
