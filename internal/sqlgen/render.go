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

// Package sqlgen renders a planner.Plan as a SQL query string.
//
// Clause order is fixed: SELECT, FROM, JOIN, WHERE, GROUP BY, HAVING,
// ORDER BY, LIMIT. Condition and having text is inserted verbatim and is not
// escaped.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/planner"
)

// Placeholder is rendered in FROM when the plan has no table.
const Placeholder = "table_name"

// JoinKey is the column both sides of a JOIN are compared on.
const JoinKey = "id"

// Render returns the SQL for plan, terminated by a single ';'.
func Render(plan *planner.Plan) string {
	if plan == nil {
		plan = &planner.Plan{}
	}

	table := plan.Table
	if table == "" {
		table = Placeholder
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if plan.Distinct {
		sb.WriteString("DISTINCT ")
	}
	sb.WriteString(selectList(plan))
	sb.WriteString(" FROM ")
	sb.WriteString(table)

	for _, join := range plan.Joins {
		fmt.Fprintf(&sb, " JOIN %s ON %s.%s = %s.%s", join, table, JoinKey, join, JoinKey)
	}
	if len(plan.Conditions) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(plan.Conditions, " AND "))
	}
	if len(plan.GroupBy) > 0 {
		sb.WriteString(" GROUP BY ")
		sb.WriteString(strings.Join(plan.GroupBy, ", "))
	}
	if len(plan.Having) > 0 {
		sb.WriteString(" HAVING ")
		sb.WriteString(strings.Join(plan.Having, " AND "))
	}
	if len(plan.OrderBy) > 0 {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(plan.OrderBy, ", "))
	}
	if plan.Limit != nil {
		fmt.Fprintf(&sb, " LIMIT %d", *plan.Limit)
	}
	sb.WriteString(";")
	return sb.String()
}

// selectList pairs aggregate i with column i. Columns beyond the last
// aggregate are dropped; an aggregate without a column applies to "*".
func selectList(plan *planner.Plan) string {
	if len(plan.AggregateFuncs) > 0 {
		items := make([]string, len(plan.AggregateFuncs))
		for i, fn := range plan.AggregateFuncs {
			arg := "*"
			if i < len(plan.SelectColumns) {
				arg = plan.SelectColumns[i]
			}
			items[i] = fmt.Sprintf("%s(%s)", fn, arg)
		}
		return strings.Join(items, ", ")
	}
	if len(plan.SelectColumns) > 0 {
		return strings.Join(plan.SelectColumns, ", ")
	}
	return "*"
}
