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
package planner

import (
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
)

// Plan is the structured query assembled from one entity sequence.
// AggregateFuncs pair positionally with SelectColumns when rendered.
type Plan struct {
	Table          string
	SelectColumns  []string
	AggregateFuncs []string
	Conditions     []string
	Joins          []string
	GroupBy        []string
	Having         []string
	OrderBy        []string
	Limit          *int
	Distinct       bool

	// TableInferred is set when Table came from the selected columns rather
	// than a TABLE span.
	TableInferred bool

	// Unresolved lists the spans that were dropped, in input order.
	Unresolved []Diagnostic
}

// HasTable reports whether a table was resolved or inferred.
func (p *Plan) HasTable() bool {
	return p.Table != ""
}

// Reason explains why a span was dropped from the plan.
type Reason string

const (
	ReasonNoTable      Reason = "no matching table"
	ReasonNoColumn     Reason = "no matching column"
	ReasonNotAggregate Reason = "unsupported aggregate function"
	ReasonBadLimit     Reason = "limit is not an integer"
	ReasonEmptyText    Reason = "empty text"
	ReasonUnknownLabel Reason = "unknown label"
)

// Diagnostic records one dropped span.
type Diagnostic struct {
	Entity entity.Entity `json:"entity"`
	Reason Reason        `json:"reason"`
}
