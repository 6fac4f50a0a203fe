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

// Package entity defines the labeled text spans produced by an entity tagger.
package entity

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
)

// Label is the semantic role of a tagged span.
type Label int

const (
	LabelUnknown Label = iota
	LabelTable
	LabelColumn
	LabelCondition
	LabelValue
	LabelAggregate
	LabelOrderBy
	LabelGroupBy
	LabelHaving
	LabelJoin
	LabelLimit
	LabelDistinct
)

var labelNames = [...]string{
	LabelUnknown:   "UNKNOWN",
	LabelTable:     "TABLE",
	LabelColumn:    "COLUMN",
	LabelCondition: "CONDITION",
	LabelValue:     "VALUE",
	LabelAggregate: "AGGREGATE",
	LabelOrderBy:   "ORDER_BY",
	LabelGroupBy:   "GROUP_BY",
	LabelHaving:    "HAVING",
	LabelJoin:      "JOIN",
	LabelLimit:     "LIMIT",
	LabelDistinct:  "DISTINCT",
}

func (l Label) String() string {
	if l < 0 || int(l) >= len(labelNames) {
		return fmt.Sprintf("Label(%d)", int(l))
	}
	return labelNames[l]
}

// Labels returns every known label except LabelUnknown.
func Labels() []Label {
	out := make([]Label, 0, len(labelNames)-1)
	for l := LabelTable; int(l) < len(labelNames); l++ {
		out = append(out, l)
	}
	return out
}

// ParseLabel parses a label name case-insensitively. "ORDER BY" and
// "order-by" are accepted as spellings of ORDER_BY.
func ParseLabel(s string) (Label, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	for _, l := range Labels() {
		if labelNames[l] == norm {
			return l, nil
		}
	}
	return LabelUnknown, fmt.Errorf("unknown entity label: %q", s)
}

func (l Label) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Label) UnmarshalText(text []byte) error {
	parsed, err := ParseLabel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Entity is a text span with its label.
type Entity struct {
	Text  string `json:"text"`
	Label Label  `json:"label"`
}

func (e Entity) String() string {
	return fmt.Sprintf("%s(%q)", e.Label, e.Text)
}

// New is shorthand for Entity{Text: text, Label: label}.
func New(text string, label Label) Entity {
	return Entity{Text: text, Label: label}
}

// Slice adapts a slice of entities to the sequence type consumed by the planner.
func Slice(entities ...Entity) iter.Seq[Entity] {
	return func(yield func(Entity) bool) {
		for _, e := range entities {
			if !yield(e) {
				return
			}
		}
	}
}

// DecodeJSON parses a JSON array of {"text": ..., "label": ...} objects.
func DecodeJSON(data []byte) ([]Entity, error) {
	var entities []Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("failed to decode entities: %w", err)
	}
	return entities, nil
}

// ParseInline parses "LABEL:text; LABEL:text" into entities. Empty items are
// skipped.
func ParseInline(s string) ([]Entity, error) {
	var entities []Entity
	for _, item := range strings.Split(s, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		labelPart, text, found := strings.Cut(item, ":")
		if !found {
			return nil, fmt.Errorf("entity %q is missing a LABEL: prefix", item)
		}
		label, err := ParseLabel(labelPart)
		if err != nil {
			return nil, err
		}
		entities = append(entities, Entity{Text: strings.TrimSpace(text), Label: label})
	}
	return entities, nil
}
