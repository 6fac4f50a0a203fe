package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/entity"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/fuzzy"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/resolver"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/schema"
)

func newFuzzyBuilder(t *testing.T) *Builder {
	t.Helper()
	catalog := schema.Default()
	return NewBuilder(catalog, resolver.NewFuzzyMapper(catalog, fuzzy.DefaultThreshold), WithLogger(zaptest.NewLogger(t)))
}

func intPtr(n int) *int { return &n }

func TestBuild(t *testing.T) {
	tests := []struct {
		name     string
		entities []entity.Entity
		want     Plan
	}{
		{
			name: "aggregate with column before table",
			entities: []entity.Entity{
				entity.New("COUNT", entity.LabelAggregate),
				entity.New("student_id", entity.LabelColumn),
				entity.New("students", entity.LabelTable),
			},
			want: Plan{Table: "students", SelectColumns: []string{"student_id"}, AggregateFuncs: []string{"COUNT"}},
		},
		{
			name: "table context narrows column lookup",
			entities: []entity.Entity{
				entity.New("instructors", entity.LabelTable),
				entity.New("first name", entity.LabelColumn),
			},
			want: Plan{Table: "instructors", SelectColumns: []string{"first_name"}},
		},
		{
			name: "table inferred from unique column",
			entities: []entity.Entity{
				entity.New("course_name", entity.LabelColumn),
			},
			want: Plan{Table: "courses", TableInferred: true, SelectColumns: []string{"course_name"}},
		},
		{
			name: "inference takes first table in catalog order",
			entities: []entity.Entity{
				entity.New("first_name", entity.LabelColumn),
			},
			want: Plan{Table: "students", TableInferred: true, SelectColumns: []string{"first_name"}},
		},
		{
			name: "later table overwrites earlier one",
			entities: []entity.Entity{
				entity.New("students", entity.LabelTable),
				entity.New("courses", entity.LabelTable),
			},
			want: Plan{Table: "courses"},
		},
		{
			name: "conditions values and having keep raw text",
			entities: []entity.Entity{
				entity.New(" age > 20 ", entity.LabelCondition),
				entity.New("first_name = 'John'", entity.LabelValue),
				entity.New("COUNT(*) > 1", entity.LabelHaving),
			},
			want: Plan{
				Conditions: []string{"age > 20", "first_name = 'John'"},
				Having:     []string{"COUNT(*) > 1"},
			},
		},
		{
			name: "order and group by resolve within table",
			entities: []entity.Entity{
				entity.New("students", entity.LabelTable),
				entity.New("department", entity.LabelGroupBy),
				entity.New("last name", entity.LabelOrderBy),
			},
			want: Plan{Table: "students", GroupBy: []string{"department_id"}, OrderBy: []string{"last_name"}},
		},
		{
			name: "join resolves a table",
			entities: []entity.Entity{
				entity.New("students", entity.LabelTable),
				entity.New("enrollment", entity.LabelJoin),
			},
			want: Plan{Table: "students", Joins: []string{"enrollments"}},
		},
		{
			name: "aggregates are uppercased",
			entities: []entity.Entity{
				entity.New("avg", entity.LabelAggregate),
				entity.New(" Max", entity.LabelAggregate),
			},
			want: Plan{AggregateFuncs: []string{"AVG", "MAX"}},
		},
		{
			name: "last limit wins and distinct is set",
			entities: []entity.Entity{
				entity.New("5", entity.LabelLimit),
				entity.New("DISTINCT", entity.LabelDistinct),
				entity.New(" 7 ", entity.LabelLimit),
			},
			want: Plan{Limit: intPtr(7), Distinct: true},
		},
	}

	b := newFuzzyBuilder(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := b.BuildSlice(tt.entities)
			assert.Empty(t, got.Unresolved)
			got.Unresolved = nil
			assert.Equal(t, &tt.want, got)
		})
	}
}

func TestBuildRecordsUnresolved(t *testing.T) {
	unknown := entity.Entity{Text: "bob", Label: entity.Label(99)}
	entities := []entity.Entity{
		entity.New("students", entity.LabelTable),
		entity.New("xyz", entity.LabelColumn),
		entity.New("qqq", entity.LabelJoin),
		entity.New("ten", entity.LabelLimit),
		entity.New("median", entity.LabelAggregate),
		entity.New("  ", entity.LabelCondition),
		entity.New("zzz", entity.LabelTable),
		unknown,
	}

	plan := newFuzzyBuilder(t).BuildSlice(entities)

	assert.Equal(t, "students", plan.Table, "unresolved TABLE span must not clear the table")
	assert.Nil(t, plan.Limit)
	assert.Empty(t, plan.SelectColumns)
	assert.Empty(t, plan.Joins)
	assert.Empty(t, plan.AggregateFuncs)
	assert.Empty(t, plan.Conditions)
	assert.Equal(t, []Diagnostic{
		{Entity: entities[1], Reason: ReasonNoColumn},
		{Entity: entities[2], Reason: ReasonNoTable},
		{Entity: entities[3], Reason: ReasonBadLimit},
		{Entity: entities[4], Reason: ReasonNotAggregate},
		{Entity: entities[5], Reason: ReasonEmptyText},
		{Entity: entities[6], Reason: ReasonNoTable},
		{Entity: unknown, Reason: ReasonUnknownLabel},
	}, plan.Unresolved)
}

func TestBuildColumnThatOnlyMatchesTable(t *testing.T) {
	plan := newFuzzyBuilder(t).BuildSlice([]entity.Entity{entity.New("students", entity.LabelColumn)})
	assert.Empty(t, plan.SelectColumns)
	assert.False(t, plan.HasTable())
	require.Len(t, plan.Unresolved, 1)
	assert.Equal(t, ReasonNoColumn, plan.Unresolved[0].Reason)
}

func TestBuildWithSubstringMapper(t *testing.T) {
	catalog := schema.Default()
	b := NewBuilder(catalog, resolver.NewSubstringMapper(catalog))

	plan := b.BuildSlice([]entity.Entity{
		entity.New("name", entity.LabelColumn),
		entity.New("course", entity.LabelJoin),
	})
	assert.Equal(t, []string{"department_name"}, plan.SelectColumns)
	assert.Equal(t, []string{"courses"}, plan.Joins)
	assert.Equal(t, "departments", plan.Table)
	assert.True(t, plan.TableInferred)
}

func TestBuildConsumesSequenceOnce(t *testing.T) {
	calls := 0
	seq := func(yield func(entity.Entity) bool) {
		calls++
		for _, e := range []entity.Entity{entity.New("students", entity.LabelTable), entity.New("10", entity.LabelLimit)} {
			if !yield(e) {
				return
			}
		}
	}

	plan := newFuzzyBuilder(t).Build(seq)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "students", plan.Table)
	assert.Equal(t, intPtr(10), plan.Limit)
}
