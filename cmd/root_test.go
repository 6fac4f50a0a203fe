package cmd

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/config"
	"github.com/GoogleCloudPlatform/db-nl2sql/internal/database"
)

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	root := NewRootCmd()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestSynthesizeCommand(t *testing.T) {
	out, errOut, err := run(t, "", "synthesize", "--entities", "AGGREGATE:count; COLUMN:student_id; TABLE:students")
	require.NoError(t, err)
	assert.Equal(t, "SELECT COUNT(student_id) FROM students;\n", out)
	assert.Empty(t, errOut)
}

func TestSynthesizeReportsUnresolved(t *testing.T) {
	out, errOut, err := run(t, "", "synthesize",
		"--schema", "books[book_id,title]",
		"--entities", "TABLE:books; COLUMN:title; COLUMN:zzz; LIMIT:ten")
	require.NoError(t, err)
	assert.Equal(t, "SELECT title FROM books;\n", out)
	assert.Contains(t, errOut, `unresolved: COLUMN("zzz"): no matching column`)
	assert.Contains(t, errOut, `unresolved: LIMIT("ten"): limit is not an integer`)
}

func TestSynthesizeFromStdinAsJSON(t *testing.T) {
	stdin := `[{"text":"course_name","label":"COLUMN"},{"text":"5","label":"LIMIT"}]`
	out, _, err := run(t, stdin, "synthesize", "--file", "-", "--json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":"SELECT course_name FROM courses LIMIT 5;"}`, out)
}

func TestSynthesizeRequiresInput(t *testing.T) {
	_, _, err := run(t, "", "synthesize")
	assert.Error(t, err)
}

func TestTranslateWithStaticTagger(t *testing.T) {
	out, _, err := run(t, "", "translate", "--tagger", "static", "--strategy", "substring", "TABLE:departments; COLUMN:name")
	require.NoError(t, err)
	assert.Equal(t, "SELECT department_name FROM departments;\n", out)
}

func TestInvalidConfiguration(t *testing.T) {
	_, _, err := run(t, "", "synthesize", "--strategy", "phonetic", "--entities", "TABLE:students")
	assert.ErrorContains(t, err, "unsupported resolver strategy")

	_, _, err = run(t, "", "query", "--tagger", "static", "TABLE:students")
	assert.ErrorContains(t, err, "a database dialect is required")

	_, _, err = run(t, "", "schema", "--introspect")
	assert.ErrorContains(t, err, "schema introspection requires a database dialect")
}

func TestEnvironmentConfiguration(t *testing.T) {
	t.Setenv("NL2SQL_SCHEMA_INLINE", "books[book_id,title]")
	out, _, err := run(t, "", "synthesize", "--entities", "COLUMN:title")
	require.NoError(t, err)
	assert.Equal(t, "SELECT title FROM books;\n", out)
}

func newSQLiteFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "school.db")
	ctx := context.Background()
	db, err := database.New(ctx, config.DatabaseConfig{Dialect: "sqlite", DBName: path}, nil)
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range []string{
		"CREATE TABLE students (student_id INTEGER PRIMARY KEY, first_name TEXT, last_name TEXT)",
		"INSERT INTO students VALUES (1, 'Ada', 'Lovelace'), (2, 'Alan', 'Turing')",
	} {
		_, err := db.Pool.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}
	return path
}

func TestQueryCommandAgainstSQLite(t *testing.T) {
	path := newSQLiteFile(t)

	out, _, err := run(t, "", "query",
		"--dialect", "sqlite", "--database", path, "--introspect", "--tagger", "static",
		"TABLE:students; COLUMN:first name")
	require.NoError(t, err)
	assert.Equal(t, "SELECT first_name FROM students;\nfirst_name\nAda\nAlan\n(2 rows)\n", out)
}

func TestSchemaCommand(t *testing.T) {
	out, _, err := run(t, "", "schema")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "tables:"), out)
	assert.Contains(t, out, "name: enrollments")

	path := newSQLiteFile(t)
	out, _, err = run(t, "", "schema", "--dialect", "sqlite", "--database", path, "--introspect")
	require.NoError(t, err)
	assert.Contains(t, out, "name: students")
	assert.NotContains(t, out, "enrollments")
}

func TestPrintRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printRows(&buf, []string{"id", "name"}, [][]any{{int64(1), "Ada"}, {int64(22), nil}}))
	assert.Equal(t, "id  name\n1   Ada\n22  NULL\n(2 rows)\n", buf.String())
}
