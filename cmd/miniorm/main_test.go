package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniorm/pkg/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	err := run(args, &out, &errOut, nil)
	return out.String(), err
}

func sqliteDSN(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "cli.db")
	db, err := store.Open("sqlite", dsn)
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.NoError(t, db.Close())
	return dsn
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "miniorm v"+Version+"\n", out)
}

func TestUnknownDriver(t *testing.T) {
	_, err := execute(t, "stats", "--driver", "oracle")
	require.Error(t, err)
}

func TestCommandsAgainstSQLite(t *testing.T) {
	dsn := sqliteDSN(t)

	out, err := execute(t, "init", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "schema applied (sqlite)\n", out)

	out, err = execute(t, "seed", "--dsn", dsn)
	require.NoError(t, err)
	assert.Equal(t, "seeded 3 departments, 3 projects, 4 employees, 4 assignments\n", out)

	out, err = execute(t, "hire", "--dsn", dsn, "--first", "Pesho", "--last", "Peshev", "--department", "Sales")
	require.NoError(t, err)
	assert.Equal(t, "hired Pesho Peshev (#5) into Sales\n", out)

	out, err = execute(t, "fire", "--dsn", dsn, "--id", "1")
	require.NoError(t, err)
	assert.Equal(t, "fired Ana Ivanova (#1)\n", out)

	_, err = execute(t, "fire", "--dsn", dsn, "--id", "42")
	require.ErrorContains(t, err, "no employee with id 42")

	out, err = execute(t, "stats", "--dsn", dsn)
	require.NoError(t, err)
	assert.Regexp(t, `Employees\s+5`, out)
	assert.Regexp(t, `EmployeesProjects\s+2`, out)

	out, err = execute(t, "show", "--dsn", dsn)
	require.NoError(t, err)
	assert.Contains(t, out, "Sales (#2)")
	assert.Regexp(t, `#5\s+Pesho Peshev\s+employed`, out)
	assert.Regexp(t, `#1\s+Ana Ivanova\s+former`, out)
	assert.Regexp(t, `#2\s+Boris Georgiev Petrov\s+employed\s+Apollo`, out)

	out, err = execute(t, "show", "--dsn", dsn, "--dump")
	require.NoError(t, err)
	assert.Contains(t, out, `"Engineering"`)
}

func TestMetricsFlag(t *testing.T) {
	dsn := sqliteDSN(t)
	_, err := execute(t, "init", "--dsn", dsn)
	require.NoError(t, err)

	out, err := execute(t, "seed", "--dsn", dsn, "--metrics")
	require.NoError(t, err)
	assert.Contains(t, out, `miniorm_operations_total{operation="load",status="success"} 1`)
	assert.Contains(t, out, `miniorm_operations_total{operation="save",status="success"} 1`)
	assert.Contains(t, out, `miniorm_rows_total{operation="insert",table="Employees"} 4`)
}

func TestExpvarMetrics(t *testing.T) {
	dsn := sqliteDSN(t)
	_, err := execute(t, "init", "--dsn", dsn)
	require.NoError(t, err)

	out, err := execute(t, "seed", "--dsn", dsn, "--metrics=expvar")
	require.NoError(t, err)
	assert.Contains(t, out, `"operations": {`)
	assert.Contains(t, out, `"Employees": {`)
	assert.Contains(t, out, `"insert": 4`)
	assert.NotContains(t, out, "miniorm_operations_total")

	_, err = execute(t, "stats", "--dsn", dsn, "--metrics=statsd")
	require.ErrorContains(t, err, "unknown metrics exporter")
}

func TestSeedFromFile(t *testing.T) {
	dsn := sqliteDSN(t)
	_, err := execute(t, "init", "--dsn", dsn)
	require.NoError(t, err)

	_, err = execute(t, "seed", "--dsn", dsn, "--file", filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "open fixtures")

	_, err = execute(t, "seed", "--dsn", dsn, "--file", filepath.Join("testdata", "small.yaml"))
	require.NoError(t, err)
	out, err := execute(t, "stats", "--dsn", dsn)
	require.NoError(t, err)
	assert.Regexp(t, `Departments\s+1`, out)
	assert.Regexp(t, `Employees\s+1`, out)
}
