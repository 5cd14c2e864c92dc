package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingT struct {
	msg string
}

func (r *recordingT) Fatalf(format string, args ...any) { r.msg = fmt.Sprintf(format, args...) }

func writeFile(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600))
}

func TestPredicates(t *testing.T) {
	assert.True(t, DriverImportForbidden("modernc.org/sqlite"))
	assert.True(t, DriverImportForbidden("modernc.org/sqlite/lib"))
	assert.True(t, DriverImportForbidden("github.com/jackc/pgx/v5/stdlib"))
	assert.False(t, DriverImportForbidden("modernc.org/sqlitex"))
	assert.False(t, DriverImportForbidden("database/sql"))

	assert.True(t, CLIImportForbidden("github.com/spf13/cobra"))
	assert.False(t, CLIImportForbidden("github.com/spf13/cast"))

	store := PackageImportForbidden("miniorm/pkg/store")
	assert.True(t, store("miniorm/pkg/store"))
	assert.True(t, store("miniorm/pkg/store/storetest"))
	assert.False(t, store("miniorm/pkg/storefront"))
}

func TestDirectImportViolations(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.go", "package tmp\nimport (\n\t\"fmt\"\n\t_ \"modernc.org/sqlite\"\n)\nfunc X() { fmt.Println() }\n")
	writeFile(t, dir, "a_test.go", "package tmp\nimport _ \"github.com/jackc/pgx/v5/stdlib\"\n")
	writeFile(t, dir, "notes.txt", "import \"modernc.org/sqlite\"")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o700))

	viols, err := directImportViolations(dir, DriverImportForbidden)
	require.NoError(t, err)
	assert.Equal(t, []string{"modernc.org/sqlite (in a.go)"}, viols)

	rec := &recordingT{}
	failIfViolations(rec, "forbidden direct imports", "drivers", viols)
	assert.Contains(t, rec.msg, "forbidden direct imports detected (drivers)")
}

func TestDirectImportViolationsErrors(t *testing.T) {
	_, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), DriverImportForbidden)
	require.Error(t, err)

	dir := t.TempDir()
	writeFile(t, dir, "bad.go", "package tmp\nimport (")
	_, err = directImportViolations(dir, DriverImportForbidden)
	require.Error(t, err)
}

func TestAssertNoDirectImportsPasses(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	AssertNoDirectImports(t, dir, DriverImportForbidden, "none")
}

func TestTransitiveDependencyViolations(t *testing.T) {
	orig := goListDeps
	t.Cleanup(func() { goListDeps = orig })

	goListDeps = func(string) ([]byte, error) {
		return []byte("fmt\nminiorm/pkg/store\n\nmodernc.org/sqlite\n"), nil
	}
	viols, _, err := transitiveDependencyViolations("./...", DriverImportForbidden)
	require.NoError(t, err)
	assert.Equal(t, []string{"modernc.org/sqlite"}, viols)

	goListDeps = func(string) ([]byte, error) { return []byte("boom"), errors.New("exit status 1") }
	_, out, err := transitiveDependencyViolations("./...", DriverImportForbidden)
	require.Error(t, err)
	assert.Equal(t, "boom", string(out))
}
