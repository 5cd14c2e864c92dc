package orm_test

import (
	"testing"

	"miniorm/testutil"
)

func TestOrmDoesNotImportDrivers(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.DriverImportForbidden, "drivers are registered by pkg/store")
	testutil.AssertNoDirectImports(t, ".", testutil.CLIImportForbidden, "configuration belongs to the CLI")
}

func TestMappingCoreStaysStoreAgnostic(t *testing.T) {
	if testing.Short() {
		t.Skip("go list in short mode")
	}
	for _, pkg := range []string{"miniorm/internal/schema", "miniorm/internal/tracker", "miniorm/internal/relation"} {
		testutil.AssertNoTransitiveDependency(t, pkg, testutil.PackageImportForbidden("miniorm/pkg/store"), pkg+" must not reach the store")
		testutil.AssertNoTransitiveDependency(t, pkg, testutil.DriverImportForbidden, pkg+" must not reach a driver")
	}
}
