package orm_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniorm/pkg/store"
)

const companyDDL = `
CREATE TABLE "Departments" (
	"Id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"Name" TEXT NOT NULL
);
CREATE TABLE "Employees" (
	"Id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"FirstName" TEXT NOT NULL,
	"LastName" TEXT NOT NULL,
	"MiddleName" TEXT NULL,
	"DepartmentId" INTEGER NOT NULL REFERENCES "Departments" ("Id")
);
CREATE TABLE "Projects" (
	"Id" INTEGER PRIMARY KEY AUTOINCREMENT,
	"Name" TEXT NOT NULL
);
CREATE TABLE "EmployeesProjects" (
	"EmployeeId" INTEGER NOT NULL REFERENCES "Employees" ("Id"),
	"ProjectId" INTEGER NOT NULL REFERENCES "Projects" ("Id"),
	PRIMARY KEY ("EmployeeId", "ProjectId")
);
INSERT INTO "Departments" ("Name") VALUES ('Engineering'), ('Sales');
INSERT INTO "Employees" ("FirstName", "LastName", "DepartmentId") VALUES ('Ana', 'Ivanova', 1);
INSERT INTO "Projects" ("Name") VALUES ('Apollo');
INSERT INTO "EmployeesProjects" ("EmployeeId", "ProjectId") VALUES (1, 1);
`

func openSQLite(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open("sqlite", filepath.Join(t.TempDir(), "company.db"))
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyScript(context.Background(), companyDDL))
	return db
}

func TestSQLiteRoundTrip(t *testing.T) {
	db := openSQLite(t)
	c, ctx := openCompany(t, db)

	var sales *Department
	for d := range c.Departments.All() {
		if d.Name == "Sales" {
			sales = d
		}
	}
	require.NotNil(t, sales)
	middle := "Todorov"
	pesho := &Employee{FirstName: "Pesho", MiddleName: &middle, LastName: "Petrov", DepartmentId: sales.Id}
	require.NoError(t, c.Employees.Add(pesho))
	apollo, _ := c.Projects.First()
	require.NoError(t, c.EmployeesProjects.Add(&EmployeeProject{Employee: pesho, Project: apollo}))
	require.NoError(t, ctx.SaveChanges(context.Background()))
	assert.Equal(t, 2, pesho.Id)

	again, _ := openCompany(t, db)
	var loaded *Employee
	for e := range again.Employees.All() {
		if e.FirstName == "Pesho" {
			loaded = e
		}
	}
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.Department)
	assert.Equal(t, "Sales", loaded.Department.Name)
	assert.Contains(t, loaded.Department.Employees, loaded)
	require.NotNil(t, loaded.MiddleName)
	assert.Equal(t, "Todorov", *loaded.MiddleName)
	require.Len(t, loaded.Projects, 1)
	assert.Equal(t, "Apollo", loaded.Projects[0].Name)
}

func TestSQLiteConstraintViolationRollsBack(t *testing.T) {
	db := openSQLite(t)
	c, ctx := openCompany(t, db)

	require.NoError(t, c.Projects.Add(&Project{Name: "Gemini"}))
	require.NoError(t, c.Employees.Add(&Employee{FirstName: "Ghost", LastName: "X", DepartmentId: 42}))
	err := ctx.SaveChanges(context.Background())
	require.Error(t, err)

	again, _ := openCompany(t, db)
	assert.Equal(t, 1, again.Employees.Len())
	assert.Equal(t, 1, again.Projects.Len())
}
