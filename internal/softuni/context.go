package softuni

import (
	"context"
	"embed"
	"fmt"

	"miniorm/pkg/orm"
	"miniorm/pkg/store"
)

//go:embed schema
var schemaFS embed.FS

// Context is the typed ORM context of the sample domain. Sets are saved in
// declaration order, parents first.
type Context struct {
	*orm.Context

	Departments       *orm.Set[Department]
	Employees         *orm.Set[Employee]
	Projects          *orm.Set[Project]
	EmployeesProjects *orm.Set[EmployeeProject]
}

// Open loads the whole sample domain from db.
func Open(ctx context.Context, db *store.DB, opts ...orm.Option) (*Context, error) {
	c := &Context{}
	oc, err := orm.Open(ctx, db, c, opts...)
	if err != nil {
		return nil, err
	}
	c.Context = oc
	return c, nil
}

// Schema returns the DDL script for dialect.
func Schema(d store.Dialect) (string, error) {
	b, err := schemaFS.ReadFile("schema/" + d.Name() + ".sql")
	if err != nil {
		return "", fmt.Errorf("no schema for %s: %w", d.Name(), err)
	}
	return string(b), nil
}

// Bootstrap creates the sample tables when they do not exist yet.
func Bootstrap(ctx context.Context, db *store.DB) error {
	ddl, err := Schema(db.Dialect())
	if err != nil {
		return err
	}
	return db.ApplyScript(ctx, ddl)
}

// Department returns the department called name.
func (c *Context) Department(name string) (*Department, bool) {
	for d := range c.Departments.All() {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

// Project returns the project called name.
func (c *Context) Project(name string) (*Project, bool) {
	for p := range c.Projects.All() {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// Employee returns the employee with the given id.
func (c *Context) Employee(id int) (*Employee, bool) {
	for e := range c.Employees.All() {
		if e.Id == id {
			return e, true
		}
	}
	return nil, false
}

// Hire adds an employed person to the named department, or to the first
// department when name is empty. The change is pending until SaveChanges.
func (c *Context) Hire(first, last, department string) (*Employee, error) {
	var dept *Department
	if department == "" {
		d, ok := c.Departments.First()
		if !ok {
			return nil, fmt.Errorf("hire %s %s: no departments", first, last)
		}
		dept = d
	} else {
		d, ok := c.Department(department)
		if !ok {
			return nil, fmt.Errorf("hire %s %s: unknown department %q", first, last, department)
		}
		dept = d
	}
	e := &Employee{FirstName: first, LastName: last, IsEmployed: true, Department: dept}
	if err := c.Employees.Add(e); err != nil {
		return nil, err
	}
	return e, nil
}

// Fire marks the employee as no longer employed and drops their project
// assignments. The change is pending until SaveChanges.
func (c *Context) Fire(id int) (*Employee, error) {
	e, ok := c.Employee(id)
	if !ok {
		return nil, fmt.Errorf("fire: no employee with id %d", id)
	}
	e.IsEmployed = false
	c.EmployeesProjects.RemoveRange(e.EmployeesProjects)
	return e, nil
}

// Counts returns the stored row count of every table of the domain.
func (c *Context) Counts(ctx context.Context) (map[string]int64, error) {
	sess, err := c.Store().Session(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()
	out := make(map[string]int64, 4)
	for _, table := range []string{c.Departments.Table(), c.Employees.Table(), c.Projects.Table(), c.EmployeesProjects.Table()} {
		n, err := sess.Count(ctx, table)
		if err != nil {
			return nil, err
		}
		out[table] = n
	}
	return out, nil
}
