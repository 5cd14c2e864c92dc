package softuni

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Fixtures is seed data keyed by names rather than ids, so it can be applied
// to an empty or a populated store alike.
type Fixtures struct {
	Departments []DepartmentFixture `yaml:"departments"`
	Projects    []ProjectFixture    `yaml:"projects"`
	Employees   []EmployeeFixture   `yaml:"employees"`
}

// DepartmentFixture seeds one department.
type DepartmentFixture struct {
	Name string `yaml:"name"`
}

// ProjectFixture seeds one project.
type ProjectFixture struct {
	Name string `yaml:"name"`
}

// EmployeeFixture seeds one employee and their project assignments.
type EmployeeFixture struct {
	FirstName  string   `yaml:"first_name"`
	MiddleName string   `yaml:"middle_name,omitempty"`
	LastName   string   `yaml:"last_name"`
	Department string   `yaml:"department"`
	Employed   bool     `yaml:"employed"`
	Projects   []string `yaml:"projects,omitempty"`
}

// LoadFixtures decodes YAML seed data.
func LoadFixtures(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	return &f, nil
}

// SampleFixtures returns the seed data bundled with the package.
func SampleFixtures() (*Fixtures, error) {
	file, err := schemaFS.Open("schema/sample.yaml")
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()
	return LoadFixtures(file)
}

// Summary counts what Apply added.
type Summary struct {
	Departments int
	Projects    int
	Employees   int
	Links       int
}

// Apply adds the fixtures to c. Departments and projects that already exist
// by name are reused. Nothing is written until SaveChanges.
func (f *Fixtures) Apply(c *Context) (Summary, error) {
	var s Summary
	for _, df := range f.Departments {
		if _, ok := c.Department(df.Name); ok {
			continue
		}
		if err := c.Departments.Add(&Department{Name: df.Name}); err != nil {
			return s, err
		}
		s.Departments++
	}
	for _, pf := range f.Projects {
		if _, ok := c.Project(pf.Name); ok {
			continue
		}
		if err := c.Projects.Add(&Project{Name: pf.Name}); err != nil {
			return s, err
		}
		s.Projects++
	}
	for _, ef := range f.Employees {
		dept, ok := c.Department(ef.Department)
		if !ok {
			return s, fmt.Errorf("employee %s %s: unknown department %q", ef.FirstName, ef.LastName, ef.Department)
		}
		e := &Employee{
			FirstName:  ef.FirstName,
			LastName:   ef.LastName,
			IsEmployed: ef.Employed,
			Department: dept,
		}
		if ef.MiddleName != "" {
			middle := ef.MiddleName
			e.MiddleName = &middle
		}
		if err := c.Employees.Add(e); err != nil {
			return s, err
		}
		s.Employees++
		for _, name := range ef.Projects {
			p, ok := c.Project(name)
			if !ok {
				return s, fmt.Errorf("employee %s %s: unknown project %q", ef.FirstName, ef.LastName, name)
			}
			if err := c.EmployeesProjects.Add(&EmployeeProject{Employee: e, Project: p}); err != nil {
				return s, err
			}
			s.Links++
		}
	}
	return s, nil
}
