package relation

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"miniorm/internal/schema"
)

type Department struct {
	Id        int `orm:"key"`
	Name      string
	Employees []*Employee
}

type Employee struct {
	Id                int `orm:"key"`
	Name              string
	DepartmentId      int  `orm:"fk=Department"`
	ManagerId         *int `orm:"fk=Manager"`
	Department        *Department
	Manager           *Employee
	EmployeesProjects []*EmployeeProject
	Projects          []*Project `orm:"via=EmployeeProject"`
}

type Project struct {
	Id        int `orm:"key"`
	Name      string
	Employees []*Employee `orm:"via=EmployeeProject"`
}

type EmployeeProject struct {
	EmployeeId int `orm:"key,fk=Employee"`
	ProjectId  int `orm:"key,fk=Project"`
	Employee   *Employee
	Project    *Project
}

var registry = schema.NewRegistry(schema.DefaultScalarTypes())

func source[T any](t *testing.T, set string, columns []string, entities ...*T) Source {
	t.Helper()
	m, err := registry.Inspect(reflect.TypeOf((*T)(nil)).Elem())
	require.NoError(t, err)
	d, err := schema.Bind(m, set, columns)
	require.NoError(t, err)
	values := make([]reflect.Value, len(entities))
	for i, e := range entities {
		values[i] = reflect.ValueOf(e)
	}
	return Source{Desc: d, Entities: values}
}

type fixture struct {
	departments []*Department
	employees   []*Employee
	projects    []*Project
	links       []*EmployeeProject
}

func newFixture() *fixture {
	boss := 1
	f := &fixture{
		departments: []*Department{{Id: 1, Name: "Engineering"}, {Id: 2, Name: "Sales"}, {Id: 3, Name: "Empty"}},
		employees: []*Employee{
			{Id: 1, Name: "Ana", DepartmentId: 1},
			{Id: 2, Name: "Boris", DepartmentId: 1, ManagerId: &boss},
			{Id: 3, Name: "Cveta", DepartmentId: 2, ManagerId: &boss},
		},
		projects: []*Project{{Id: 10, Name: "Apollo"}, {Id: 11, Name: "Gemini"}},
	}
	f.links = []*EmployeeProject{
		{EmployeeId: 2, ProjectId: 11},
		{EmployeeId: 1, ProjectId: 10},
		{EmployeeId: 2, ProjectId: 10},
		{EmployeeId: 1, ProjectId: 11},
	}
	return f
}

func (f *fixture) sources(t *testing.T) []Source {
	return []Source{
		source(t, "Departments", []string{"Id", "Name"}, f.departments...),
		source(t, "Employees", []string{"Id", "Name", "DepartmentId", "ManagerId"}, f.employees...),
		source(t, "Projects", []string{"Id", "Name"}, f.projects...),
		source(t, "EmployeesProjects", []string{"EmployeeId", "ProjectId"}, f.links...),
	}
}

func TestMapScalarForeignKeys(t *testing.T) {
	f := newFixture()
	require.NoError(t, Map(f.sources(t)))

	for _, e := range f.employees {
		require.NotNil(t, e.Department, "employee %s", e.Name)
		assert.Equal(t, e.DepartmentId, e.Department.Id)
		if e.ManagerId == nil {
			assert.Nil(t, e.Manager)
			continue
		}
		require.NotNil(t, e.Manager)
		assert.Equal(t, *e.ManagerId, e.Manager.Id)
	}
	assert.Same(t, f.departments[0], f.employees[1].Department)
	for _, l := range f.links {
		assert.Equal(t, l.EmployeeId, l.Employee.Id)
		assert.Equal(t, l.ProjectId, l.Project.Id)
	}
}

func TestMapOneToManyCounts(t *testing.T) {
	f := newFixture()
	require.NoError(t, Map(f.sources(t)))

	total := 0
	for _, d := range f.departments {
		require.NotNil(t, d.Employees, "collections are never left nil")
		for _, e := range d.Employees {
			assert.Equal(t, d.Id, e.DepartmentId)
		}
		total += len(d.Employees)
	}
	assert.Equal(t, len(f.employees), total)
	assert.Equal(t, []*Employee{f.employees[0], f.employees[1]}, f.departments[0].Employees)
	assert.Empty(t, f.departments[2].Employees)
}

func TestMapManyToMany(t *testing.T) {
	f := newFixture()
	require.NoError(t, Map(f.sources(t)))

	ana, boris, cveta := f.employees[0], f.employees[1], f.employees[2]
	apollo, gemini := f.projects[0], f.projects[1]

	assert.ElementsMatch(t, []*Project{apollo, gemini}, ana.Projects)
	assert.ElementsMatch(t, []*Project{gemini, apollo}, boris.Projects)
	assert.Empty(t, cveta.Projects)
	assert.ElementsMatch(t, []*Employee{ana, boris}, apollo.Employees)
	assert.ElementsMatch(t, []*Employee{ana, boris}, gemini.Employees)

	require.Len(t, ana.EmployeesProjects, 2)
	for _, l := range ana.EmployeesProjects {
		assert.Same(t, ana, l.Employee)
	}
}

func TestMapManyToManyIgnoresLinkOrder(t *testing.T) {
	for _, order := range [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {1, 3, 0, 2}} {
		f := newFixture()
		shuffled := make([]*EmployeeProject, len(order))
		for i, j := range order {
			shuffled[i] = f.links[j]
		}
		f.links = shuffled
		require.NoError(t, Map(f.sources(t)))
		assert.Len(t, f.employees[0].Projects, 2)
		assert.Len(t, f.projects[0].Employees, 2)
		assert.ElementsMatch(t, []*Project{f.projects[0], f.projects[1]}, f.employees[1].Projects)
	}
}

func TestMapRejectsOrphanForeignKey(t *testing.T) {
	f := newFixture()
	f.employees = append(f.employees, &Employee{Id: 4, Name: "Orphan", DepartmentId: 99})
	err := Map(f.sources(t))
	require.Error(t, err)
	var ie *IntegrityError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, "Employees", ie.Table)
	assert.Equal(t, "DepartmentId", ie.Column)
	assert.Equal(t, "Departments", ie.Target)
	assert.ErrorIs(t, err, ErrReferentialIntegrity)
}

func TestMapFirstMatchWins(t *testing.T) {
	f := newFixture()
	dup := &Department{Id: 1, Name: "Duplicate"}
	f.departments = append(f.departments, dup)
	require.NoError(t, Map(f.sources(t)))
	assert.Same(t, f.departments[0], f.employees[0].Department)
}

func TestMapConfigErrors(t *testing.T) {
	t.Run("missing target set", func(t *testing.T) {
		f := newFixture()
		srcs := f.sources(t)
		err := Map(srcs[1:])
		assert.ErrorIs(t, err, schema.ErrConfiguration)
	})

	t.Run("collection without back reference", func(t *testing.T) {
		type Tag struct {
			Id   int `orm:"key"`
			Name string
		}
		type Post struct {
			Id   int `orm:"key"`
			Tags []*Tag
		}
		err := Map([]Source{
			source(t, "Posts", []string{"Id"}, &Post{Id: 1}),
			source(t, "Tags", []string{"Id", "Name"}, &Tag{Id: 1}),
		})
		var cfg *schema.ConfigError
		require.True(t, errors.As(err, &cfg))
		assert.Equal(t, "Tags", cfg.Field)
	})

	t.Run("via a simple key type", func(t *testing.T) {
		type Owner struct {
			Id       int `orm:"key"`
			Projects []*Project `orm:"via=Project"`
		}
		err := Map([]Source{
			source(t, "Owners", []string{"Id"}, &Owner{Id: 1}),
			source(t, "Projects", []string{"Id", "Name"}, &Project{Id: 1}),
		})
		assert.ErrorIs(t, err, schema.ErrConfiguration)
	})
}

func withBaseline(src Source) Source {
	snaps := make(map[any][]any, len(src.Entities))
	for _, e := range src.Entities {
		snaps[e.Interface()] = src.Desc.Snapshot(e.Elem())
	}
	src.Baseline = func(e reflect.Value) ([]any, bool) {
		snap, ok := snaps[e.Interface()]
		return snap, ok
	}
	return src
}

func targets(srcs []Source, pending func(reflect.Value) bool) func(reflect.Type) (Target, bool) {
	return func(rt reflect.Type) (Target, bool) {
		for _, s := range srcs {
			if s.Desc.Type == rt {
				return Target{Desc: s.Desc, Entities: s.Entities, Pending: pending}, true
			}
		}
		return Target{}, false
	}
}

func TestSyncForeignKeysAndUndo(t *testing.T) {
	f := newFixture()
	srcs := f.sources(t)
	require.NoError(t, Map(srcs))

	ana := f.employees[0]
	ana.Department = f.departments[1]
	ana.Manager = f.employees[2]
	var undo Undo
	require.NoError(t, SyncForeignKeys(srcs[1], targets(srcs, nil), &undo))
	assert.Equal(t, 2, ana.DepartmentId)
	require.NotNil(t, ana.ManagerId)
	assert.Equal(t, 3, *ana.ManagerId)
	assert.Equal(t, 2, undo.size())

	undo.Revert()
	assert.Equal(t, 1, ana.DepartmentId)
	assert.Nil(t, ana.ManagerId)
	assert.Zero(t, undo.size())
}

func TestSyncSkipsPendingTargets(t *testing.T) {
	f := newFixture()
	srcs := f.sources(t)
	require.NoError(t, Map(srcs))

	fresh := &Department{Name: "New"}
	pending := func(e reflect.Value) bool { return e.Interface() == any(fresh) }
	f.employees[2].Department = fresh
	var undo Undo
	require.NoError(t, SyncForeignKeys(srcs[1], targets(srcs, pending), &undo))
	assert.Equal(t, 2, f.employees[2].DepartmentId)
	assert.Zero(t, undo.size())
}

func TestSyncCopiesZeroKeyOfPersistedTarget(t *testing.T) {
	f := newFixture()
	zero := &Department{Id: 0, Name: "Root"}
	f.departments = append(f.departments, zero)
	srcs := f.sources(t)
	require.NoError(t, Map(srcs))

	f.employees[0].Department = zero
	var undo Undo
	require.NoError(t, SyncForeignKeys(srcs[1], targets(srcs, nil), &undo))
	assert.Equal(t, 0, f.employees[0].DepartmentId)
	assert.Equal(t, 1, undo.size())
}

func TestSyncEditedForeignKeyRepointsReference(t *testing.T) {
	f := newFixture()
	srcs := f.sources(t)
	require.NoError(t, Map(srcs))
	employees := withBaseline(srcs[1])

	ana, boris, cveta := f.employees[0], f.employees[1], f.employees[2]
	ana.DepartmentId = 2
	three := 3
	boris.ManagerId = &three
	cveta.ManagerId = nil

	var undo Undo
	require.NoError(t, SyncForeignKeys(employees, targets(srcs, nil), &undo))
	assert.Equal(t, 2, ana.DepartmentId)
	assert.Same(t, f.departments[1], ana.Department)
	assert.Same(t, cveta, boris.Manager)
	assert.Nil(t, cveta.Manager)
	assert.Equal(t, 3, undo.size())

	undo.Revert()
	assert.Same(t, f.departments[0], ana.Department)
	assert.Equal(t, 2, ana.DepartmentId, "the edit itself is kept")
}

func TestSyncEditedForeignKeyWithoutMatchClearsReference(t *testing.T) {
	f := newFixture()
	srcs := f.sources(t)
	require.NoError(t, Map(srcs))

	f.employees[0].DepartmentId = 99
	var undo Undo
	require.NoError(t, SyncForeignKeys(withBaseline(srcs[1]), targets(srcs, nil), &undo))
	assert.Equal(t, 99, f.employees[0].DepartmentId)
	assert.Nil(t, f.employees[0].Department)
}

func TestSyncMovedReferenceWinsOverEditedForeignKey(t *testing.T) {
	f := newFixture()
	srcs := f.sources(t)
	require.NoError(t, Map(srcs))
	employees := withBaseline(srcs[1])

	ana := f.employees[0]
	ana.Department = f.departments[2]
	ana.DepartmentId = 2
	var undo Undo
	require.NoError(t, SyncForeignKeys(employees, targets(srcs, nil), &undo))
	assert.Equal(t, 3, ana.DepartmentId)
	assert.Same(t, f.departments[2], ana.Department)
}

func TestSyncUnchangedEntityIsLeftAlone(t *testing.T) {
	f := newFixture()
	srcs := f.sources(t)
	require.NoError(t, Map(srcs))

	var undo Undo
	require.NoError(t, SyncForeignKeys(withBaseline(srcs[1]), targets(srcs, nil), &undo))
	assert.Zero(t, undo.size())
}
