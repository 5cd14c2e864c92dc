// Package softuni is the sample company domain shipped with the CLI:
// departments, employees, projects and the link table between the last two.
package softuni

// Department groups employees.
type Department struct {
	Id        int    `orm:"key"`
	Name      string `validate:"required,max=50"`
	Employees []*Employee
}

// Employee belongs to one department and works on any number of projects.
type Employee struct {
	Id           int     `orm:"key"`
	FirstName    string  `validate:"required,max=50"`
	MiddleName   *string `validate:"omitempty,max=50"`
	LastName     string  `validate:"required,max=50"`
	IsEmployed   bool
	DepartmentId int `orm:"fk=Department"`
	Department   *Department

	EmployeesProjects []*EmployeeProject
	Projects          []*Project `orm:"via=EmployeeProject"`
}

// FullName joins the name parts that are set.
func (e *Employee) FullName() string {
	if e.MiddleName != nil && *e.MiddleName != "" {
		return e.FirstName + " " + *e.MiddleName + " " + e.LastName
	}
	return e.FirstName + " " + e.LastName
}

// Project is worked on by employees.
type Project struct {
	Id        int    `orm:"key"`
	Name      string `validate:"required,max=50"`
	Employees []*Employee `orm:"via=EmployeeProject"`
}

// EmployeeProject links an employee to a project.
type EmployeeProject struct {
	EmployeeId int `orm:"key,fk=Employee"`
	ProjectId  int `orm:"key,fk=Project"`
	Employee   *Employee
	Project    *Project
}
