package main

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"miniorm/internal/softuni"
)

func (a *app) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the sample tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := a.store()
			if err != nil {
				return err
			}
			if err := softuni.Bootstrap(cmd.Context(), db); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema applied (%s)\n", db.Dialect().Name())
			return err
		},
	}
}

func (a *app) seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add fixture data",
		Long:  "Add departments, projects and employees from a YAML fixture file, or from\nthe bundled sample data when --file is not given. Existing departments and\nprojects are matched by name.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fixtures, err := loadFixtures(file)
			if err != nil {
				return err
			}
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			sum, err := fixtures.Apply(c)
			if err != nil {
				return err
			}
			if err := c.SaveChanges(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d departments, %d projects, %d employees, %d assignments\n",
				sum.Departments, sum.Projects, sum.Employees, sum.Links)
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "YAML fixture file")
	return cmd
}

func loadFixtures(file string) (*softuni.Fixtures, error) {
	if file == "" {
		return softuni.SampleFixtures()
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open fixtures: %w", err)
	}
	defer func() { _ = f.Close() }()
	return softuni.LoadFixtures(f)
}

func (a *app) showCmd() *cobra.Command {
	var dump bool
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List departments with their employees and projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if dump {
				cfg := spew.ConfigState{Indent: "  ", MaxDepth: 4, DisablePointerAddresses: true, SortKeys: true}
				cfg.Fdump(out, c.Departments.Slice())
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for d := range c.Departments.All() {
				fmt.Fprintf(tw, "%s (#%d)\n", d.Name, d.Id)
				for _, e := range d.Employees {
					status := "employed"
					if !e.IsEmployed {
						status = "former"
					}
					fmt.Fprintf(tw, "  #%d\t%s\t%s\t%s\n", e.Id, e.FullName(), status, projectNames(e))
				}
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&dump, "dump", false, "dump the loaded entity graph")
	return cmd
}

func projectNames(e *softuni.Employee) string {
	names := make([]string, 0, len(e.Projects))
	for _, p := range e.Projects {
		names = append(names, p.Name)
	}
	slices.Sort(names)
	return strings.Join(names, ", ")
}

func (a *app) hireCmd() *cobra.Command {
	var first, last, department string
	cmd := &cobra.Command{
		Use:   "hire",
		Short: "Add an employee to a department",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			e, err := c.Hire(first, last, department)
			if err != nil {
				return err
			}
			if err := c.SaveChanges(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "hired %s (#%d) into %s\n", e.FullName(), e.Id, e.Department.Name)
			return err
		},
	}
	cmd.Flags().StringVar(&first, "first", "", "first name")
	cmd.Flags().StringVar(&last, "last", "", "last name")
	cmd.Flags().StringVar(&department, "department", "", "department name; defaults to the first department")
	_ = cmd.MarkFlagRequired("first")
	_ = cmd.MarkFlagRequired("last")
	return cmd
}

func (a *app) fireCmd() *cobra.Command {
	var id int
	cmd := &cobra.Command{
		Use:   "fire",
		Short: "Mark an employee as no longer employed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			e, err := c.Fire(id)
			if err != nil {
				return err
			}
			if err := c.SaveChanges(cmd.Context()); err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "fired %s (#%d)\n", e.FullName(), e.Id)
			return err
		},
	}
	cmd.Flags().IntVar(&id, "id", 0, "employee id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print row counts per table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			counts, err := c.Counts(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, table := range slices.Sorted(maps.Keys(counts)) {
				fmt.Fprintf(tw, "%s\t%d\n", table, counts[table])
			}
			return tw.Flush()
		},
	}
}
