package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/liuq/nbgrader/internal/gradebook"
)

func newDBCmd(g *globalFlags) *cobra.Command {
	db := &cobra.Command{
		Use:   "db",
		Short: "Manage the gradebook database",
	}
	student := &cobra.Command{
		Use:   "student",
		Short: "Manage students in the gradebook",
	}
	student.AddCommand(newStudentAddCmd(g), newStudentListCmd(g))
	db.AddCommand(student)
	return db
}

func newStudentAddCmd(g *globalFlags) *cobra.Command {
	var s gradebook.Student
	c := &cobra.Command{
		Use:   "add STUDENT_ID",
		Short: "Add a student, or update an existing one",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.settings(cmd)
			if err != nil {
				return err
			}
			s.ID = args[0]

			gb, err := gradebook.Create(cmd.Context(), settings.Course.DatabaseURL(), settings.Course.CourseID)
			if err != nil {
				return err
			}
			defer func() { _ = gb.Close() }()

			if err := gb.AddStudent(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added student %s\n", s.ID)
			return nil
		},
	}
	c.Flags().StringVar(&s.FirstName, "first-name", "", "First name")
	c.Flags().StringVar(&s.LastName, "last-name", "", "Last name")
	c.Flags().StringVar(&s.Email, "email", "", "Email address")
	c.Flags().StringVar(&s.LMSUserID, "lms-user-id", "", "LMS user id")
	return c
}

func newStudentListCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List students in gradebook order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := g.settings(cmd)
			if err != nil {
				return err
			}
			gb, err := gradebook.Open(cmd.Context(), settings.Course.DatabaseURL(), settings.Course.CourseID)
			if err != nil {
				return err
			}
			defer func() { _ = gb.Close() }()

			students, err := gb.Students(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tLAST NAME\tFIRST NAME\tEMAIL")
			for _, st := range students {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", st.ID, st.LastName, st.FirstName, st.Email)
			}
			return tw.Flush()
		},
	}
}
