package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/liuq/nbgrader/internal/feedback"
	"github.com/liuq/nbgrader/internal/fsutil"
)

type zipReleaseFeedbackFlags struct {
	assignment      string
	dirnameSuffix   string
	solutionPrefix  string
	outputDirectory string
	includeSource   bool
}

func newZipReleaseFeedbackCmd(g *globalFlags) *cobra.Command {
	f := &zipReleaseFeedbackFlags{}
	c := &cobra.Command{
		Use:     "zip_release_feedback [ASSIGNMENT]",
		Aliases: []string{"zip-release-feedback"},
		Short:   "Release assignment's feedback to archive (zip file)",
		Long: `Releases assignment feedback to an archive (zip) file to be uploaded
to a LMS. For the usage of instructors.

Every student with rendered feedback gets a folder named
{student_id}{dirname_suffix} holding the feedback documents and, unless
--include-source=false, the assignment's source notebooks prefixed with
{solution_prefix}. The archive is written to
{output_directory}/{assignment}-feedback.zip.`,
		Example: "  nbgrader zip_release_feedback hw1 --output-directory=uploaded",
		Args:    cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runZipReleaseFeedback(cmd, g, f, args)
		},
	}

	fl := c.Flags()
	fl.StringVar(&f.assignment, "assignment", "", "Assignment id (CourseDirectory.assignment_id)")
	fl.StringVar(&f.dirnameSuffix, "dirname-suffix", feedback.DefaultDirnameSuffix, "The suffix to be appended to the dirnames of each student")
	fl.StringVar(&f.solutionPrefix, "solution-prefix", feedback.DefaultSolutionPrefix, "The prefix to be appended to the solution notebook if included")
	fl.StringVar(&f.outputDirectory, "output-directory", feedback.DefaultOutputDirectory, "The directory that will contain the assignment feedback zip archive")
	fl.BoolVar(&f.includeSource, "include-source", true, "Whether or not to include the source in the feedback zip archive")
	return c
}

func runZipReleaseFeedback(cmd *cobra.Command, g *globalFlags, f *zipReleaseFeedbackFlags, args []string) error {
	s, err := g.settings(cmd)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("assignment") {
		s.Course.AssignmentID = f.assignment
	}
	if flags.Changed("dirname-suffix") {
		s.Feedback.DirnameSuffix = f.dirnameSuffix
	}
	if flags.Changed("solution-prefix") {
		s.Feedback.SolutionPrefix = f.solutionPrefix
	}
	if flags.Changed("output-directory") {
		s.Feedback.OutputDirectory = f.outputDirectory
	}
	if flags.Changed("include-source") {
		s.Feedback.IncludeSource = f.includeSource
	}

	s.Course.AssignmentID, err = feedback.AssignmentFromArgs(args, s.Course.AssignmentID)
	if err != nil {
		return err
	}
	if err := s.Validate(); err != nil {
		return err
	}

	// The host filesystem is bound at "/", so every path must be absolute.
	if s.Course.Root, err = filepath.Abs(s.Course.Root); err != nil {
		return fmt.Errorf("resolve course root: %w", err)
	}
	if s.Feedback.OutputDirectory, err = filepath.Abs(s.Feedback.OutputDirectory); err != nil {
		return fmt.Errorf("resolve output directory: %w", err)
	}

	archiver := feedback.NewArchiver(fsutil.NewOS(), s.Course, s.Feedback)
	res, err := archiver.Run(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d students, %d files, %d without feedback)\n",
		res.ArchivePath, len(res.Included), len(res.Entries), len(res.Skipped))
	return nil
}
