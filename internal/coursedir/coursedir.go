// Package coursedir describes the directory layout of an nbgrader course.
//
// Every course lives under a single root:
//
//	{root}/source/{assignment_id}/                  <- release notebooks
//	{root}/feedback/{student_id}/{assignment_id}/   <- rendered feedback
//	{root}/gradebook.db                             <- default gradebook
package coursedir

import (
	"path/filepath"
	"strings"
)

const (
	DefaultSourceDirectory   = "source"
	DefaultFeedbackDirectory = "feedback"
	DefaultCourseID          = "default_course"
	DefaultGradebookName     = "gradebook.db"
)

// CourseDirectory holds the paths and identifiers for one run.
// It is treated as immutable once a command starts.
type CourseDirectory struct {
	Root              string
	SourceDirectory   string
	FeedbackDirectory string
	AssignmentID      string
	CourseID          string
	DBURL             string
}

// New returns a CourseDirectory rooted at root with nbgrader's defaults.
func New(root string) CourseDirectory {
	if root == "" {
		root = "."
	}
	return CourseDirectory{
		Root:              root,
		SourceDirectory:   DefaultSourceDirectory,
		FeedbackDirectory: DefaultFeedbackDirectory,
		CourseID:          DefaultCourseID,
	}
}

// FormatPath builds {root}/{step}/{studentID}/{assignmentID}.
// A studentID of "." collapses, which is how the source tree is addressed.
func (c CourseDirectory) FormatPath(step, studentID, assignmentID string) string {
	return filepath.Join(c.Root, step, studentID, assignmentID)
}

// FeedbackPath is the feedback directory of one student for the active assignment.
func (c CourseDirectory) FeedbackPath(studentID string) string {
	return c.FormatPath(c.FeedbackDirectory, studentID, c.AssignmentID)
}

// SourcePath is the release directory of the active assignment.
func (c CourseDirectory) SourcePath() string {
	return c.FormatPath(c.SourceDirectory, ".", c.AssignmentID)
}

// DatabaseURL returns the configured gradebook URL, defaulting to a sqlite
// file inside the course root.
func (c CourseDirectory) DatabaseURL() string {
	if strings.TrimSpace(c.DBURL) != "" {
		return c.DBURL
	}
	root, err := filepath.Abs(c.Root)
	if err != nil {
		root = c.Root
	}
	return "sqlite:///" + filepath.ToSlash(filepath.Join(root, DefaultGradebookName))
}
