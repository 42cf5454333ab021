package feedback

import (
	"errors"
	"fmt"
	"strings"
)

const (
	DefaultDirnameSuffix   = "_assignsubmission_file_"
	DefaultSolutionPrefix  = "solution-"
	DefaultOutputDirectory = "uploaded"
)

var (
	// ErrMissingAssignment means no assignment id was given or configured.
	ErrMissingAssignment = errors.New("must provide assignment name:\nnbgrader zip_release_feedback ASSIGNMENT")

	// ErrTooManyArguments means more positional arguments than the command accepts.
	ErrTooManyArguments = errors.New("too many arguments")

	// ErrInvalidOption wraps every option validation failure.
	ErrInvalidOption = errors.New("invalid option")
)

// Options control how the feedback archive is laid out.
type Options struct {
	// DirnameSuffix is appended to each student id to form the folder name,
	// matching the layout LMS bulk uploads expect.
	DirnameSuffix string
	// SolutionPrefix is prepended to source notebooks copied next to feedback.
	SolutionPrefix string
	// OutputDirectory receives {assignment}-feedback.zip.
	OutputDirectory string
	// IncludeSource copies the release notebooks into every student folder.
	IncludeSource bool
}

// DefaultOptions returns the stock option set.
func DefaultOptions() Options {
	return Options{
		DirnameSuffix:   DefaultDirnameSuffix,
		SolutionPrefix:  DefaultSolutionPrefix,
		OutputDirectory: DefaultOutputDirectory,
		IncludeSource:   true,
	}
}

// Validate rejects options that would produce entries outside the student folder.
func (o Options) Validate() error {
	if strings.TrimSpace(o.OutputDirectory) == "" {
		return fmt.Errorf("%w: output_directory is empty", ErrInvalidOption)
	}
	if strings.ContainsAny(o.DirnameSuffix, `/\`) {
		return fmt.Errorf("%w: dirname_suffix %q contains a path separator", ErrInvalidOption, o.DirnameSuffix)
	}
	if strings.ContainsAny(o.SolutionPrefix, `/\`) {
		return fmt.Errorf("%w: solution_prefix %q contains a path separator", ErrInvalidOption, o.SolutionPrefix)
	}
	return nil
}

// AssignmentFromArgs picks the assignment id from the positional arguments.
// A single argument wins over the configured id; more than two is an error;
// otherwise the configured id must be set.
func AssignmentFromArgs(args []string, configured string) (string, error) {
	switch {
	case len(args) == 1:
		return args[0], nil
	case len(args) > 2:
		return "", ErrTooManyArguments
	case configured == "":
		return "", ErrMissingAssignment
	default:
		return configured, nil
	}
}
