package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssignmentFromArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []string
		configured string
		want       string
		err        error
	}{
		{"single argument", []string{"hw1"}, "", "hw1", nil},
		{"argument overrides config", []string{"hw2"}, "hw1", "hw2", nil},
		{"configured only", nil, "hw1", "hw1", nil},
		{"two arguments with config", []string{"a", "b"}, "hw1", "hw1", nil},
		{"nothing", nil, "", "", ErrMissingAssignment},
		{"two arguments without config", []string{"a", "b"}, "", "", ErrMissingAssignment},
		{"too many", []string{"a", "b", "c"}, "hw1", "", ErrTooManyArguments},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AssignmentFromArgs(tt.args, tt.configured)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, DefaultOptions().Validate())

	empty := DefaultOptions()
	empty.DirnameSuffix = ""
	empty.SolutionPrefix = ""
	assert.NoError(t, empty.Validate())

	for _, mutate := range []func(*Options){
		func(o *Options) { o.OutputDirectory = " " },
		func(o *Options) { o.DirnameSuffix = "_a/b" },
		func(o *Options) { o.SolutionPrefix = `sol\` },
	} {
		o := DefaultOptions()
		mutate(&o)
		assert.ErrorIs(t, o.Validate(), ErrInvalidOption)
	}
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, "_assignsubmission_file_", o.DirnameSuffix)
	assert.Equal(t, "solution-", o.SolutionPrefix)
	assert.Equal(t, "uploaded", o.OutputDirectory)
	assert.True(t, o.IncludeSource)
}
