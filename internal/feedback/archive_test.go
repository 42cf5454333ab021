package feedback

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuq/nbgrader/internal/coursedir"
	"github.com/liuq/nbgrader/internal/fsutil"
	"github.com/liuq/nbgrader/internal/gradebook"
)

type fakeGradebook struct {
	ids    []string
	err    error
	closed bool
}

func (f *fakeGradebook) Students(ctx context.Context) ([]gradebook.Student, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]gradebook.Student, len(f.ids))
	for i, id := range f.ids {
		out[i] = gradebook.Student{ID: id}
	}
	return out, nil
}

func (f *fakeGradebook) Close() error {
	f.closed = true
	return nil
}

func newCourseFS(t *testing.T, files map[string]string) billy.Filesystem {
	t.Helper()
	fs := memfs.New()
	for name, content := range files {
		require.NoError(t, fs.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, util.WriteFile(fs, name, []byte(content), 0o644))
	}
	return fs
}

func newTestArchiver(fs billy.Filesystem, gb *fakeGradebook, opts Options) *Archiver {
	course := coursedir.New("course")
	course.AssignmentID = "hw1"
	a := NewArchiver(fs, course, opts)
	a.OpenGradebook = func(ctx context.Context) (StudentSource, error) { return gb, nil }
	return a
}

// readArchive returns the archive's entries keyed by name.
func readArchive(t *testing.T, fs billy.Filesystem, name string) map[string]string {
	t.Helper()
	info, err := fs.Stat(name)
	require.NoError(t, err)
	f, err := fs.Open(name)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	zr, err := zip.NewReader(f, info.Size())
	require.NoError(t, err)

	entries := make(map[string]string, len(zr.File))
	for _, zf := range zr.File {
		assert.Equal(t, zip.Deflate, zf.Method, zf.Name)
		rc, err := zf.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		_ = rc.Close()
		entries[zf.Name] = string(data)
	}
	return entries
}

func names(entries map[string]string) []string {
	out := make([]string, 0, len(entries))
	for n := range entries {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func TestRun_AliceAndBob(t *testing.T) {
	fs := newCourseFS(t, map[string]string{
		"course/feedback/alice/hw1/report.html": "<p>well done</p>",
		"course/source/hw1/hw1.ipynb":           `{"cells": []}`,
	})
	gb := &fakeGradebook{ids: []string{"alice", "bob"}}
	a := newTestArchiver(fs, gb, DefaultOptions())

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, gb.closed)
	assert.Equal(t, filepath.Join("uploaded", "hw1-feedback.zip"), res.ArchivePath)
	assert.Equal(t, []string{"alice"}, res.Included)
	assert.Equal(t, []string{"bob"}, res.Skipped)

	entries := readArchive(t, fs, res.ArchivePath)
	assert.Equal(t, []string{
		"alice_assignsubmission_file_/report.html",
		"alice_assignsubmission_file_/solution-hw1.ipynb",
	}, names(entries))
	assert.Equal(t, "<p>well done</p>", entries["alice_assignsubmission_file_/report.html"])
	assert.Equal(t, `{"cells": []}`, entries["alice_assignsubmission_file_/solution-hw1.ipynb"])
}

func TestRun_FeedbackSelection(t *testing.T) {
	fs := newCourseFS(t, map[string]string{
		"course/feedback/alice/hw1/p1.html":      "1",
		"course/feedback/alice/hw1/deep/p2.html": "2",
		"course/feedback/alice/hw1/p1.ipynb":     "nb",
		"course/feedback/alice/hw2/other.html":   "other assignment",
		"course/feedback/carol/hw1/only.html":    "c",
		"course/source/hw1/a.ipynb":              "a",
		"course/source/hw1/b.ipynb":              "b",
		"course/source/hw1/data.csv":             "csv",
		"course/source/hw1/nested/ignored.ipynb": "x",
	})
	gb := &fakeGradebook{ids: []string{"alice", "bob", "carol"}}
	a := newTestArchiver(fs, gb, DefaultOptions())

	res, err := a.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"alice_assignsubmission_file_/p1.html",
		"alice_assignsubmission_file_/p2.html",
		"alice_assignsubmission_file_/solution-a.ipynb",
		"alice_assignsubmission_file_/solution-b.ipynb",
		"carol_assignsubmission_file_/only.html",
		"carol_assignsubmission_file_/solution-a.ipynb",
		"carol_assignsubmission_file_/solution-b.ipynb",
	}, names(readArchive(t, fs, res.ArchivePath)))
	assert.Len(t, res.Entries, 7)
	assert.Equal(t, []string{"alice", "carol"}, res.Included)
}

func TestRun_WithoutSource(t *testing.T) {
	fs := newCourseFS(t, map[string]string{
		"course/feedback/alice/hw1/report.html": "r",
		"course/source/hw1/hw1.ipynb":           "nb",
	})
	opts := DefaultOptions()
	opts.IncludeSource = false
	a := newTestArchiver(fs, &fakeGradebook{ids: []string{"alice"}}, opts)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice_assignsubmission_file_/report.html"}, names(readArchive(t, fs, res.ArchivePath)))
}

func TestRun_CustomNames(t *testing.T) {
	fs := newCourseFS(t, map[string]string{
		"course/feedback/alice/hw1/report.html": "r",
		"course/source/hw1/hw1.ipynb":           "nb",
	})
	opts := Options{
		DirnameSuffix:   "",
		SolutionPrefix:  "key_",
		OutputDirectory: "out/lms",
		IncludeSource:   true,
	}
	a := newTestArchiver(fs, &fakeGradebook{ids: []string{"alice"}}, opts)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("out/lms", "hw1-feedback.zip"), res.ArchivePath)
	assert.Equal(t, []string{"alice/key_hw1.ipynb", "alice/report.html"}, names(readArchive(t, fs, res.ArchivePath)))
}

func TestRun_EmptyArchive(t *testing.T) {
	fs := newCourseFS(t, map[string]string{
		"course/source/hw1/hw1.ipynb": "nb",
	})
	a := newTestArchiver(fs, &fakeGradebook{ids: []string{"alice", "bob"}}, DefaultOptions())

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Included)
	assert.Empty(t, readArchive(t, fs, res.ArchivePath), "sources are never included alone")
}

func TestRun_Idempotent(t *testing.T) {
	fs := newCourseFS(t, map[string]string{
		"course/feedback/alice/hw1/report.html": "r",
		"course/feedback/bob/hw1/report.html":   "r",
		"course/source/hw1/hw1.ipynb":           "nb",
	})
	a := newTestArchiver(fs, &fakeGradebook{ids: []string{"alice", "bob"}}, DefaultOptions())

	first, err := a.Run(context.Background())
	require.NoError(t, err)
	firstNames := names(readArchive(t, fs, first.ArchivePath))

	second, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, firstNames, names(readArchive(t, fs, second.ArchivePath)))
	assert.Equal(t, first.Entries, second.Entries)
}

func TestRun_OutputDirectory(t *testing.T) {
	fs := newCourseFS(t, map[string]string{
		"course/feedback/alice/hw1/report.html": "r",
		"course/source/hw1/hw1.ipynb":           "nb",
	})
	a := newTestArchiver(fs, &fakeGradebook{ids: []string{"alice"}}, DefaultOptions())

	assert.False(t, fsutil.CheckDirectory(fs, "uploaded", true, true))
	_, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, fsutil.CheckDirectory(fs, "uploaded", true, true))

	created, err := fsutil.EnsureDirectory(fs, "uploaded")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = a.Run(context.Background())
	require.NoError(t, err)
}

func TestRun_Errors(t *testing.T) {
	t.Run("missing assignment", func(t *testing.T) {
		fs := memfs.New()
		gb := &fakeGradebook{}
		a := newTestArchiver(fs, gb, DefaultOptions())
		a.Course.AssignmentID = ""

		_, err := a.Run(context.Background())
		assert.ErrorIs(t, err, ErrMissingAssignment)
		assert.False(t, gb.closed, "gradebook is never opened")
		_, statErr := fs.Stat("uploaded")
		assert.True(t, errors.Is(statErr, os.ErrNotExist), "no I/O before validation")
	})

	t.Run("invalid options", func(t *testing.T) {
		opts := DefaultOptions()
		opts.SolutionPrefix = "../"
		a := newTestArchiver(memfs.New(), &fakeGradebook{}, opts)

		_, err := a.Run(context.Background())
		assert.ErrorIs(t, err, ErrInvalidOption)
	})

	t.Run("gradebook failure still finalizes archive", func(t *testing.T) {
		fs := memfs.New()
		boom := errors.New("database is locked")
		gb := &fakeGradebook{err: boom}
		a := newTestArchiver(fs, gb, DefaultOptions())

		_, err := a.Run(context.Background())
		assert.ErrorIs(t, err, boom)
		assert.True(t, gb.closed)
		assert.Empty(t, readArchive(t, fs, a.ArchivePath()))
	})

	t.Run("gradebook open failure", func(t *testing.T) {
		a := newTestArchiver(memfs.New(), nil, DefaultOptions())
		boom := errors.New("no such database")
		a.OpenGradebook = func(ctx context.Context) (StudentSource, error) { return nil, boom }

		_, err := a.Run(context.Background())
		assert.ErrorIs(t, err, boom)
	})

	t.Run("missing source directory", func(t *testing.T) {
		fs := newCourseFS(t, map[string]string{
			"course/feedback/alice/hw1/report.html": "r",
		})
		a := newTestArchiver(fs, &fakeGradebook{ids: []string{"alice"}}, DefaultOptions())

		_, err := a.Run(context.Background())
		require.Error(t, err)
	})

	t.Run("cancelled context", func(t *testing.T) {
		fs := newCourseFS(t, map[string]string{
			"course/feedback/alice/hw1/report.html": "r",
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		a := newTestArchiver(fs, &fakeGradebook{ids: []string{"alice"}}, DefaultOptions())

		_, err := a.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestRun_SQLiteGradebook(t *testing.T) {
	root := t.TempDir()
	course := coursedir.New(root)
	course.AssignmentID = "hw1"
	course.CourseID = "course101"

	gb, err := gradebook.Create(context.Background(), course.DatabaseURL(), course.CourseID)
	require.NoError(t, err)
	for _, id := range []string{"alice", "bob"} {
		require.NoError(t, gb.AddStudent(context.Background(), gradebook.Student{ID: id}))
	}
	require.NoError(t, gb.Close())

	for name, content := range map[string]string{
		filepath.Join(root, "feedback", "bob", "hw1", "report.html"): "bob",
		filepath.Join(root, "source", "hw1", "hw1.ipynb"):            "nb",
	} {
		require.NoError(t, os.MkdirAll(filepath.Dir(name), 0o755))
		require.NoError(t, os.WriteFile(name, []byte(content), 0o644))
	}

	opts := DefaultOptions()
	opts.OutputDirectory = filepath.Join(root, "uploaded")
	a := NewArchiver(fsutil.NewOS(), course, opts)

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"bob"}, res.Included)

	zr, err := zip.OpenReader(filepath.Join(root, "uploaded", "hw1-feedback.zip"))
	require.NoError(t, err)
	defer func() { _ = zr.Close() }()

	var got []string
	for _, f := range zr.File {
		got = append(got, f.Name)
	}
	assert.Equal(t, []string{
		"bob_assignsubmission_file_/report.html",
		"bob_assignsubmission_file_/solution-hw1.ipynb",
	}, got)
}

func TestRun_SymlinkedFeedback(t *testing.T) {
	root := t.TempDir()
	course := coursedir.New(root)
	course.AssignmentID = "hw1"

	rendered := filepath.Join(root, "rendered", "alice.html")
	hw := filepath.Join(root, "feedback", "alice", "hw1")
	require.NoError(t, os.MkdirAll(filepath.Dir(rendered), 0o755))
	require.NoError(t, os.MkdirAll(hw, 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "source", "hw1"), 0o755))
	require.NoError(t, os.WriteFile(rendered, []byte("<p>alice</p>"), 0o644))
	require.NoError(t, os.Symlink(rendered, filepath.Join(hw, "report.html")))

	opts := DefaultOptions()
	opts.OutputDirectory = filepath.Join(root, "uploaded")
	opts.IncludeSource = false
	a := NewArchiver(fsutil.NewOS(), course, opts)
	a.OpenGradebook = func(ctx context.Context) (StudentSource, error) {
		return &fakeGradebook{ids: []string{"alice"}}, nil
	}

	res, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice"}, res.Included)
	assert.Empty(t, res.Skipped)

	entries := readArchive(t, fsutil.NewOS(), a.ArchivePath())
	assert.Equal(t, map[string]string{
		"alice_assignsubmission_file_/report.html": "<p>alice</p>",
	}, entries)
}
