// Package feedback builds the per-assignment feedback archive that is
// uploaded to a learning-management system.
//
// The archive holds one folder per student with feedback:
//
//	{student_id}{dirname_suffix}/{feedback}.html
//	{student_id}{dirname_suffix}/{solution_prefix}{notebook}.ipynb   (include_source)
package feedback

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/flate"

	"github.com/liuq/nbgrader/internal/coursedir"
	"github.com/liuq/nbgrader/internal/fsutil"
	"github.com/liuq/nbgrader/internal/gradebook"
)

// StudentSource is the slice of the gradebook the archiver needs.
type StudentSource interface {
	Students(ctx context.Context) ([]gradebook.Student, error)
	Close() error
}

// Entry is one file written into the archive.
type Entry struct {
	Source string // path on the course filesystem
	Name   string // path inside the archive
}

// Result summarises a finished run.
type Result struct {
	ArchivePath string
	Entries     []Entry
	Included    []string // students with a folder in the archive
	Skipped     []string // students without feedback
}

// Archiver collects feedback for one assignment into a zip archive.
type Archiver struct {
	FS      billy.Filesystem
	Course  coursedir.CourseDirectory
	Options Options
	Logger  *slog.Logger

	// OpenGradebook acquires the student list for the run. Nil opens the
	// course gradebook read-only.
	OpenGradebook func(ctx context.Context) (StudentSource, error)
}

// NewArchiver returns an Archiver over fs with the given course and options.
func NewArchiver(fs billy.Filesystem, course coursedir.CourseDirectory, opts Options) *Archiver {
	return &Archiver{
		FS:      fs,
		Course:  course,
		Options: opts,
		Logger:  slog.Default(),
	}
}

// ArchivePath is where the archive is written.
func (a *Archiver) ArchivePath() string {
	return filepath.Join(a.Options.OutputDirectory, a.Course.AssignmentID+"-feedback.zip")
}

// StudentDirname is the folder a student's files are placed in.
func (a *Archiver) StudentDirname(studentID string) string {
	return studentID + a.Options.DirnameSuffix
}

// Run builds the archive. The gradebook and the archive are released on
// every path; a failed run can leave an incomplete archive behind.
func (a *Archiver) Run(ctx context.Context) (res *Result, err error) {
	if a.Course.AssignmentID == "" {
		return nil, ErrMissingAssignment
	}
	if err := a.Options.Validate(); err != nil {
		return nil, err
	}
	log := a.logger()

	created, err := fsutil.EnsureDirectory(a.FS, a.Options.OutputDirectory)
	if err != nil {
		return nil, err
	}
	if created {
		log.Warn("directory not found, created it", "path", a.Options.OutputDirectory)
	}

	gb, err := a.openGradebook(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { err = errors.Join(err, gb.Close()) }()

	res = &Result{ArchivePath: a.ArchivePath()}
	f, err := a.FS.Create(res.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("create archive %s: %w", res.ArchivePath, err)
	}
	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.DefaultCompression)
	})
	defer func() {
		if cerr := zw.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("finalize archive: %w", cerr))
		}
		if cerr := f.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close archive: %w", cerr))
		}
	}()

	students, err := gb.Students(ctx)
	if err != nil {
		return res, err
	}

	var notebooks []string
	notebooksLoaded := false
	for _, s := range students {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		files, err := fsutil.FindAllFiles(a.FS, a.Course.FeedbackPath(s.ID))
		if err != nil {
			return res, err
		}
		files = fsutil.FilterSuffix(files, fsutil.FeedbackExt)
		if len(files) == 0 {
			log.Debug("no feedback, skipping student", "student", s.ID)
			res.Skipped = append(res.Skipped, s.ID)
			continue
		}

		dirname := a.StudentDirname(s.ID)
		for _, fn := range files {
			if err := a.add(zw, res, fn, path.Join(dirname, filepath.Base(fn))); err != nil {
				return res, err
			}
		}

		if a.Options.IncludeSource {
			if !notebooksLoaded {
				notebooks, err = fsutil.FindAllNotebooks(a.FS, a.Course.SourcePath())
				if err != nil {
					return res, err
				}
				notebooksLoaded = true
			}
			for _, nb := range notebooks {
				src := filepath.Join(a.Course.SourcePath(), nb)
				if err := a.add(zw, res, src, path.Join(dirname, a.Options.SolutionPrefix+nb)); err != nil {
					return res, err
				}
			}
		}
		res.Included = append(res.Included, s.ID)
	}

	log.Info("feedback archive written",
		"archive", res.ArchivePath,
		"students", len(res.Included),
		"skipped", len(res.Skipped),
		"entries", len(res.Entries))
	return res, nil
}

func (a *Archiver) add(zw *zip.Writer, res *Result, src, name string) error {
	info, err := a.FS.Stat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", src, err)
	}
	hdr.Name = name
	hdr.Method = zip.Deflate

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", name, err)
	}
	in, err := a.FS.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	a.logger().Debug("added to archive", "entry", name)
	res.Entries = append(res.Entries, Entry{Source: src, Name: name})
	return nil
}

func (a *Archiver) openGradebook(ctx context.Context) (StudentSource, error) {
	if a.OpenGradebook != nil {
		return a.OpenGradebook(ctx)
	}
	return gradebook.Open(ctx, a.Course.DatabaseURL(), a.Course.CourseID)
}

func (a *Archiver) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
