// Package config loads nbgrader configuration files and resolves the
// settings a command runs with.
//
// Precedence, lowest first: built-in defaults, the config file, flags the
// user set explicitly on the command line.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
	"gopkg.in/yaml.v3"

	"github.com/liuq/nbgrader/api"
	"github.com/liuq/nbgrader/internal/coursedir"
	"github.com/liuq/nbgrader/internal/feedback"
)

// DefaultFiles are looked up in the working directory when no file is given.
var DefaultFiles = []string{"nbgrader_config.json", "nbgrader_config.yaml", "nbgrader_config.yml"}

// Settings is the resolved configuration of one run.
type Settings struct {
	LogLevel slog.Level
	Course   coursedir.CourseDirectory
	Feedback feedback.Options
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		LogLevel: slog.LevelInfo,
		Course:   coursedir.New("."),
		Feedback: feedback.DefaultOptions(),
	}
}

// Find returns the first default config file present in dir, or "".
func Find(dir string) string {
	for _, name := range DefaultFiles {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Load reads a JSON or YAML config file.
func Load(path string) (*api.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		var cfg api.Config
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		return &cfg, nil
	default:
		return nil, fmt.Errorf("config %s: unsupported format %q", path, filepath.Ext(path))
	}
}

// jsonFields maps JSONPath expressions to the config field they fill.
var jsonFields = []struct {
	path string
	set  func(cfg *api.Config, v any) error
}{
	{"$.Application.log_level", func(c *api.Config, v any) error { return setLevelString(&c.Application.LogLevel, v) }},
	{"$.CourseDirectory.root", func(c *api.Config, v any) error { return setString(&c.CourseDirectory.Root, v) }},
	{"$.CourseDirectory.source_directory", func(c *api.Config, v any) error { return setString(&c.CourseDirectory.SourceDirectory, v) }},
	{"$.CourseDirectory.feedback_directory", func(c *api.Config, v any) error { return setString(&c.CourseDirectory.FeedbackDirectory, v) }},
	{"$.CourseDirectory.assignment_id", func(c *api.Config, v any) error { return setString(&c.CourseDirectory.AssignmentID, v) }},
	{"$.CourseDirectory.course_id", func(c *api.Config, v any) error { return setString(&c.CourseDirectory.CourseID, v) }},
	{"$.CourseDirectory.db_url", func(c *api.Config, v any) error { return setString(&c.CourseDirectory.DBURL, v) }},
	{"$.ZipReleaseFeedbackApp.dirname_suffix", func(c *api.Config, v any) error {
		return setStringPtr(&c.ZipReleaseFeedbackApp.DirnameSuffix, v)
	}},
	{"$.ZipReleaseFeedbackApp.solution_prefix", func(c *api.Config, v any) error {
		return setStringPtr(&c.ZipReleaseFeedbackApp.SolutionPrefix, v)
	}},
	{"$.ZipReleaseFeedbackApp.output_directory", func(c *api.Config, v any) error {
		return setString(&c.ZipReleaseFeedbackApp.OutputDirectory, v)
	}},
	{"$.ZipReleaseFeedbackApp.include_source", func(c *api.Config, v any) error {
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("expected bool, got %T", v)
		}
		c.ZipReleaseFeedbackApp.IncludeSource = &b
		return nil
	}},
}

func parseJSON(data []byte) (*api.Config, error) {
	doc, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config json: %w", err)
	}
	cfg := &api.Config{}
	for _, f := range jsonFields {
		x, err := jp.ParseString(f.path)
		if err != nil {
			return nil, fmt.Errorf("invalid jsonpath '%s': %w", f.path, err)
		}
		results := x.Get(doc)
		if len(results) == 0 || results[0] == nil {
			continue
		}
		if err := f.set(cfg, results[0]); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", feedback.ErrInvalidOption, strings.TrimPrefix(f.path, "$."), err)
		}
	}
	return cfg, nil
}

// Apply overlays the values present in cfg onto s.
func (s *Settings) Apply(cfg *api.Config) error {
	if cfg == nil {
		return nil
	}
	if cfg.Application.LogLevel != "" {
		lvl, err := ParseLevel(cfg.Application.LogLevel)
		if err != nil {
			return err
		}
		s.LogLevel = lvl
	}

	cd := cfg.CourseDirectory
	setIf(&s.Course.Root, cd.Root)
	setIf(&s.Course.SourceDirectory, cd.SourceDirectory)
	setIf(&s.Course.FeedbackDirectory, cd.FeedbackDirectory)
	setIf(&s.Course.AssignmentID, cd.AssignmentID)
	setIf(&s.Course.CourseID, cd.CourseID)
	setIf(&s.Course.DBURL, cd.DBURL)

	zf := cfg.ZipReleaseFeedbackApp
	if zf.DirnameSuffix != nil {
		s.Feedback.DirnameSuffix = *zf.DirnameSuffix
	}
	if zf.SolutionPrefix != nil {
		s.Feedback.SolutionPrefix = *zf.SolutionPrefix
	}
	setIf(&s.Feedback.OutputDirectory, zf.OutputDirectory)
	if zf.IncludeSource != nil {
		s.Feedback.IncludeSource = *zf.IncludeSource
	}
	return nil
}

// Validate checks the settings before any I/O happens.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Course.Root) == "" {
		return fmt.Errorf("%w: course root is empty", feedback.ErrInvalidOption)
	}
	return s.Feedback.Validate()
}

// ParseLevel accepts level names (DEBUG, INFO, WARN, WARNING, ERROR, CRITICAL)
// and the numeric levels 10 through 50.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "10":
		return slog.LevelDebug, nil
	case "INFO", "20":
		return slog.LevelInfo, nil
	case "WARN", "WARNING", "30":
		return slog.LevelWarn, nil
	case "ERROR", "CRITICAL", "40", "50":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: unknown log level %q", feedback.ErrInvalidOption, s)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setString(dst *string, v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected string, got %T", v)
	}
	*dst = s
	return nil
}

func setStringPtr(dst **string, v any) error {
	var s string
	if err := setString(&s, v); err != nil {
		return err
	}
	*dst = &s
	return nil
}

// setLevelString accepts both "DEBUG" and 10 for the log level.
func setLevelString(dst *string, v any) error {
	switch n := v.(type) {
	case int64:
		*dst = strconv.FormatInt(n, 10)
		return nil
	case float64:
		*dst = strconv.FormatFloat(n, 'f', -1, 64)
		return nil
	}
	if err := setString(dst, v); err != nil {
		return errors.New("expected level name or number")
	}
	return nil
}
