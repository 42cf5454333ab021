// Package gradebook provides access to the nbgrader gradebook database.
//
// A gradebook is addressed by an SQLAlchemy-style URL:
//
//	sqlite:////abs/path/gradebook.db   absolute sqlite file
//	sqlite:///relative/gradebook.db    sqlite file relative to the working directory
//	sqlite://                          in-memory sqlite
//	postgresql://user@host/db          PostgreSQL via pgx
package gradebook

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	// ErrUnsupportedURL is returned for database URLs with an unknown scheme.
	ErrUnsupportedURL = errors.New("gradebook: unsupported database url")

	// ErrReadOnly is returned when writing through a read-only gradebook.
	ErrReadOnly = errors.New("gradebook: opened read-only")

	// ErrNoDatabase is returned by Open when a sqlite gradebook file is missing.
	ErrNoDatabase = errors.New("gradebook: database does not exist")
)

const schema = `
CREATE TABLE IF NOT EXISTS course (
	id VARCHAR(128) PRIMARY KEY
);
CREATE TABLE IF NOT EXISTS student (
	id VARCHAR(128) PRIMARY KEY,
	first_name VARCHAR(128),
	last_name VARCHAR(128),
	email VARCHAR(128),
	lms_user_id VARCHAR(128)
);
`

// Student is a row of the student table.
type Student struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	LMSUserID string
}

// Gradebook is a scoped connection to one course's gradebook.
type Gradebook struct {
	db       *sql.DB
	driver   string
	courseID string
	writable bool
}

// Open connects to the gradebook read-only. The connection is verified
// before returning so a bad URL fails here rather than on first query.
func Open(ctx context.Context, dbURL, courseID string) (*Gradebook, error) {
	gb, err := open(ctx, dbURL, courseID, false)
	if err != nil {
		return nil, err
	}
	found, err := gb.hasCourse(ctx)
	if err != nil {
		_ = gb.Close()
		return nil, err
	}
	if !found {
		slog.Default().Warn("course not found in gradebook", "course_id", courseID)
	}
	return gb, nil
}

// Create connects read-write, creating the schema and course row if needed.
func Create(ctx context.Context, dbURL, courseID string) (*Gradebook, error) {
	gb, err := open(ctx, dbURL, courseID, true)
	if err != nil {
		return nil, err
	}
	if err := gb.migrate(ctx); err != nil {
		_ = gb.Close()
		return nil, err
	}
	return gb, nil
}

func open(ctx context.Context, dbURL, courseID string, writable bool) (*Gradebook, error) {
	driver, dsn, err := parseURL(dbURL, writable)
	if err != nil {
		return nil, err
	}
	if path, ok := sqliteFile(dbURL); ok && !writable {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s (add a student with \"nbgrader db student add\" to create it)", ErrNoDatabase, path)
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open gradebook %s: %w", dbURL, err)
	}
	if driver == "sqlite" {
		// in-memory databases are per connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect gradebook %s: %w", dbURL, err)
	}
	return &Gradebook{db: db, driver: driver, courseID: courseID, writable: writable}, nil
}

// parseURL maps a gradebook URL to a database/sql driver name and DSN.
func parseURL(dbURL string, writable bool) (driver, dsn string, err error) {
	switch {
	case dbURL == "sqlite://" || dbURL == "sqlite:///:memory:":
		return "sqlite", ":memory:", nil
	case strings.HasPrefix(dbURL, "sqlite:///"):
		path, _ := sqliteFile(dbURL)
		if path == "" {
			return "", "", fmt.Errorf("%w: %q has no path", ErrUnsupportedURL, dbURL)
		}
		if writable {
			return "sqlite", "file:" + escapePath(path), nil
		}
		return "sqlite", "file:" + escapePath(path) + "?mode=ro", nil
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		if writable {
			return "pgx", dbURL, nil
		}
		sep := "?"
		if strings.Contains(dbURL, "?") {
			sep = "&"
		}
		return "pgx", dbURL + sep + "default_transaction_read_only=on", nil
	default:
		return "", "", fmt.Errorf("%w: %q", ErrUnsupportedURL, dbURL)
	}
}

// sqliteFile returns the database path of a file-backed sqlite URL.
func sqliteFile(dbURL string) (string, bool) {
	if dbURL == "sqlite:///:memory:" || !strings.HasPrefix(dbURL, "sqlite:///") {
		return "", false
	}
	return strings.TrimPrefix(dbURL, "sqlite:///"), true
}

// escapePath percent-encodes each segment so characters such as ? and #
// stay part of the file name inside a sqlite URI.
func escapePath(path string) string {
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

// CourseID returns the course this gradebook is scoped to.
func (g *Gradebook) CourseID() string {
	return g.courseID
}

// Students returns every student ordered by last name, first name and id.
func (g *Gradebook) Students(ctx context.Context) ([]Student, error) {
	rows, err := g.db.QueryContext(ctx, `
		SELECT id, COALESCE(first_name, ''), COALESCE(last_name, ''),
		       COALESCE(email, ''), COALESCE(lms_user_id, '')
		FROM student
		ORDER BY last_name, first_name, id`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var students []Student
	for rows.Next() {
		var s Student
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.LMSUserID); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return students, nil
}

// AddStudent inserts the student or updates the existing row with the same id.
func (g *Gradebook) AddStudent(ctx context.Context, s Student) error {
	if !g.writable {
		return ErrReadOnly
	}
	if s.ID == "" {
		return errors.New("gradebook: student id is empty")
	}
	_, err := g.db.ExecContext(ctx, g.bind(`
		INSERT INTO student (id, first_name, last_name, email, lms_user_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			email = excluded.email,
			lms_user_id = excluded.lms_user_id`),
		s.ID, nullable(s.FirstName), nullable(s.LastName), nullable(s.Email), nullable(s.LMSUserID))
	if err != nil {
		return fmt.Errorf("add student %s: %w", s.ID, err)
	}
	return nil
}

// Close releases the connection. Calling it more than once is safe.
func (g *Gradebook) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	err := g.db.Close()
	g.db = nil
	return err
}

func (g *Gradebook) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := g.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	if _, err := g.db.ExecContext(ctx,
		g.bind(`INSERT INTO course (id) VALUES (?) ON CONFLICT (id) DO NOTHING`), g.courseID); err != nil {
		return fmt.Errorf("create course %s: %w", g.courseID, err)
	}
	return nil
}

func (g *Gradebook) hasCourse(ctx context.Context) (bool, error) {
	var id string
	err := g.db.QueryRowContext(ctx, g.bind(`SELECT id FROM course WHERE id = ?`), g.courseID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query course %s: %w", g.courseID, err)
	}
	return true, nil
}

// bind rewrites ? placeholders to $n for PostgreSQL.
func (g *Gradebook) bind(query string) string {
	if g.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
