// Package corpus loads the social posts the social scorer compares reports
// against. A corpus is either a YAML file with a top-level posts list or a
// SQLite database with a posts(text) table.
package corpus

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/couchcryptid/coastal-alert-service/internal/social"
)

// ErrEmptyCorpus is returned when a corpus source holds no usable posts.
var ErrEmptyCorpus = errors.New("corpus contains no posts")

// Load reads posts from path. An empty path returns the built-in posts.
func Load(path string) ([]string, error) {
	if path == "" {
		return append([]string(nil), social.DefaultPosts...), nil
	}

	var (
		posts []string
		err   error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		posts, err = loadYAML(path)
	case ".db", ".sqlite", ".sqlite3":
		posts, err = loadSQLite(path)
	default:
		return nil, fmt.Errorf("load corpus %s: unsupported extension %q", filepath.Base(path), ext)
	}
	if err != nil {
		return nil, fmt.Errorf("load corpus %s: %w", filepath.Base(path), err)
	}

	posts = compact(posts)
	if len(posts) == 0 {
		return nil, fmt.Errorf("load corpus %s: %w", filepath.Base(path), ErrEmptyCorpus)
	}
	return posts, nil
}

// corpusFile mirrors the YAML layout.
type corpusFile struct {
	Posts []string `yaml:"posts"`
}

func loadYAML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var f corpusFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}
	return f.Posts, nil
}

func loadSQLite(path string) ([]string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat db: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	rows, err := db.Query(`SELECT text FROM posts ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	var posts []string
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, text)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// compact trims posts and drops blanks.
func compact(posts []string) []string {
	out := posts[:0]
	for _, p := range posts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
