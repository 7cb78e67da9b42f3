// Package envfile edits comma-separated list keys in dotenv files while
// leaving every other line untouched.
package envfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// ErrMissing is returned when a file that must exist does not.
var ErrMissing = errors.New("env file does not exist")

// Edit is the outcome of AppendToList.
type Edit struct {
	Path    string   `json:"path"`
	Key     string   `json:"key"`
	Added   bool     `json:"added"`
	Created bool     `json:"created,omitempty"`
	Values  []string `json:"values"`
}

// Options controls AppendToList.
type Options struct {
	// Sep joins values on write. Reads always split on "," and trim.
	Sep string
	// Create allows a missing file to be created.
	Create bool
}

// fileLocks serializes read-modify-write cycles per file within the process.
var fileLocks sync.Map

func lockFile(path string) func() {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	mu, _ := fileLocks.LoadOrStore(path, &sync.Mutex{})
	m := mu.(*sync.Mutex)
	m.Lock()
	return m.Unlock
}

// Lookup returns the value of key in path as godotenv parses it.
func Lookup(path, key string) (string, bool, error) {
	m, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, fmt.Errorf("%w: %s", ErrMissing, path)
		}
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

// SplitList splits a comma-separated value, dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AppendToList adds value to the list held by key in path unless it is
// already an element. The first KEY= line is rewritten in place; when the
// key is absent a new line is appended. Nothing is written when value is
// already present.
func AppendToList(path, key, value string, o Options) (Edit, error) {
	if o.Sep == "" {
		o.Sep = ","
	}
	e := Edit{Path: path, Key: key}
	defer lockFile(path)()

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && o.Create:
		e.Created = true
	case errors.Is(err, fs.ErrNotExist):
		return e, fmt.Errorf("%w: %s", ErrMissing, path)
	case err != nil:
		return e, err
	}

	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	trailingNL := strings.HasSuffix(text, "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}

	idx := -1
	for i, l := range lines {
		if keyOf(l) == key {
			idx = i
			break
		}
	}

	var current []string
	if idx >= 0 {
		parsed, err := godotenv.Unmarshal(lines[idx])
		if err != nil {
			return e, fmt.Errorf("parse %s in %s: %w", key, path, err)
		}
		current = SplitList(parsed[key])
	}
	for _, v := range current {
		if v == value {
			e.Values = current
			return e, nil
		}
	}

	e.Values = append(current, value)
	e.Added = true
	line := key + "=" + quote(strings.Join(e.Values, o.Sep))
	if idx >= 0 {
		lines[idx] = line
	} else {
		lines = append(lines, line)
	}
	out := strings.Join(lines, "\n")
	if trailingNL || e.Created {
		out += "\n"
	}
	return e, writeFile(path, []byte(out))
}

// keyOf returns the key assigned on line, or "" for comments and blanks.
func keyOf(line string) string {
	l := strings.TrimSpace(line)
	if l == "" || strings.HasPrefix(l, "#") {
		return ""
	}
	l = strings.TrimPrefix(l, "export ")
	k, _, ok := strings.Cut(l, "=")
	if !ok {
		return ""
	}
	return strings.TrimSpace(k)
}

func quote(v string) string {
	if !strings.ContainsAny(v, " \t#'\"") {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// writeFile replaces path through a sibling temp file, keeping its mode.
func writeFile(path string, data []byte) error {
	mode := fs.FileMode(0o644)
	if st, err := os.Stat(path); err == nil {
		mode = st.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Chmod(name, mode); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, path)
}
