// Package objtag injects, reads and rewrites the per-object identifier tags
// carried inside OBJ object declaration lines.
//
// A tagged declaration looks like
//
//	o Wall_042:_ID7_:
//
// where 7 is the tag. Tags start at 1, follow the declaration order of the
// file and are scoped to one artifact.
package objtag

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

const (
	declarationPrefix = "o "
	tagOpen           = ":_ID"
	tagClose          = "_:"
)

// ErrNoMatchingIdentifier is returned in strict mode when an update addresses a tag that is not present.
var ErrNoMatchingIdentifier = errors.New("no matching identifier")

var (
	tagPattern    = regexp.MustCompile(`:_ID(\d+)_:`)
	suffixPattern = regexp.MustCompile(`:_ID(\d+)_:$`)
)

// Object is a tagged mesh object as declared in the container.
type Object struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Update renames the object carrying tag ID.
type Update struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Validate rejects updates that cannot address a tag or would break the line format.
func (u Update) Validate() error {
	if u.ID < 1 {
		return fmt.Errorf("id must be a positive integer, got %d", u.ID)
	}
	if strings.TrimSpace(u.Name) == "" {
		return fmt.Errorf("name is required for id %d", u.ID)
	}
	if strings.ContainsAny(u.Name, "\r\n") {
		return fmt.Errorf("name for id %d must be a single line", u.ID)
	}
	if tagPattern.MatchString(u.Name) {
		return fmt.Errorf("name for id %d must not contain a tag", u.ID)
	}
	return nil
}

// RewriteOptions controls policy choices of Rewrite.
type RewriteOptions struct {
	// Strict fails with ErrNoMatchingIdentifier instead of skipping unknown ids.
	Strict bool
	// PreserveTags keeps the tag suffix on renamed lines.
	PreserveTags bool
}

// RewriteReport lists which updates matched a declaration.
type RewriteReport struct {
	Applied   []int `json:"applied"`
	Unmatched []int `json:"unmatched"`
}

// UnmatchedError carries the ids that did not match in strict mode.
type UnmatchedError struct {
	Path string
	IDs  []int
}

func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("no object tagged %v in %s", e.IDs, filepath.Base(e.Path))
}

func (e *UnmatchedError) Is(target error) bool { return target == ErrNoMatchingIdentifier }

// Marker returns the inline tag text for id.
func Marker(id int) string {
	return tagOpen + strconv.Itoa(id) + tagClose
}

// Tag appends a tag to every object declaration of the OBJ file at path and
// returns the number of tagged declarations. It is only meant for freshly
// converted files: running it again after a rename numbers lines anew.
func Tag(path string) (int, error) {
	lines, err := readLines(path)
	if err != nil {
		return 0, err
	}

	n := TagLines(lines)
	if err := writeLines(path, lines); err != nil {
		return 0, err
	}
	return n, nil
}

// TagLines tags the declaration lines in place and returns how many were tagged.
func TagLines(lines []string) int {
	counter := 0
	for i, line := range lines {
		body, eol := splitEOL(line)
		if !isDeclaration(body) {
			continue
		}
		counter++
		lines[i] = body + Marker(counter) + eol
	}
	return counter
}

// Rewrite applies updates in order to the OBJ file at path. For every update
// the first declaration line carrying the update's tag is replaced by a
// declaration of the new name. The file is only written when at least one
// update matched.
func Rewrite(path string, updates []Update, opts RewriteOptions) (*RewriteReport, error) {
	for _, u := range updates {
		if err := u.Validate(); err != nil {
			return nil, err
		}
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}

	report := RewriteLines(lines, updates, opts)
	if opts.Strict && len(report.Unmatched) > 0 {
		return report, &UnmatchedError{Path: path, IDs: report.Unmatched}
	}
	if len(report.Applied) == 0 {
		return report, nil
	}
	if err := writeLines(path, lines); err != nil {
		return nil, err
	}
	return report, nil
}

// RewriteLines applies updates to lines in place.
func RewriteLines(lines []string, updates []Update, opts RewriteOptions) *RewriteReport {
	report := &RewriteReport{Applied: []int{}, Unmatched: []int{}}
	for _, u := range updates {
		marker := Marker(u.ID)
		matched := false
		for i, line := range lines {
			body, eol := splitEOL(line)
			if !isDeclaration(body) || !strings.HasSuffix(body, marker) {
				continue
			}
			replacement := declarationPrefix + u.Name
			if opts.PreserveTags {
				replacement += marker
			}
			lines[i] = replacement + eol
			matched = true
			break
		}
		if matched {
			report.Applied = append(report.Applied, u.ID)
		} else {
			report.Unmatched = append(report.Unmatched, u.ID)
		}
	}
	return report
}

// List returns the tagged objects of the OBJ file at path in file order.
// Untagged declarations are skipped.
func List(path string) ([]Object, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	return ListLines(lines), nil
}

// ListLines parses tagged declarations out of lines.
func ListLines(lines []string) []Object {
	objects := []Object{}
	for _, line := range lines {
		body, _ := splitEOL(line)
		if !isDeclaration(body) {
			continue
		}
		loc := suffixPattern.FindStringSubmatchIndex(body)
		if loc == nil {
			continue
		}
		id, err := strconv.Atoi(body[loc[2]:loc[3]])
		if err != nil {
			continue
		}
		name := body[len(declarationPrefix):loc[0]]
		objects = append(objects, Object{ID: id, Name: name})
	}
	return objects
}

func isDeclaration(line string) bool {
	return strings.HasPrefix(line, declarationPrefix)
}

// splitEOL separates a trailing carriage return so CRLF files round-trip.
func splitEOL(line string) (string, string) {
	if strings.HasSuffix(line, "\r") {
		return line[:len(line)-1], "\r"
	}
	return line, ""
}

// readLines splits on '\n' only, so joining the result reproduces the file byte for byte.
func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return strings.Split(string(data), "\n"), nil
}

// writeLines replaces path with the joined lines via a temp file in the same directory.
func writeLines(path string, lines []string) error {
	data := []byte(strings.Join(lines, "\n"))

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmpPath, info.Mode().Perm()); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
