// Package langcode maps short language codes to display names.
package langcode

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Map is an immutable code -> display name table. It is safe to share
// between goroutines once loaded.
type Map map[string]string

// Load reads a code table from path.
func Load(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open language codes %s: %w", path, err)
	}
	defer f.Close()
	m, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("read language codes %s: %w", path, err)
	}
	return m, nil
}

// Parse reads "<display name>,<code>" lines. The code is the text after the
// last comma, so names may contain commas. Blank lines and lines without a
// comma or code are skipped.
func Parse(r io.Reader) (Map, error) {
	m := make(Map)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		i := strings.LastIndexByte(line, ',')
		if i <= 0 {
			continue
		}
		name := strings.TrimSpace(line[:i])
		code := strings.TrimSpace(line[i+1:])
		if code == "" || name == "" {
			continue
		}
		m[code] = name
	}
	return m, sc.Err()
}

// Format renders code as "Name (code)", or "Unknown (code)" when unmapped.
func (m Map) Format(code string) string {
	if name, ok := m[code]; ok {
		return name + " (" + code + ")"
	}
	return "Unknown (" + code + ")"
}
