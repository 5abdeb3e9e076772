// Package storage persists extraction outcomes in SQLite and citations in
// JSONL.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/matsen/refextract/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines (1MB per line).
const MaxJSONLLineCapacity = 1024 * 1024

// ReadAll reads all citations from a JSONL file. A missing file yields no
// citations.
func ReadAll(path string) ([]reference.Citation, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening citations file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads JSONL citations from r.
func Decode(r io.Reader) ([]reference.Citation, error) {
	var cs []reference.Citation
	scanner := bufio.NewScanner(r)

	// Increase buffer size for long lines
	buf := make([]byte, MaxJSONLLineCapacity)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var c reference.Citation
		if err := json.Unmarshal(line, &c); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		cs = append(cs, c)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading citations: %w", err)
	}

	return cs, nil
}

// Append adds a citation to the end of a JSONL file.
func Append(path string, c reference.Citation) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening citations file for append: %w", err)
	}
	defer f.Close()

	return Encode(f, []reference.Citation{c})
}

// WriteAll writes all citations to a JSONL file, replacing existing content.
func WriteAll(path string, cs []reference.Citation) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating citations file: %w", err)
	}
	if err := Encode(f, cs); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Encode writes one JSON object per line to w.
func Encode(w io.Writer, cs []reference.Citation) error {
	for i, c := range cs {
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encoding citation %d: %w", i, err)
		}

		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("writing citation %d: %w", i, err)
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return fmt.Errorf("writing newline: %w", err)
		}
	}

	return nil
}
