// Package store persists scraped Program records and tracks seen codes so an
// interrupted run can resume without loss or duplication.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ayakut16/yokatlas-scraper/models"
)

// ErrCorruptState reports a prior output file that did not parse cleanly.
// Open salvages every record that does parse and keeps going; the error tells
// the caller what was lost.
type ErrCorruptState struct {
	Path     string
	Salvaged int
	Err      error
}

func (e ErrCorruptState) Error() string {
	return fmt.Sprintf("corrupt state in %s (salvaged %d records): %v", e.Path, e.Salvaged, e.Err)
}

func (e ErrCorruptState) Unwrap() error {
	return e.Err
}

// Store holds the full record set for one score type's output file plus the
// seen-code index used for de-duplication. First write wins: a code that is
// already present is never replaced.
type Store struct {
	path    string
	records []*models.Program
	seen    map[string]struct{}
}

// Open loads any previously persisted records from path. A missing file is a
// fresh start. A malformed file yields a usable store alongside an
// ErrCorruptState describing what could not be salvaged.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		seen: make(map[string]struct{}),
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []*models.Program
	if err := json.Unmarshal(data, &records); err != nil {
		salvaged := salvageRecords(data)
		s.index(salvaged)
		return s, ErrCorruptState{Path: path, Salvaged: len(salvaged), Err: err}
	}

	s.index(records)
	return s, nil
}

// salvageRecords decodes array elements one at a time and keeps everything
// that parses before the first decode failure. A truncated snapshot from an
// interrupted run loses at most its tail.
func salvageRecords(data []byte) []*models.Program {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil
	}

	var records []*models.Program
	for dec.More() {
		var p models.Program
		if err := dec.Decode(&p); err != nil {
			break
		}
		if p.Code != "" {
			records = append(records, &p)
		}
	}
	return records
}

func (s *Store) index(records []*models.Program) {
	for _, p := range records {
		if _, ok := s.seen[p.Code]; ok {
			continue
		}
		s.seen[p.Code] = struct{}{}
		s.records = append(s.records, p)
	}
}

// IsNew reports whether a program code has not been seen yet.
func (s *Store) IsNew(code string) bool {
	_, ok := s.seen[code]
	return !ok
}

// Add merges records into the store, skipping codes that are already present,
// and returns how many were accepted.
func (s *Store) Add(records []*models.Program) int {
	accepted := 0
	for _, p := range records {
		if p == nil || p.Code == "" {
			continue
		}
		if _, ok := s.seen[p.Code]; ok {
			continue
		}
		s.seen[p.Code] = struct{}{}
		s.records = append(s.records, p)
		accepted++
	}
	return accepted
}

// Flush rewrites the full snapshot atomically: the document is written to a
// temporary file in the same directory and renamed over the target, so a
// reader sees either the previous snapshot or the new one, never a partial
// write.
func (s *Store) Flush() error {
	dir := filepath.Dir(s.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.snapshot()); err != nil {
		tmp.Close()
		return fmt.Errorf("encode records: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

func (s *Store) snapshot() []*models.Program {
	if s.records == nil {
		return []*models.Program{}
	}
	return s.records
}

// Len returns the number of records currently held.
func (s *Store) Len() int {
	return len(s.records)
}

// Records returns the held records in insertion order.
func (s *Store) Records() []*models.Program {
	out := make([]*models.Program, len(s.records))
	copy(out, s.records)
	return out
}

// Path returns the output file the store persists to.
func (s *Store) Path() string {
	return s.path
}
