// Package analytics summarizes and merges the per-score-type output files
// produced by the scraper.
package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/ayakut16/yokatlas-scraper/models"
)

// OutputPattern matches the scraper's per-score-type output files.
const OutputPattern = "universities_data_*.json"

// Summary aggregates statistics across output files.
type Summary struct {
	Files         []string
	TotalPrograms int
	ByScoreType   map[string]int
	Attributes    []string // unique, sorted
}

// DiscoverOutputs globs for scraper output files under dir.
func DiscoverOutputs(dir string) ([]string, error) {
	paths, err := filepath.Glob(filepath.Join(dir, OutputPattern))
	if err != nil {
		return nil, fmt.Errorf("glob outputs: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Summarize loads every output file and reports program counts per score
// type, the grand total, and the unique attribute inventory. A file that
// fails to load is skipped with a warning, matching the scraper's
// salvage-over-abort posture.
func Summarize(paths []string) (*Summary, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no output files to summarize")
	}

	summary := &Summary{
		ByScoreType: make(map[string]int),
	}
	attributes := make(map[string]struct{})

	for _, path := range paths {
		programs, err := loadPrograms(path)
		if err != nil {
			slog.Warn("skipping unreadable output file",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		summary.Files = append(summary.Files, path)

		for _, p := range programs {
			scoreType := p.ScoreType
			if scoreType == "" {
				scoreType = "unknown"
			}
			summary.ByScoreType[scoreType]++
			summary.TotalPrograms++
			for _, attr := range p.Attributes {
				attributes[attr] = struct{}{}
			}
		}
	}

	if len(summary.Files) == 0 {
		return nil, fmt.Errorf("none of the %d output files could be loaded", len(paths))
	}

	summary.Attributes = make([]string, 0, len(attributes))
	for attr := range attributes {
		summary.Attributes = append(summary.Attributes, attr)
	}
	sort.Strings(summary.Attributes)

	return summary, nil
}

func loadPrograms(path string) ([]*models.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var programs []*models.Program
	if err := json.Unmarshal(data, &programs); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return programs, nil
}
