package analytics

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ayakut16/yokatlas-scraper/models"
	"github.com/ayakut16/yokatlas-scraper/parser"
)

// FinalizeReport describes the merged dataset written by Finalize.
type FinalizeReport struct {
	Entries     int
	QuotaStatus map[string]int
	OutputPath  string
}

// Finalize merges every output file into one normalized dataset: quota
// statuses are resolved and glued attribute tags split. The merged document
// is written with the same atomic-replace discipline as the scraper's
// snapshots.
func Finalize(paths []string, outPath string) (*FinalizeReport, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no output files to finalize")
	}

	var merged []*models.Program
	loaded := 0
	for _, path := range paths {
		programs, err := loadPrograms(path)
		if err != nil {
			slog.Warn("skipping unreadable output file",
				slog.String("path", path),
				slog.Any("error", err),
			)
			continue
		}
		loaded++
		for _, p := range programs {
			merged = append(merged, normalize(p))
		}
		slog.Info("merged output file", slog.String("path", path), slog.Int("entries", len(programs)))
	}
	if loaded == 0 {
		return nil, fmt.Errorf("none of the %d output files could be loaded", len(paths))
	}

	if err := writeAtomic(outPath, merged); err != nil {
		return nil, err
	}

	report := &FinalizeReport{
		Entries:     len(merged),
		QuotaStatus: make(map[string]int),
		OutputPath:  outPath,
	}
	for _, p := range merged {
		status := p.QuotaStatus
		if status == "" {
			status = "unknown"
		}
		report.QuotaStatus[status]++
	}
	return report, nil
}

func normalize(p *models.Program) *models.Program {
	out := *p
	out.QuotaStatus = parser.NormalizeQuotaStatus(p.QuotaStatus, p.MaxRank, p.TotalQuota, p.FilledQuota)
	out.Attributes = parser.NormalizeAttributes(p.Attributes)
	return &out
}

func writeAtomic(path string, programs []*models.Program) error {
	if programs == nil {
		programs = []*models.Program{}
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(programs); err != nil {
		tmp.Close()
		return fmt.Errorf("encode merged dataset: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
