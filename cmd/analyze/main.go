// Command analyze summarizes the scraper's output files and optionally
// merges them into one normalized dataset.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/ayakut16/yokatlas-scraper/analytics"
)

func main() {
	dir := flag.String("dir", ".", "Directory holding universities_data_*.json files")
	finalize := flag.String("finalize", "", "Merge all files into one normalized dataset at this path (e.g. data.json)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	paths, err := analytics.DiscoverOutputs(*dir)
	if err != nil {
		slog.Error("discover outputs", slog.Any("error", err))
		os.Exit(1)
	}
	if len(paths) == 0 {
		fmt.Fprintf(os.Stderr, "no %s files found in %s\n", analytics.OutputPattern, *dir)
		os.Exit(1)
	}

	summary, err := analytics.Summarize(paths)
	if err != nil {
		slog.Error("summarize outputs", slog.Any("error", err))
		os.Exit(1)
	}
	printSummary(summary)

	if *finalize == "" {
		return
	}

	report, err := analytics.Finalize(paths, *finalize)
	if err != nil {
		slog.Error("finalize dataset", slog.Any("error", err))
		os.Exit(1)
	}

	fmt.Printf("\nWrote %d entries to %s\n", report.Entries, report.OutputPath)
	fmt.Println("Quota status distribution:")
	statuses := make([]string, 0, len(report.QuotaStatus))
	for status := range report.QuotaStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Printf("  %-10s : %d\n", status, report.QuotaStatus[status])
	}
}

func printSummary(summary *analytics.Summary) {
	fmt.Printf("Found %d data files:\n", len(summary.Files))
	for _, file := range summary.Files {
		fmt.Printf("  - %s\n", file)
	}

	fmt.Printf("\nPrograms per score type (%d types):\n", len(summary.ByScoreType))
	type countEntry struct {
		scoreType string
		count     int
	}
	entries := make([]countEntry, 0, len(summary.ByScoreType))
	for scoreType, count := range summary.ByScoreType {
		entries = append(entries, countEntry{scoreType, count})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].scoreType < entries[j].scoreType
	})
	for _, entry := range entries {
		fmt.Printf("  %-10s : %6d\n", entry.scoreType, entry.count)
	}

	fmt.Printf("\nTotal programs: %d\n", summary.TotalPrograms)

	fmt.Printf("\nUnique attributes (%d):\n", len(summary.Attributes))
	for i, attr := range summary.Attributes {
		fmt.Printf("  %3d. %s\n", i+1, attr)
	}
}
