// Package models defines data structures for the scraper.
package models

import "time"

// Program represents one program row from the placement results table.
//
// Quota-related fields are fixed-length slices of four values aligned to the
// four quota categories the portal renders as red, purple, blue and green.
// Numeric-looking values stay strings: the source uses comma decimals and
// sentinel values such as "Dolmadı" or "—".
type Program struct {
	Code            string   `json:"code"`
	UniversityName  string   `json:"university_name"`
	Name            string   `json:"name"`
	Attributes      []string `json:"attributes"`
	City            string   `json:"city"`
	UniversityType  string   `json:"university_type"`
	ScholarshipType string   `json:"scholarship_type"`
	EducationType   string   `json:"education_type"`
	TotalQuota      []string `json:"total_quota"`
	QuotaStatus     string   `json:"quota_status"`
	FilledQuota     []string `json:"filled_quota"`
	MaxRank         []string `json:"max_rank"`
	MinScore        []string `json:"min_score"`
	ScoreType       string   `json:"score_type"`
}

// ScrapeResult holds the overall result of one score-type run.
type ScrapeResult struct {
	ScoreType     string
	StartTime     time.Time
	EndTime       time.Time
	Pages         int
	NewRecords    int
	Duplicates    int
	MalformedRows int
	RetryCount    int
	TotalRecords  int
}
