// Package parser converts rendered result-table rows into Program records.
package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayakut16/yokatlas-scraper/models"
)

// The detailed table view renders a hidden control cell followed by twelve
// data cells per row.
const minCells = 13

// quotaColors orders the font colors of the four quota categories.
var quotaColors = [4]string{"red", "purple", "blue", "green"}

var (
	codeRe      = regexp.MustCompile(`^\d{8,}$`)
	attrSplitRe = regexp.MustCompile(`\)\s*\(`)
)

// ErrMalformedRow reports a row that cannot be mapped to a Program. Callers
// skip such rows; they never abort a page.
type ErrMalformedRow struct {
	Reason string
}

func (e ErrMalformedRow) Error() string {
	return "malformed row: " + e.Reason
}

// ParseRow maps one rendered table row onto a Program record. The score type
// comes from the run configuration, not the markup.
func ParseRow(row *goquery.Selection, scoreType string) (*models.Program, error) {
	cells := row.Find("td")
	if cells.Length() < minCells {
		return nil, ErrMalformedRow{Reason: "expected at least 13 cells, got " + strconv.Itoa(cells.Length())}
	}

	code := extractCode(cells.Eq(1))
	if code == "" {
		return nil, ErrMalformedRow{Reason: "no program code found"}
	}

	programCell := cells.Eq(3)

	return &models.Program{
		Code:            code,
		UniversityName:  strings.TrimSpace(cells.Eq(2).Find("strong").First().Text()),
		Name:            extractProgramName(programCell),
		Attributes:      extractAttributes(programCell),
		City:            strings.TrimSpace(cells.Eq(4).Text()),
		UniversityType:  strings.TrimSpace(cells.Eq(5).Text()),
		ScholarshipType: strings.TrimSpace(cells.Eq(6).Text()),
		EducationType:   strings.TrimSpace(cells.Eq(7).Text()),
		TotalQuota:      extractColoredValues(cells.Eq(8)),
		QuotaStatus:     strings.TrimSpace(cells.Eq(9).Text()),
		FilledQuota:     extractColoredValues(cells.Eq(10)),
		MaxRank:         extractColoredValues(cells.Eq(11)),
		MinScore:        extractColoredValues(cells.Eq(12)),
		ScoreType:       scoreType,
	}, nil
}

// extractCode finds the program code in the composite first data cell: the
// first numeric token of at least eight digits, falling back to anchor text.
func extractCode(cell *goquery.Selection) string {
	for _, part := range strings.Fields(cell.Text()) {
		if codeRe.MatchString(part) {
			return part
		}
	}

	code := ""
	cell.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := strings.TrimSpace(a.Text())
		if codeRe.MatchString(text) {
			code = text
			return false
		}
		return true
	})
	return code
}

// extractProgramName reads the linked program title out of the program cell.
func extractProgramName(cell *goquery.Selection) string {
	strong := cell.Find("strong").First()
	if link := strong.Find("a").First(); link.Length() > 0 {
		return strings.TrimSpace(link.Text())
	}
	return strings.TrimSpace(strong.Text())
}

// extractAttributes parses the trailing tag list of the program cell, e.g.
// "(İngilizce) (Burslu) (4 Yıllık)" into its individual tags.
func extractAttributes(cell *goquery.Selection) []string {
	text := strings.TrimSpace(cell.Find(`font[color='#CC0000']`).First().Text())
	if !strings.HasPrefix(text, "(") || !strings.HasSuffix(text, ")") {
		return nil
	}

	text = text[1 : len(text)-1]
	var attrs []string
	for _, part := range attrSplitRe.Split(text, -1) {
		if part = strings.TrimSpace(part); part != "" {
			attrs = append(attrs, part)
		}
	}
	return attrs
}

// extractColoredValues reads one value per quota category from a cell, in the
// fixed red/purple/blue/green order. A parenthesized breakdown suffix like
// "8(6+0+1+0+1)" is trimmed to the leading figure; a missing color yields "".
func extractColoredValues(cell *goquery.Selection) []string {
	values := make([]string, 0, len(quotaColors))
	for _, color := range quotaColors {
		text := strings.TrimSpace(cell.Find("font[color='" + color + "']").First().Text())
		if i := strings.Index(text, "("); i >= 0 && strings.Contains(text, ")") {
			text = strings.TrimSpace(text[:i])
		}
		values = append(values, text)
	}
	return values
}
