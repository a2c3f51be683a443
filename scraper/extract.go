package scraper

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ayakut16/yokatlas-scraper/models"
	"github.com/ayakut16/yokatlas-scraper/parser"
)

// PageData is the result of reading one rendered page of the results table.
type PageData struct {
	Programs      []*models.Program
	MalformedRows int
	TablePresent  bool
}

// ExtractPage parses every row of the rendered table markup. Malformed rows
// are counted and skipped, never fatal for the page. An absent table or a
// table with no parseable rows signals end-of-results to the caller.
func ExtractPage(tableHTML, scoreType string) (PageData, error) {
	if strings.TrimSpace(tableHTML) == "" {
		return PageData{}, nil
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(tableHTML))
	if err != nil {
		return PageData{}, fmt.Errorf("parse table markup: %w", err)
	}

	data := PageData{TablePresent: doc.Find("table").Length() > 0}
	if !data.TablePresent {
		return data, nil
	}

	doc.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
		// DataTables renders its empty-state message as a single
		// sub-minimal row; that counts as no rows, not as malformed.
		if row.Find("td.dataTables_empty").Length() > 0 {
			return
		}

		program, err := parser.ParseRow(row, scoreType)
		if err != nil {
			data.MalformedRows++
			return
		}
		data.Programs = append(data.Programs, program)
	})

	return data, nil
}
