// Package extractor turns reservation tables into slot records.
package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/page"
)

const maxAncestorLevels = 8

var (
	dateRe      = regexp.MustCompile(`\d{1,2}月\d{1,2}日\s*[(（][^)）][)）]`)
	timeLabelRe = regexp.MustCompile(`^\d{1,2}:\d{2}(?:[-~〜～－]\d{1,2}:\d{2})?$`)
)

// Extractor parses detail and calendar pages.
type Extractor struct {
	// AvailableMarkers are the exact cell texts meaning "open slot" on detail pages.
	AvailableMarkers []string
	// CalendarMarkers are the symbols that mark a calendar cell worth opening.
	CalendarMarkers []string
}

func New() *Extractor {
	return &Extractor{
		AvailableMarkers: []string{"○", "◯"},
		CalendarMarkers:  []string{"○", "◯", "△"},
	}
}

// ExtractSlots parses html and returns the open slots, attributed to facility.
// A page without tables or without markers yields an empty slice.
func (e *Extractor) ExtractSlots(htmlContent, facility string) ([]entity.SlotRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}
	return e.ExtractDocument(doc, facility), nil
}

// ExtractDocument is ExtractSlots for a parsed document.
func (e *Extractor) ExtractDocument(doc *goquery.Document, facility string) []entity.SlotRecord {
	docDate := firstDate(page.DocumentText(doc))

	var out []entity.SlotRecord
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		out = append(out, e.extractTable(table, facility, docDate)...)
	})
	return out
}

func (e *Extractor) extractTable(table *goquery.Selection, facility, docDate string) []entity.SlotRecord {
	rows := tableRows(table)
	if len(rows) == 0 {
		return nil
	}
	headers, headerRow := timeHeaders(rows)

	var out []entity.SlotRecord
	var date string
	dateFor := func() string {
		if date == "" {
			date = nearestDate(table)
			if date == "" {
				date = docDate
			}
		}
		return date
	}

	for i, row := range rows {
		if i == headerRow {
			continue
		}
		cells := row.ChildrenFiltered("th, td")
		if cells.Length() < 2 {
			continue
		}
		court := page.CollapseSpace(cells.First().Text())

		var marked []string
		pos := 0
		cells.Each(func(ci int, cell *goquery.Selection) {
			span := colspan(cell)
			defer func() { pos += span }()
			if ci == 0 {
				return
			}
			text := strings.TrimSpace(cell.Text())
			if !isOneOf(text, e.AvailableMarkers) {
				return
			}
			if len(headers) == 0 {
				marked = append(marked, text)
				return
			}
			t := ""
			if pos < len(headers) {
				t = headers[pos]
			}
			out = append(out, entity.SlotRecord{
				Facility:  facility,
				Date:      dateFor(),
				Court:     court,
				Time:      t,
				RawMarker: text,
				Mode:      entity.ModeAligned,
			})
		})

		// No usable time header: keep the whole row so nothing is guessed.
		if len(marked) > 0 {
			out = append(out, entity.SlotRecord{
				Facility:  facility,
				Date:      dateFor(),
				Court:     court,
				RawMarker: marked[0],
				RawLine:   rowText(cells),
				Mode:      entity.ModeRow,
			})
		}
	}
	return out
}

// tableRows returns the rows owned by table, skipping rows of nested tables.
func tableRows(table *goquery.Selection) []*goquery.Selection {
	var rows []*goquery.Selection
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.Closest("table").IsSelection(table) {
			rows = append(rows, tr)
		}
	})
	return rows
}

// timeHeaders picks the header row with the most time labels and returns its
// labels by column position ("" where a column has no time label).
func timeHeaders(rows []*goquery.Selection) ([]string, int) {
	var best []string
	bestCount, bestRow := 0, -1
	for i, row := range rows {
		if !isHeaderRow(row, i) {
			continue
		}
		labels, count := positionalLabels(row, isTimeLabel)
		if count > bestCount {
			best, bestCount, bestRow = labels, count, i
		}
	}
	return best, bestRow
}

func isHeaderRow(row *goquery.Selection, index int) bool {
	if index < 2 || row.ParentsFiltered("thead").Length() > 0 {
		return true
	}
	cells := row.ChildrenFiltered("th, td")
	return cells.Length() > 0 && cells.Length() == row.ChildrenFiltered("th").Length()
}

// positionalLabels expands colspans and keeps the cell texts accepted by keep.
func positionalLabels(row *goquery.Selection, keep func(string) bool) ([]string, int) {
	var labels []string
	count := 0
	row.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
		text := page.CollapseSpace(cell.Text())
		if !keep(text) {
			text = ""
		} else {
			count++
		}
		for n := colspan(cell); n > 0; n-- {
			labels = append(labels, text)
		}
	})
	return labels, count
}

// rowText joins the cell texts of a row with single spaces.
func rowText(cells *goquery.Selection) string {
	var parts []string
	cells.Each(func(_ int, cell *goquery.Selection) {
		if t := page.CollapseSpace(cell.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, " ")
}

func isTimeLabel(s string) bool {
	return timeLabelRe.MatchString(strings.ReplaceAll(s, " ", ""))
}

func colspan(cell *goquery.Selection) int {
	n, err := strconv.Atoi(strings.TrimSpace(cell.AttrOr("colspan", "1")))
	if err != nil || n < 1 {
		return 1
	}
	if n > 50 {
		return 50
	}
	return n
}

func isOneOf(s string, set []string) bool {
	for _, m := range set {
		if s == m {
			return true
		}
	}
	return false
}

func containsOneOf(s string, set []string) (string, bool) {
	for _, m := range set {
		if strings.Contains(s, m) {
			return m, true
		}
	}
	return "", false
}

// nearestDate looks for a date label belonging to table: its caption or first
// row, then the preceding siblings of the table and of each ancestor, nearest first.
func nearestDate(table *goquery.Selection) string {
	if d := firstDate(table.ChildrenFiltered("caption").Text()); d != "" {
		return d
	}
	if rows := tableRows(table); len(rows) > 0 {
		if d := firstDate(rows[0].Text()); d != "" {
			return d
		}
	}
	var found string
	walkPreceding(table, func(text string) bool {
		found = lastDate(text)
		return found != ""
	})
	return found
}

// walkPreceding visits the text of every preceding sibling node of sel and of
// its ancestors, nearest first, until visit returns true.
func walkPreceding(sel *goquery.Selection, visit func(text string) bool) {
	walkPrecedingNodes(sel, func(n *html.Node) bool { return visit(nodeText(n)) })
}

func walkPrecedingNodes(sel *goquery.Selection, visit func(n *html.Node) bool) {
	if sel.Length() == 0 {
		return
	}
	node := sel.Get(0)
	for level := 0; level < maxAncestorLevels && node != nil; level++ {
		for n := node.PrevSibling; n != nil; n = n.PrevSibling {
			if visit(n) {
				return
			}
		}
		node = node.Parent
		if node != nil && node.Type == html.ElementNode && node.Data == "body" {
			break
		}
	}
}

func nodeText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return n.Data
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return ""
		}
		var b strings.Builder
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			b.WriteString(nodeText(c))
			b.WriteByte(' ')
		}
		return b.String()
	default:
		return ""
	}
}

func firstDate(text string) string {
	return normalizeDate(dateRe.FindString(text))
}

func lastDate(text string) string {
	all := dateRe.FindAllString(text, -1)
	if len(all) == 0 {
		return ""
	}
	return normalizeDate(all[len(all)-1])
}

func normalizeDate(s string) string {
	return strings.Join(strings.Fields(s), "")
}
