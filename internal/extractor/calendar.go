package extractor

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/page"
)

// cellSelector addresses calendar cells that carry their own onclick handler.
const cellSelector = "td, th"

// Mark is an availability-marked, clickable calendar cell.
type Mark struct {
	Ref     entity.ElementRef
	Date    string
	Court   string
	Symbol  string
	RowText string
}

// FacilityMarks are the marks found in the regions attributed to one facility.
type FacilityMarks struct {
	Facility entity.Facility
	// Found is set when at least one region was attributed to the facility.
	Found bool
	Marks []Mark
}

// CalendarMarks locates each facility's regions on the calendar page and lists
// their marked cells in document order. A row is attributed through its own
// label first, then through the label of its table; rows matching no facility
// are ignored.
func (e *Extractor) CalendarMarks(htmlContent string, facilities []entity.Facility) ([]FacilityMarks, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	interactive := nodeIndex(doc.Find(page.InteractiveSelector))
	cells := nodeIndex(doc.Find(cellSelector))

	byKey := make(map[string]*FacilityMarks, len(facilities))
	out := make([]FacilityMarks, len(facilities))
	for i, f := range facilities {
		out[i] = FacilityMarks{Facility: f}
		byKey[f.Key] = &out[i]
	}

	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		rows := tableRows(table)
		if len(rows) == 0 {
			return
		}
		tableFacility, tableOK := tableContextFacility(table, facilities)
		dates, headerRow := dateHeaders(rows)

		for i, row := range rows {
			if i == headerRow {
				continue
			}
			rowCells := row.ChildrenFiltered("th, td")
			if rowCells.Length() < 2 {
				continue
			}
			label := page.CollapseSpace(rowCells.First().Text())
			f, ok := entity.MatchFacility(facilities, label)
			if !ok {
				f, ok = tableFacility, tableOK
			}
			if !ok {
				continue
			}
			fm := byKey[f.Key]
			fm.Found = true
			line := rowText(rowCells)

			pos := 0
			rowCells.Each(func(ci int, cell *goquery.Selection) {
				span := colspan(cell)
				defer func() { pos += span }()
				if ci == 0 {
					return
				}
				symbol, marked := containsOneOf(strings.TrimSpace(cell.Text()), e.CalendarMarkers)
				if !marked {
					return
				}
				ref, clickable := cellRef(cell, interactive, cells)
				if !clickable {
					return
				}
				date := ""
				if pos < len(dates) {
					date = dates[pos]
				}
				fm.Marks = append(fm.Marks, Mark{Ref: ref, Date: date, Court: label, Symbol: symbol, RowText: line})
			})
		}
	})
	return out, nil
}

// Present reports which facilities are mentioned anywhere on the page.
func Present(htmlContent string, facilities []entity.Facility) (map[string]bool, error) {
	text, err := page.VisibleText(htmlContent)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(facilities))
	for _, f := range facilities {
		out[f.Key] = f.Matches(text)
	}
	return out, nil
}

func nodeIndex(sel *goquery.Selection) map[*html.Node]int {
	idx := make(map[*html.Node]int, sel.Length())
	for i, n := range sel.Nodes {
		idx[n] = i
	}
	return idx
}

// cellRef finds what to click for a marked cell: its first interactive
// descendant, else the cell itself when it has an onclick handler.
func cellRef(cell *goquery.Selection, interactive, cells map[*html.Node]int) (entity.ElementRef, bool) {
	var ref entity.ElementRef
	found := false
	cell.Find(page.InteractiveSelector).EachWithBreak(func(_ int, el *goquery.Selection) bool {
		if i, ok := interactive[el.Get(0)]; ok {
			ref = entity.ElementRef{Selector: page.InteractiveSelector, Index: i}
			found = true
			return false
		}
		return true
	})
	if found {
		return ref, true
	}
	if _, ok := cell.Attr("onclick"); ok {
		if i, ok := cells[cell.Get(0)]; ok {
			return entity.ElementRef{Selector: cellSelector, Index: i}, true
		}
	}
	return ref, false
}

// tableContextFacility attributes a whole table through its caption or the
// nearest preceding text that names a facility.
func tableContextFacility(table *goquery.Selection, facilities []entity.Facility) (entity.Facility, bool) {
	if f, ok := entity.MatchFacility(facilities, table.ChildrenFiltered("caption").Text()); ok {
		return f, true
	}
	var found entity.Facility
	ok := false
	walkPrecedingNodes(table, func(n *html.Node) bool {
		// Another table in between means the label belongs to that table.
		if hasTable(n) {
			return true
		}
		found, ok = entity.MatchFacility(facilities, nodeText(n))
		return ok
	})
	return found, ok
}

func hasTable(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	if n.Data == "table" {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if hasTable(c) {
			return true
		}
	}
	return false
}

func dateHeaders(rows []*goquery.Selection) ([]string, int) {
	var best []string
	bestCount, bestRow := 0, -1
	for i, row := range rows {
		if !isHeaderRow(row, i) {
			continue
		}
		labels, count := positionalLabels(row, func(s string) bool { return firstDate(s) != "" || isDayLabel(s) })
		if count > bestCount {
			best, bestCount, bestRow = labels, count, i
		}
	}
	return best, bestRow
}

// isDayLabel accepts short calendar headers such as "21" or "21(水)".
func isDayLabel(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || len([]rune(s)) > 8 {
		return false
	}
	return s[0] >= '0' && s[0] <= '9'
}
