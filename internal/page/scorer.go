package page

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/pkg/utils"
)

// InteractiveSelector enumerates every element the scorer may pick. ElementRef
// indexes refer to this selector, so the browser resolves them identically.
const InteractiveSelector = "a, button, input"

const (
	DefaultThreshold = 20

	scoreURLHint   = 100
	scoreOnclick   = 50
	scoreClickable = 10
)

// Scorer picks the element that best matches a NavigationTarget.
type Scorer struct {
	Threshold int
}

func NewScorer() *Scorer {
	return &Scorer{Threshold: DefaultThreshold}
}

// FindBestCandidate returns the highest scoring element at or above the
// threshold. Ties go to the element that comes first in the document.
// ok is false when nothing qualifies.
func (s *Scorer) FindBestCandidate(html, pageURL string, target entity.NavigationTarget) (*entity.ElementCandidate, bool, error) {
	candidates, err := s.Candidates(html, pageURL, target)
	if err != nil {
		return nil, false, err
	}
	if len(candidates) == 0 {
		return nil, false, nil
	}
	best := candidates[0]
	return &best, true, nil
}

// Candidates returns every qualifying element, best first.
func (s *Scorer) Candidates(html, pageURL string, target entity.NavigationTarget) ([]entity.ElementCandidate, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}
	base, _ := url.Parse(pageURL)

	var out []entity.ElementCandidate
	doc.Find(InteractiveSelector).Each(func(i int, sel *goquery.Selection) {
		c, navigates, ok := describe(sel, i, base)
		if !ok {
			return
		}
		if containsAnyExact(c.Text, target.MustNotMatch) {
			return
		}
		c.Score = score(c, target, navigates)
		if c.Score >= s.Threshold {
			out = append(out, c)
		}
	})

	// Stable sort keeps document order among equal scores.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// describe reads one interactive element. navigates reports whether its href
// leads to another document; fragment-only, javascript: and self links do not.
func describe(sel *goquery.Selection, index int, base *url.URL) (c entity.ElementCandidate, navigates, ok bool) {
	c = entity.ElementCandidate{
		Ref: entity.ElementRef{Selector: InteractiveSelector, Index: index},
	}
	switch goquery.NodeName(sel) {
	case "a":
		c.Tag = entity.TagLink
		c.Text = CollapseSpace(sel.Text())
	case "button":
		c.Tag = entity.TagButton
		c.Text = CollapseSpace(sel.Text())
	case "input":
		switch strings.ToLower(sel.AttrOr("type", "text")) {
		case "submit", "button", "image":
		default:
			return c, false, false
		}
		c.Tag = entity.TagInput
		c.Text = CollapseSpace(sel.AttrOr("value", ""))
	default:
		return c, false, false
	}
	if c.Text == "" {
		c.Text = CollapseSpace(sel.AttrOr("aria-label", sel.AttrOr("title", sel.AttrOr("alt", ""))))
	}

	if href, ok := sel.Attr("href"); ok {
		c.Href = strings.TrimSpace(href)
		navigates = c.Href != "" && !strings.HasPrefix(c.Href, "#") &&
			!strings.HasPrefix(strings.ToLower(c.Href), "javascript:")
		if base != nil && navigates {
			if abs, err := utils.ToAbsoluteURL(base, c.Href); err == nil {
				c.Href = abs
				navigates = !samePage(abs, base)
			}
		}
	}
	c.Onclick = sel.AttrOr("onclick", "")
	return c, navigates, true
}

// samePage compares URLs without their fragments.
func samePage(abs string, base *url.URL) bool {
	u, err := url.Parse(abs)
	if err != nil {
		return false
	}
	b := *base
	u.Fragment, b.Fragment = "", ""
	u.RawFragment, b.RawFragment = "", ""
	return u.String() == b.String()
}

func score(c entity.ElementCandidate, target entity.NavigationTarget, navigates bool) int {
	total := 0
	if navigates && target.URLHint != "" && c.Href == target.URLHint {
		total += scoreURLHint
	}
	if c.Onclick != "" && containsAnyExact(c.Onclick, target.OnclickHints) {
		total += scoreOnclick
	}
	for _, h := range target.TextHints {
		if h.Text != "" && strings.Contains(c.Text, h.Text) {
			total += h.Weight
		}
	}
	if c.Tag == entity.TagLink || c.Tag == entity.TagButton {
		total += scoreClickable
	}
	return total
}

func containsAnyExact(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, n) {
			return true
		}
	}
	return false
}
