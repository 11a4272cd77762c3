// Package page decides what the loaded page is and which element to activate next.
// Everything here works on already-fetched HTML and never touches the network.
package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/court-watch/internal/entity"
)

// Keywords are matched against decoded visible text. Markup classes and status
// codes are not reliable on this site, the wording of its error pages is.
var (
	blockKeywords = []string{
		"アクセスが集中",
		"アクセス集中",
		"アクセスが制限",
		"access concentrated",
		"too many requests",
		"access denied",
	}
	softErrorKeywords = []string{
		"エラー",
		"error",
		"無効",
		"invalid",
		"不正",
		"forbidden",
		"トップページへ戻る",
		"ホームへ戻る",
		"go back home",
		"タイムアウトしました",
		"セッションが切れ",
	}
)

// Classify maps page text and HTTP status to a PageState. Pure and deterministic;
// status 0 means the status is unknown.
//
// Blank text is PageUnknown rather than PageValid, so a page that rendered
// nothing is never read as a calendar without availability.
func Classify(pageText string, httpStatus int) entity.PageState {
	switch {
	case httpStatus == 403 || httpStatus == 429:
		return entity.PageHardBlock
	case httpStatus >= 500 && httpStatus <= 599:
		return entity.PageHardBlock
	}

	lower := strings.ToLower(pageText)
	if containsAny(lower, blockKeywords) {
		return entity.PageHardBlock
	}
	if containsAny(lower, softErrorKeywords) {
		return entity.PageSoftError
	}
	if strings.TrimSpace(pageText) == "" {
		return entity.PageUnknown
	}
	return entity.PageValid
}

// keywords are stored lower-case; Japanese is unaffected by ToLower.
func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// VisibleText returns the title and body text of an HTML document with scripts
// and styles removed and whitespace collapsed.
func VisibleText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", err
	}
	return DocumentText(doc), nil
}

// DocumentText is VisibleText for an already parsed document. The document is not modified.
func DocumentText(doc *goquery.Document) string {
	title := doc.Find("title").First().Text()
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()
	return CollapseSpace(title + " " + body.Text())
}

// CollapseSpace trims s and folds every whitespace run into one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
