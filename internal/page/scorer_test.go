package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/site"
)

const topURL = "https://example.test/Web/Home/WgR_ModeSelect"

func TestFindBestCandidatePrefersURLHint(t *testing.T) {
	routes := site.NewRoutes("https://example.test")
	html := `<html><body>
<a href="/Web/Info">施設の種類から探す（ご案内）</a>
<a href="/Web/Yoyaku/WgR_ShisetsubetsuAkiJoukyou">空き状況</a>
</body></html>`

	c, ok, err := NewScorer().FindBestCandidate(html, topURL, routes.FacilityTypeSearchTarget())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, c.Ref.Index)
	assert.Equal(t, routes.CalendarURL(), c.Href)
	assert.Equal(t, 100+10+10, c.Score)
}

func TestFindBestCandidateSkipsDecoys(t *testing.T) {
	routes := site.NewRoutes("https://example.test")
	html := `<html><body>
<a href="#" onclick="cancel()">庭球場の予約キャンセル</a>
<a href="/rules">庭球場利用規約</a>
<a href="#">体育館</a>
<input type="text" value="庭球場">
<button type="button">庭球場</button>
<a href="#">庭球場</a>
</body></html>`

	c, ok, err := NewScorer().FindBestCandidate(html, topURL, routes.TennisCourtsTarget())
	require.NoError(t, err)
	require.True(t, ok)
	// Button and the last link score the same; the button comes first.
	assert.Equal(t, entity.TagButton, c.Tag)
	assert.Equal(t, "庭球場", c.Text)
	assert.Equal(t, entity.ElementRef{Selector: InteractiveSelector, Index: 4}, c.Ref)
}

func TestFindBestCandidateOnclickHint(t *testing.T) {
	routes := site.NewRoutes("https://example.test")
	html := `<html><body>
<a href="javascript:void(0)" onclick="doSubmit('WgR_JikantaibetsuAkiJoukyou')">表示</a>
<a href="#">時間帯別</a>
</body></html>`

	c, ok, err := NewScorer().FindBestCandidate(html, topURL, routes.DetailTarget())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 0, c.Ref.Index)
	assert.Equal(t, 60, c.Score)
}

func TestFindBestCandidateInputValue(t *testing.T) {
	html := `<form><input type="submit" value="テニスコートを探す"></form>`
	target := entity.NavigationTarget{TextHints: []entity.TextHint{{Text: "テニスコート", Weight: 30}}}

	c, ok, err := NewScorer().FindBestCandidate(html, topURL, target)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entity.TagInput, c.Tag)
	assert.Equal(t, 30, c.Score)
}

func TestFindBestCandidateNone(t *testing.T) {
	routes := site.NewRoutes("https://example.test")
	html := `<html><body><a href="/a">お知らせ</a><button>検索</button></body></html>`

	c, ok, err := NewScorer().FindBestCandidate(html, topURL, routes.TennisCourtsTarget())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, c)
}

func TestCandidatesRanked(t *testing.T) {
	target := entity.NavigationTarget{TextHints: []entity.TextHint{
		{Text: "庭球", Weight: 10},
		{Text: "庭球場", Weight: 30},
	}}
	html := `<a>庭球</a><a>庭球場</a><span>庭球場</span>`

	got, err := NewScorer().Candidates(html, topURL, target)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 50, got[0].Score)
	assert.Equal(t, 1, got[0].Ref.Index)
	assert.Equal(t, 20, got[1].Score)
}

func TestFindBestCandidateIgnoresSelfLinks(t *testing.T) {
	routes := site.NewRoutes("https://example.test")
	calendarURL := routes.CalendarURL()
	html := `<html><body><table><tr>
<td><a href="#">×</a></td>
<td><a href="javascript:void(0)">×</a></td>
<td><a href="` + calendarURL + `#top">×</a></td>
<td><a href="/Web/Yoyaku/WgR_ShisetsubetsuAkiJoukyou">×</a></td>
</tr></table></body></html>`

	got, err := NewScorer().Candidates(html, calendarURL, routes.TennisCourtsTarget())
	require.NoError(t, err)
	assert.Empty(t, got, "links back to the current page never match the URL hint")

	got, err = NewScorer().Candidates(html, topURL, routes.TennisCourtsTarget())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3, got[0].Ref.Index)
	assert.Equal(t, 110, got[0].Score)
	assert.Equal(t, "#", describeHref(t, `<a href="#">x</a>`, calendarURL))
}

func describeHref(t *testing.T, html, pageURL string) string {
	t.Helper()
	got, err := NewScorer().Candidates(html, pageURL, entity.NavigationTarget{TextHints: []entity.TextHint{{Text: "x", Weight: 30}}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	return got[0].Href
}
