// Package site holds everything that depends on the reservation site's routes
// and wording. Nothing else in the module hard-codes site URLs or labels.
package site

import (
	"net/url"
	"strings"

	"github.com/user/court-watch/internal/entity"
)

const (
	DefaultBaseURL = "https://resv.city.meguro.tokyo.jp"

	TopPath      = "/Web/Home/WgR_ModeSelect"
	CalendarPath = "/Web/Yoyaku/WgR_ShisetsubetsuAkiJoukyou"
	DetailPath   = "/Web/Yoyaku/WgR_JikantaibetsuAkiJoukyou"
	ErrorPath    = "/Web/Error/html/GoBackError.html"
)

// Routes resolves and recognises the site's pages.
type Routes struct {
	BaseURL string
}

func NewRoutes(baseURL string) Routes {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return Routes{BaseURL: strings.TrimRight(baseURL, "/")}
}

func (r Routes) TopURL() string      { return r.BaseURL + TopPath }
func (r Routes) CalendarURL() string { return r.BaseURL + CalendarPath }
func (r Routes) DetailURL() string   { return r.BaseURL + DetailPath }

func (r Routes) IsTop(u string) bool      { return pathContains(u, "WgR_ModeSelect") }
func (r Routes) IsCalendar(u string) bool { return pathContains(u, "WgR_ShisetsubetsuAkiJoukyou") }
func (r Routes) IsDetail(u string) bool   { return pathContains(u, "WgR_JikantaibetsuAkiJoukyou") }
func (r Routes) IsError(u string) bool {
	return pathContains(u, "GoBackError") || pathContains(u, "/Web/Error/")
}

func pathContains(raw, fragment string) bool {
	if p, err := url.Parse(raw); err == nil && p.Path != "" {
		return strings.Contains(p.Path, fragment)
	}
	return strings.Contains(raw, fragment)
}

// FacilityTypeSearchTarget is the "search by facility type" control on the top page.
func (r Routes) FacilityTypeSearchTarget() entity.NavigationTarget {
	return entity.NavigationTarget{
		Label:   "facility-type search",
		URLHint: r.CalendarURL(),
		TextHints: []entity.TextHint{
			{Text: "施設の種類から", Weight: 30},
			{Text: "施設種類", Weight: 30},
			{Text: "種類から探す", Weight: 20},
			{Text: "施設から探す", Weight: 20},
			{Text: "空き状況", Weight: 10},
		},
		OnclickHints: []string{"ShisetsubetsuAkiJoukyou", "ShisetsuShurui"},
		MustNotMatch: []string{"キャンセル", "取消", "ログアウト", "戻る"},
	}
}

// TennisCourtsTarget is the "tennis courts" control leading to the calendar.
func (r Routes) TennisCourtsTarget() entity.NavigationTarget {
	return entity.NavigationTarget{
		Label:   "tennis courts",
		URLHint: r.CalendarURL(),
		TextHints: []entity.TextHint{
			{Text: "庭球場", Weight: 30},
			{Text: "テニスコート", Weight: 30},
			{Text: "テニス", Weight: 20},
		},
		OnclickHints: []string{"ShisetsubetsuAkiJoukyou", "Teikyu"},
		MustNotMatch: []string{"キャンセル", "取消", "規約", "利用案内", "料金", "抽選"},
	}
}

// DetailTarget is the "availability by time band" control on the calendar page.
func (r Routes) DetailTarget() entity.NavigationTarget {
	return entity.NavigationTarget{
		Label:   "availability by time band",
		URLHint: r.DetailURL(),
		TextHints: []entity.TextHint{
			{Text: "時間帯別空き状況", Weight: 30},
			{Text: "時間帯別", Weight: 20},
			{Text: "空き状況", Weight: 10},
		},
		OnclickHints: []string{"Jikantaibetsu"},
		MustNotMatch: []string{"キャンセル", "取消", "戻る"},
	}
}
