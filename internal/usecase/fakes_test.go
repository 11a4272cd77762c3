package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/repository"
	"github.com/user/court-watch/pkg/retry"
)

const testBase = "https://example.test"

type fakePage struct {
	HTML   string
	Status int
}

// fakeBrowser serves synthetic pages. Clicking an element follows its
// data-go attribute, else a real href; anything else leaves the page as is.
type fakeBrowser struct {
	mu sync.Mutex

	pages map[string]fakePage
	// direct overrides pages for Navigate only, so a URL can fail when typed
	// in but work when reached through the site.
	direct     map[string]fakePage
	backBroken bool

	history   []string
	current   fakePage
	navigated []string
	clicked   []string
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pages: map[string]fakePage{}, direct: map[string]fakePage{}}
}

func (b *fakeBrowser) add(u, html string) *fakeBrowser {
	b.pages[u] = fakePage{HTML: html, Status: 200}
	return b
}

func (b *fakeBrowser) Navigate(ctx context.Context, u string) (entity.PageResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.navigated = append(b.navigated, u)
	p, ok := b.direct[u]
	if !ok {
		if p, ok = b.pages[u]; !ok {
			return entity.PageResponse{}, fmt.Errorf("net::ERR_NAME_NOT_RESOLVED %s", u)
		}
	}
	return b.enter(u, p), nil
}

func (b *fakeBrowser) enter(u string, p fakePage) entity.PageResponse {
	b.history = append(b.history, u)
	b.current = p
	return entity.PageResponse{Status: p.Status, FinalURL: u}
}

func (b *fakeBrowser) Click(ctx context.Context, ref entity.ElementRef) (entity.PageResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(b.current.HTML))
	if err != nil {
		return entity.PageResponse{}, err
	}
	sel := doc.Find(ref.Selector).Eq(ref.Index)
	if sel.Length() == 0 {
		return entity.PageResponse{}, fmt.Errorf("no element %s[%d]", ref.Selector, ref.Index)
	}
	b.clicked = append(b.clicked, strings.TrimSpace(sel.Text()+sel.AttrOr("value", "")))

	cur := b.history[len(b.history)-1]
	dest := sel.AttrOr("data-go", "")
	if href := sel.AttrOr("href", ""); dest == "" && href != "" && href != "#" && !strings.HasPrefix(href, "javascript:") {
		dest = href
	}
	if dest == "" {
		return entity.PageResponse{Status: b.current.Status, FinalURL: cur}, nil
	}
	base, _ := url.Parse(cur)
	rel, err := url.Parse(dest)
	if err != nil {
		return entity.PageResponse{}, err
	}
	abs := base.ResolveReference(rel).String()
	p, ok := b.pages[abs]
	if !ok {
		return entity.PageResponse{}, fmt.Errorf("no page %s", abs)
	}
	return b.enter(abs, p), nil
}

func (b *fakeBrowser) Back(ctx context.Context) (entity.PageResponse, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.backBroken || len(b.history) < 2 {
		return entity.PageResponse{}, errors.New("cannot go back")
	}
	b.history = b.history[:len(b.history)-1]
	u := b.history[len(b.history)-1]
	b.current = b.pages[u]
	return entity.PageResponse{Status: b.current.Status, FinalURL: u}, nil
}

func (b *fakeBrowser) Content(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.current.HTML, nil
}

func (b *fakeBrowser) CurrentURL(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == 0 {
		return "about:blank", nil
	}
	return b.history[len(b.history)-1], nil
}

func (b *fakeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("png"), nil
}

func (b *fakeBrowser) count(u string) int {
	n := 0
	for _, v := range b.navigated {
		if v == u {
			n++
		}
	}
	return n
}

type memArtifacts struct {
	mu    sync.Mutex
	saved []string
}

func (a *memArtifacts) Save(ctx context.Context, name, html string, png []byte) ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.saved = append(a.saved, name)
	return []string{"mem/" + name + ".html", "mem/" + name + ".png"}, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []entity.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg entity.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.sent = append(m.sent, msg)
	return fmt.Sprintf("msg-%d", len(m.sent)), nil
}

type memNotificationStore struct {
	keys map[string]time.Duration
	err  error
}

func newMemNotificationStore() *memNotificationStore {
	return &memNotificationStore{keys: map[string]time.Duration{}}
}

func (s *memNotificationStore) MarkNotified(ctx context.Context, key string, expiry time.Duration) error {
	if s.err != nil {
		return s.err
	}
	s.keys[key] = expiry
	return nil
}

func (s *memNotificationStore) IsNotified(ctx context.Context, key string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.keys[key]
	return ok, nil
}

type memHistory struct {
	mu     sync.Mutex
	runs   []*entity.ScanRun
	slots  map[string][]entity.SlotRecord
	starts int
}

func newMemHistory() *memHistory {
	return &memHistory{slots: map[string][]entity.SlotRecord{}}
}

func (h *memHistory) StartRun(ctx context.Context, run *entity.ScanRun) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts++
	cp := *run
	h.runs = append(h.runs, &cp)
	return nil
}

func (h *memHistory) FinishRun(ctx context.Context, run *entity.ScanRun, slots []entity.SlotRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i, r := range h.runs {
		if r.ID == run.ID {
			cp := *run
			h.runs[i] = &cp
		}
	}
	h.slots[run.ID] = slots
	return nil
}

func (h *memHistory) LatestRun(ctx context.Context) (*entity.ScanRun, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.runs) == 0 {
		return nil, repository.ErrNotFound
	}
	return h.runs[len(h.runs)-1], nil
}

func (h *memHistory) SlotsForRun(ctx context.Context, runID string) ([]entity.SlotRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.slots[runID], nil
}

// testEngineConfig has the production retry budgets without the waiting.
func testEngineConfig() EngineConfig {
	cfg := DefaultEngineConfig(testBase)
	cfg.NavMinInterval = 0
	for _, o := range []*retry.Options{&cfg.TopRetry, &cfg.CalendarRetry, &cfg.CalendarHopRetry, &cfg.DetailRetry} {
		o.BaseDelay = 0
	}
	return cfg
}
