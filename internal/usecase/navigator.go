package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/extractor"
	"github.com/user/court-watch/internal/page"
	"github.com/user/court-watch/internal/repository"
	"github.com/user/court-watch/internal/site"
	"github.com/user/court-watch/pkg/metrics"
	"github.com/user/court-watch/pkg/retry"
)

const (
	ScanModeDetail   = "detail"
	ScanModeCalendar = "calendar"

	stepTop         = "TOP"
	stepCalendar    = "CAL"
	stepCalendarHop = "CAL-CLICK"
	stepDetail      = "DETAIL"
)

// EngineConfig is the immutable configuration of one navigation run.
type EngineConfig struct {
	Routes     site.Routes
	Facilities []entity.Facility
	// ExtraDelay is waited once before the first navigation.
	ExtraDelay          time.Duration
	MaxMarksPerFacility int
	ScanMode            string
	// NavMinInterval is the minimum gap between two navigations or clicks.
	NavMinInterval time.Duration

	TopRetry         retry.Options
	CalendarRetry    retry.Options
	CalendarHopRetry retry.Options
	DetailRetry      retry.Options
}

// DefaultEngineConfig returns the retry budgets the site is known to need.
func DefaultEngineConfig(baseURL string) EngineConfig {
	return EngineConfig{
		Routes:              site.NewRoutes(baseURL),
		Facilities:          entity.DefaultFacilities(),
		MaxMarksPerFacility: 8,
		ScanMode:            ScanModeDetail,
		NavMinInterval:      1500 * time.Millisecond,
		TopRetry:            retry.Options{Tries: 3, BaseDelay: 1500 * time.Millisecond},
		CalendarRetry:       retry.Options{Tries: 5, BaseDelay: 2 * time.Second},
		CalendarHopRetry:    retry.Options{Tries: 3, BaseDelay: 2500 * time.Millisecond},
		DetailRetry:         retry.Options{Tries: 2, BaseDelay: 2 * time.Second},
	}
}

// Outcome is what a navigation run produced, also on failure.
type Outcome struct {
	Results     []entity.FacilityResult
	ReachedURL  string
	Diagnostics map[string]string
}

// Navigator drives the browser from the top page to the calendar and through
// each facility's detail pages, extracting slots on the way.
type Navigator struct {
	browser   repository.BrowserRepository
	artifacts repository.ArtifactRepository
	scorer    *page.Scorer
	extractor *extractor.Extractor
	cfg       EngineConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewNavigator creates a Navigator. artifacts and m may be nil.
func NewNavigator(
	browser repository.BrowserRepository,
	artifacts repository.ArtifactRepository,
	cfg EngineConfig,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Navigator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Navigator{
		browser:   browser,
		artifacts: artifacts,
		scorer:    page.NewScorer(),
		extractor: extractor.New(),
		cfg:       cfg,
		metrics:   m,
		logger:    logger,
	}
}

// pageView is the verified state of the current page.
type pageView struct {
	URL   string
	HTML  string
	State entity.PageState
}

// session holds the mutable state of one Run.
type session struct {
	*Navigator
	limiter *rate.Limiter
	out     *Outcome
}

// Run executes the whole navigation. The returned Outcome is never nil.
func (n *Navigator) Run(ctx context.Context) (*Outcome, error) {
	limit := rate.Inf
	if n.cfg.NavMinInterval > 0 {
		limit = rate.Every(n.cfg.NavMinInterval)
	}
	s := &session{
		Navigator: n,
		limiter:   rate.NewLimiter(limit, 1),
		out:       &Outcome{Diagnostics: make(map[string]string)},
	}
	err := s.run(ctx)
	if err != nil {
		s.logger.Error("Navigation failed", "kind", entity.ErrorKind(err), "reached_url", s.out.ReachedURL, "error", err)
		// The error snapshot is taken even when ctx was cancelled.
		snapCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		s.snapshot(snapCtx, "99_error")
		cancel()
	}
	return s.out, err
}

func (s *session) run(ctx context.Context) error {
	if s.cfg.ExtraDelay > 0 {
		s.logger.Info("Extra delay before start", "delay", s.cfg.ExtraDelay)
		if err := sleep(ctx, s.cfg.ExtraDelay); err != nil {
			return err
		}
	}

	if err := s.loadTop(ctx); err != nil {
		return err
	}
	s.snapshot(ctx, "01_top")

	cal, err := s.reachCalendar(ctx)
	if err != nil {
		return err
	}
	s.snapshot(ctx, "02_calendar")
	s.logPresence(cal.HTML)

	if s.cfg.ScanMode == ScanModeCalendar {
		return s.extractCalendar(cal)
	}
	return s.visitDetails(ctx, cal)
}

func (s *session) loadTop(ctx context.Context) error {
	return retry.Do(ctx, stepTop, s.observed(stepTop, func(ctx context.Context, attempt int) error {
		_, err := s.navigate(ctx, stepTop, s.cfg.Routes.TopURL())
		return err
	}), s.retryOptions(s.cfg.TopRetry))
}

// reachCalendar tries the calendar URL directly, then the element hops from
// the top page. A hard block on either path ends the run.
func (s *session) reachCalendar(ctx context.Context) (pageView, error) {
	view, directErr := retry.DoValue(ctx, stepCalendar, observedValue(s, stepCalendar, func(ctx context.Context, attempt int) (pageView, error) {
		return s.loadCalendar(ctx)
	}), s.retryOptions(s.cfg.CalendarRetry))
	if directErr == nil {
		return view, nil
	}
	if isFatal(directErr) {
		return pageView{}, directErr
	}
	s.logger.Warn("Direct calendar load failed, falling back to element navigation", "error", directErr)

	view, hopErr := retry.DoValue(ctx, stepCalendarHop, observedValue(s, stepCalendarHop, func(ctx context.Context, attempt int) (pageView, error) {
		return s.hopToCalendar(ctx)
	}), s.retryOptions(s.cfg.CalendarHopRetry))
	if hopErr == nil {
		return view, nil
	}
	if isFatal(hopErr) {
		return pageView{}, hopErr
	}
	return pageView{}, fmt.Errorf("calendar unreachable: %w", errors.Join(directErr, hopErr))
}

func (s *session) loadCalendar(ctx context.Context) (pageView, error) {
	view, err := s.navigate(ctx, stepCalendar, s.cfg.Routes.CalendarURL())
	if err != nil {
		return view, err
	}
	if !s.cfg.Routes.IsCalendar(view.URL) {
		return view, fmt.Errorf("%w: expected calendar, landed on %s", entity.ErrNavigationMismatch, view.URL)
	}
	return view, nil
}

func (s *session) hopToCalendar(ctx context.Context) (pageView, error) {
	view, err := s.navigate(ctx, stepCalendarHop, s.cfg.Routes.TopURL())
	if err != nil {
		return view, err
	}

	// The facility-type search hop is optional; some top pages link the calendar directly.
	if next, ok, err := s.hop(ctx, view, s.cfg.Routes.FacilityTypeSearchTarget()); err != nil {
		return next, err
	} else if ok {
		view = next
	}
	if s.cfg.Routes.IsCalendar(view.URL) {
		return view, nil
	}

	next, ok, err := s.hop(ctx, view, s.cfg.Routes.TennisCourtsTarget())
	if err != nil {
		return next, err
	}
	if !ok {
		return view, fmt.Errorf("%w: no candidate for tennis courts on %s", entity.ErrNavigationMismatch, view.URL)
	}
	if !s.cfg.Routes.IsCalendar(next.URL) {
		return next, fmt.Errorf("%w: expected calendar after tennis courts, landed on %s", entity.ErrNavigationMismatch, next.URL)
	}
	return next, nil
}

// hop clicks the best candidate for target on the current page. ok is false
// when the page offers no candidate.
func (s *session) hop(ctx context.Context, from pageView, target entity.NavigationTarget) (pageView, bool, error) {
	c, ok, err := s.scorer.FindBestCandidate(from.HTML, from.URL, target)
	if err != nil {
		return from, false, err
	}
	if !ok {
		s.logger.Info("No candidate", "target", target.Label, "url", from.URL)
		return from, false, nil
	}
	if s.logger.Enabled(ctx, slog.LevelDebug) {
		ranked, _ := s.scorer.Candidates(from.HTML, from.URL, target)
		s.logger.Debug("Candidates ranked", "target", target.Label, "count", len(ranked))
	}
	s.logger.Info("Clicking candidate", "target", target.Label, "text", c.Text, "score", c.Score, "index", c.Ref.Index)

	view, err := s.click(ctx, target.Label, c.Ref)
	return view, true, err
}

// extractCalendar reads row-level marks straight from the calendar regions.
func (s *session) extractCalendar(cal pageView) error {
	regions, err := s.extractor.CalendarMarks(cal.HTML, s.cfg.Facilities)
	if err != nil {
		return err
	}
	for _, fm := range regions {
		res := entity.FacilityResult{Facility: fm.Facility.Key}
		for _, m := range fm.Marks {
			res.Slots = append(res.Slots, entity.SlotRecord{
				Facility:  fm.Facility.Key,
				Date:      m.Date,
				Court:     m.Court,
				RawMarker: m.Symbol,
				RawLine:   strings.TrimSpace(m.Date + " " + m.RowText),
				Mode:      entity.ModeRow,
			})
		}
		res.Skipped = len(res.Slots) == 0
		if res.Skipped {
			s.logger.Info("Facility skipped", "facility", fm.Facility.Key, "region_found", fm.Found)
		}
		s.out.Results = append(s.out.Results, res)
	}
	return nil
}

// visitDetails opens up to MaxMarksPerFacility marked cells per facility and
// extracts the detail page behind each of them.
func (s *session) visitDetails(ctx context.Context, cal pageView) error {
	for _, f := range s.cfg.Facilities {
		res := entity.FacilityResult{Facility: f.Key}

		for i := 0; i < s.cfg.MaxMarksPerFacility; i++ {
			marks, found, err := s.marksFor(cal.HTML, f)
			if err != nil {
				return err
			}
			if i == 0 && len(marks) == 0 {
				s.logger.Info("Facility skipped", "facility", f.Key, "region_found", found)
				res.Skipped = true
				break
			}
			if i >= len(marks) {
				break
			}

			slots, err := retry.DoValue(ctx, stepDetail, observedValue(s, stepDetail, func(ctx context.Context, attempt int) ([]entity.SlotRecord, error) {
				return s.detailCycle(ctx, f, i, attempt)
			}), s.retryOptions(s.cfg.DetailRetry))
			if err != nil {
				return fmt.Errorf("facility %s mark %d: %w", f.Key, i+1, err)
			}
			res.Slots = append(res.Slots, slots...)

			back, err := s.backToCalendar(ctx)
			if err != nil {
				return err
			}
			cal = back
		}
		s.logger.Info("Facility done", "facility", f.Key, "slots", len(res.Slots), "skipped", res.Skipped)
		s.out.Results = append(s.out.Results, res)
	}
	return nil
}

func (s *session) marksFor(calendarHTML string, f entity.Facility) ([]extractor.Mark, bool, error) {
	regions, err := s.extractor.CalendarMarks(calendarHTML, []entity.Facility{f})
	if err != nil {
		return nil, false, err
	}
	return regions[0].Marks, regions[0].Found, nil
}

// detailCycle opens the index-th mark of facility f and extracts its slots.
// A retried attempt first returns to a freshly verified calendar.
func (s *session) detailCycle(ctx context.Context, f entity.Facility, index, attempt int) ([]entity.SlotRecord, error) {
	cal, err := s.currentCalendar(ctx, attempt > 1)
	if err != nil {
		return nil, err
	}
	marks, _, err := s.marksFor(cal.HTML, f)
	if err != nil {
		return nil, err
	}
	if index >= len(marks) {
		return nil, fmt.Errorf("%w: mark %d of %s no longer on calendar", entity.ErrNavigationMismatch, index+1, f.Key)
	}
	mark := marks[index]
	s.logger.Info("Opening mark", "facility", f.Key, "date", mark.Date, "court", mark.Court, "symbol", mark.Symbol)

	view, err := s.click(ctx, stepDetail, mark.Ref)
	if err != nil {
		return nil, err
	}

	// Selecting a cell can leave the browser on the calendar; the detail
	// button then has to be pressed separately.
	if s.cfg.Routes.IsCalendar(view.URL) {
		next, ok, err := s.hop(ctx, view, s.cfg.Routes.DetailTarget())
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: still on calendar and no detail control", entity.ErrNavigationMismatch)
		}
		view = next
	}
	if s.cfg.Routes.IsCalendar(view.URL) || s.cfg.Routes.IsError(view.URL) {
		return nil, fmt.Errorf("%w: expected detail page, landed on %s", entity.ErrNavigationMismatch, view.URL)
	}

	s.snapshot(ctx, fmt.Sprintf("03_detail_%s_%d", f.Key, index+1))
	return s.extractVerified(view, f.Key)
}

// extractVerified parses slots from a page only if it was classified valid.
func (s *session) extractVerified(view pageView, facility string) ([]entity.SlotRecord, error) {
	if view.State != entity.PageValid {
		return nil, fmt.Errorf("%w: %s at %s", entity.ErrUnverifiedPage, view.State, view.URL)
	}
	slots, err := s.extractor.ExtractSlots(view.HTML, facility)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Slots extracted", "facility", facility, "url", view.URL, "slots", len(slots))
	return slots, nil
}

// currentCalendar returns the calendar page, reloading it when forced or when
// the browser is somewhere else.
func (s *session) currentCalendar(ctx context.Context, force bool) (pageView, error) {
	if !force {
		view, err := s.inspect(ctx, entity.PageResponse{})
		if err != nil {
			return view, err
		}
		if view.State == entity.PageHardBlock {
			return view, fmt.Errorf("%s: %w at %s", stepDetail, entity.ErrHardBlock, view.URL)
		}
		if view.State == entity.PageValid && s.cfg.Routes.IsCalendar(view.URL) {
			return view, nil
		}
	}
	return s.backToCalendar(ctx)
}

// backToCalendar tries history back, then a fresh calendar load, then the
// full calendar entry.
func (s *session) backToCalendar(ctx context.Context) (pageView, error) {
	if err := s.pace(ctx); err != nil {
		return pageView{}, err
	}
	resp, err := s.browser.Back(ctx)
	if err == nil {
		view, verr := s.inspect(ctx, resp)
		if verr != nil {
			return view, verr
		}
		if view.State == entity.PageHardBlock {
			return view, fmt.Errorf("back: %w at %s", entity.ErrHardBlock, view.URL)
		}
		if view.State == entity.PageValid && s.cfg.Routes.IsCalendar(view.URL) {
			return view, nil
		}
		s.logger.Info("History back did not return to calendar", "url", view.URL, "state", view.State)
	} else {
		s.logger.Info("History back failed", "error", err)
	}

	view, err := s.loadCalendar(ctx)
	if err == nil {
		return view, nil
	}
	if isFatal(err) {
		return view, err
	}
	s.logger.Warn("Fresh calendar load failed, re-entering", "error", err)
	return s.reachCalendar(ctx)
}

// navigate loads url and requires a valid page.
func (s *session) navigate(ctx context.Context, step, url string) (pageView, error) {
	if err := s.pace(ctx); err != nil {
		return pageView{}, err
	}
	s.logger.Info("Navigating", "step", step, "url", url)
	resp, err := s.browser.Navigate(ctx, url)
	if err != nil {
		return pageView{}, fmt.Errorf("%s: navigate %s: %w", step, url, err)
	}
	return s.verify(ctx, step, resp)
}

// click activates ref and requires a valid page afterwards.
func (s *session) click(ctx context.Context, step string, ref entity.ElementRef) (pageView, error) {
	if err := s.pace(ctx); err != nil {
		return pageView{}, err
	}
	resp, err := s.browser.Click(ctx, ref)
	if err != nil {
		return pageView{}, fmt.Errorf("%s: click %s[%d]: %w", step, ref.Selector, ref.Index, err)
	}
	return s.verify(ctx, step, resp)
}

func (s *session) verify(ctx context.Context, step string, resp entity.PageResponse) (pageView, error) {
	view, err := s.inspect(ctx, resp)
	if err != nil {
		return view, err
	}
	switch view.State {
	case entity.PageValid:
		return view, nil
	case entity.PageHardBlock:
		return view, fmt.Errorf("%s: %w at %s (status %d)", step, entity.ErrHardBlock, view.URL, resp.Status)
	default:
		return view, fmt.Errorf("%s: page classified %s at %s", step, view.State, view.URL)
	}
}

// inspect reads and classifies the current page.
func (s *session) inspect(ctx context.Context, resp entity.PageResponse) (pageView, error) {
	html, err := s.browser.Content(ctx)
	if err != nil {
		return pageView{}, fmt.Errorf("read page: %w", err)
	}
	url := resp.FinalURL
	if url == "" {
		if url, err = s.browser.CurrentURL(ctx); err != nil {
			return pageView{}, fmt.Errorf("read url: %w", err)
		}
	}
	text, err := page.VisibleText(html)
	if err != nil {
		return pageView{}, err
	}

	state := page.Classify(text, resp.Status)
	if state == entity.PageValid && s.cfg.Routes.IsError(url) {
		state = entity.PageSoftError
	}
	s.out.ReachedURL = url
	s.logger.Debug("Page classified", "url", url, "status", resp.Status, "state", state)
	return pageView{URL: url, HTML: html, State: state}, nil
}

func (s *session) pace(ctx context.Context) error {
	return s.limiter.Wait(ctx)
}

// snapshot stores the current page under name. Failures only cost diagnostics.
func (s *session) snapshot(ctx context.Context, name string) {
	if s.artifacts == nil {
		return
	}
	html, err := s.browser.Content(ctx)
	if err != nil {
		s.logger.Debug("Snapshot html failed", "name", name, "error", err)
	}
	png, err := s.browser.Screenshot(ctx)
	if err != nil {
		s.logger.Debug("Snapshot screenshot failed", "name", name, "error", err)
	}
	paths, err := s.artifacts.Save(ctx, name, html, png)
	if err != nil {
		s.logger.Debug("Snapshot save failed", "name", name, "error", err)
		return
	}
	s.out.Diagnostics["artifact."+name] = strings.Join(paths, ",")
}

func (s *session) logPresence(calendarHTML string) {
	present, err := extractor.Present(calendarHTML, s.cfg.Facilities)
	if err != nil {
		return
	}
	for _, f := range s.cfg.Facilities {
		s.out.Diagnostics["presence."+f.Key] = strconv.FormatBool(present[f.Key])
	}
	s.logger.Info("Calendar presence", "facilities", present)
}

func (s *session) retryOptions(o retry.Options) retry.Options {
	if o.Logger == nil {
		o.Logger = s.logger
	}
	return o
}

func (s *session) observed(step string, fn func(context.Context, int) error) func(context.Context, int) error {
	return func(ctx context.Context, attempt int) error {
		err := fn(ctx, attempt)
		if s.metrics != nil {
			s.metrics.ObserveNavigation(step, err)
		}
		return err
	}
}

func observedValue[T any](s *session, step string, fn func(context.Context, int) (T, error)) func(context.Context, int) (T, error) {
	return func(ctx context.Context, attempt int) (T, error) {
		v, err := fn(ctx, attempt)
		if s.metrics != nil {
			s.metrics.ObserveNavigation(step, err)
		}
		return v, err
	}
}

// isFatal reports errors that must not trigger another navigation path.
func isFatal(err error) bool {
	return errors.Is(err, entity.ErrHardBlock) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
