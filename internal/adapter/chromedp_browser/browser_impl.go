package chromedp_browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/user/court-watch/internal/entity"
	"github.com/user/court-watch/internal/repository"
)

const defaultSettleDelay = 1500 * time.Millisecond

// Options configures one browser instance.
type Options struct {
	Headless        bool
	ProxyServer     string
	ProxyUsername   string
	ProxyPassword   string
	UserAgent       string
	PageLoadTimeout time.Duration
	// SettleDelay is waited after a click or history step before the page is read.
	SettleDelay time.Duration
	Logger      *slog.Logger
}

// ChromedpBrowser drives a single Chrome tab.
type ChromedpBrowser struct {
	ctx    context.Context
	opts   Options
	logger *slog.Logger
	status atomic.Int64
}

// NewChromedpBrowser starts Chrome and opens one tab. The returned close
// function shuts the browser down.
func NewChromedpBrowser(opts Options) (repository.BrowserRepository, func(), error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 120 * time.Second
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("lang", "ja-JP"),
		chromedp.WindowSize(1366, 900),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			opts.Logger.Debug(fmt.Sprintf(format, args...))
		}),
		chromedp.WithErrorf(func(format string, args ...any) {
			opts.Logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	closeFn := func() {
		tabCancel()
		allocCancel()
	}

	b := &ChromedpBrowser{ctx: tabCtx, opts: opts, logger: opts.Logger}
	chromedp.ListenTarget(tabCtx, b.onEvent)

	startCtx, cancel := context.WithTimeout(tabCtx, opts.PageLoadTimeout)
	defer cancel()
	err := chromedp.Run(startCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "ja-JP,ja;q=0.9"}),
		fetch.Enable().
			WithPatterns([]*fetch.RequestPattern{{URLPattern: "*"}}).
			WithHandleAuthRequests(opts.ProxyUsername != ""),
	)
	if err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("start chrome: %w", err)
	}
	opts.Logger.Info("Browser started", "headless", opts.Headless, "proxy", opts.ProxyServer != "")
	return b, closeFn, nil
}

// onEvent runs on the event loop of the tab; commands must be issued from
// another goroutine.
func (b *ChromedpBrowser) onEvent(ev any) {
	switch ev := ev.(type) {
	case *network.EventResponseReceived:
		if ev.Type == network.ResourceTypeDocument && ev.Response != nil {
			b.status.Store(ev.Response.Status)
		}
	case *network.EventLoadingFailed:
		if !isNoise(ev.ErrorText) {
			b.logger.Debug("Request failed", "type", ev.Type, "error", ev.ErrorText, "canceled", ev.Canceled)
		}
	case *fetch.EventRequestPaused:
		go b.do(func(ctx context.Context) error {
			if ev.Request != nil && shouldBlock(ev.ResourceType, ev.Request.URL) {
				return fetch.FailRequest(ev.RequestID, network.ErrorReasonBlockedByClient).Do(ctx)
			}
			return fetch.ContinueRequest(ev.RequestID).Do(ctx)
		})
	case *fetch.EventAuthRequired:
		go b.do(func(ctx context.Context) error {
			return fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
				Response: fetch.AuthChallengeResponseResponseProvideCredentials,
				Username: b.opts.ProxyUsername,
				Password: b.opts.ProxyPassword,
			}).Do(ctx)
		})
	}
}

func (b *ChromedpBrowser) do(fn func(ctx context.Context) error) {
	c := chromedp.FromContext(b.ctx)
	if c == nil || c.Target == nil {
		return
	}
	if err := fn(cdp.WithExecutor(b.ctx, c.Target)); err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Debug("Fetch command failed", "error", err)
	}
}

// run executes actions on the tab, bounded by the page load timeout and by ctx.
func (b *ChromedpBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(b.ctx, b.opts.PageLoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (b *ChromedpBrowser) Navigate(ctx context.Context, url string) (entity.PageResponse, error) {
	b.status.Store(0)
	runCtx, cancel := context.WithTimeout(b.ctx, b.opts.PageLoadTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	resp, err := chromedp.RunResponse(runCtx, chromedp.Navigate(url))
	if err != nil {
		if ctx.Err() != nil {
			return entity.PageResponse{}, ctx.Err()
		}
		return entity.PageResponse{}, err
	}
	var status int
	if resp != nil {
		status = int(resp.Status)
	}
	var final string
	if err := b.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery), chromedp.Location(&final)); err != nil {
		return entity.PageResponse{}, err
	}
	return entity.PageResponse{Status: status, FinalURL: final}, nil
}

func (b *ChromedpBrowser) Click(ctx context.Context, ref entity.ElementRef) (entity.PageResponse, error) {
	selector, err := json.Marshal(ref.Selector)
	if err != nil {
		return entity.PageResponse{}, err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelectorAll(%s)[%d];
		if (!el) return false;
		el.scrollIntoView({block: "center"});
		el.click();
		return true;
	})()`, selector, ref.Index)

	b.status.Store(0)
	var clicked bool
	if err := b.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return entity.PageResponse{}, fmt.Errorf("click: %w", err)
	}
	if !clicked {
		return entity.PageResponse{}, fmt.Errorf("click: no element %s[%d]", ref.Selector, ref.Index)
	}
	return b.settle(ctx)
}

func (b *ChromedpBrowser) Back(ctx context.Context) (entity.PageResponse, error) {
	b.status.Store(0)
	if err := b.run(ctx, chromedp.NavigateBack()); err != nil {
		return entity.PageResponse{}, fmt.Errorf("history back: %w", err)
	}
	return b.settle(ctx)
}

// settle waits for whatever the last action started to finish loading.
// Status is 0 when no new document was received.
func (b *ChromedpBrowser) settle(ctx context.Context) (entity.PageResponse, error) {
	t := time.NewTimer(b.opts.SettleDelay)
	select {
	case <-ctx.Done():
		t.Stop()
		return entity.PageResponse{}, ctx.Err()
	case <-t.C:
	}

	var final string
	err := b.run(ctx,
		chromedp.Poll(`document.readyState === "complete"`, nil,
			chromedp.WithPollingInterval(200*time.Millisecond),
			chromedp.WithPollingTimeout(b.opts.PageLoadTimeout)),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Location(&final),
	)
	if err != nil {
		return entity.PageResponse{}, fmt.Errorf("wait for page: %w", err)
	}
	return entity.PageResponse{Status: int(b.status.Load()), FinalURL: final}, nil
}

func (b *ChromedpBrowser) Content(ctx context.Context) (string, error) {
	var html string
	err := b.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (b *ChromedpBrowser) CurrentURL(ctx context.Context) (string, error) {
	var u string
	err := b.run(ctx, chromedp.Location(&u))
	return u, err
}

func (b *ChromedpBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 makes chromedp encode PNG.
	err := b.run(ctx, chromedp.FullScreenshot(&buf, 100))
	return buf, err
}
