package chromedp_browser

import (
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultUserAgents are current desktop Chrome builds; the site serves its
// full calendar only to desktop browsers.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/138.0.0.0 Safari/537.36",
}

// IdentityManager hands out the proxy and user agent for each browser start.
type IdentityManager struct {
	proxies    []string
	userAgents []string
	mu         sync.Mutex
	proxyIndex int
	rnd        *rand.Rand
}

// NewIdentityManager accepts a comma separated proxy list; an empty list means no proxy.
func NewIdentityManager(proxyList string, userAgents []string) *IdentityManager {
	var proxies []string
	for _, p := range strings.Split(proxyList, ",") {
		if p = strings.TrimSpace(p); p != "" {
			proxies = append(proxies, p)
		}
	}
	if len(userAgents) == 0 {
		userAgents = DefaultUserAgents
	}
	return &IdentityManager{
		proxies:    proxies,
		userAgents: userAgents,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Proxy returns a proxy URL from the list, rotating sequentially.
func (m *IdentityManager) Proxy() string {
	if len(m.proxies) == 0 {
		return ""
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	proxy := m.proxies[m.proxyIndex]
	m.proxyIndex = (m.proxyIndex + 1) % len(m.proxies)
	return proxy
}

// UserAgent returns a random user agent string.
func (m *IdentityManager) UserAgent() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userAgents[m.rnd.Intn(len(m.userAgents))]
}
