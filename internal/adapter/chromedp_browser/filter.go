package chromedp_browser

import (
	"net/url"
	"path"
	"strings"

	"github.com/chromedp/cdproto/network"
)

var blockedExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".woff": true, ".woff2": true, ".ttf": true,
}

// shouldBlock reports requests the engine never needs: images, media, fonts.
func shouldBlock(resourceType network.ResourceType, rawURL string) bool {
	switch resourceType {
	case network.ResourceTypeImage, network.ResourceTypeMedia, network.ResourceTypeFont:
		return true
	}
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	return blockedExtensions[strings.ToLower(path.Ext(p))]
}

// isNoise filters request failures that are expected with resource blocking
// or slow third-party assets.
func isNoise(errorText string) bool {
	for _, s := range []string{"ERR_FAILED", "TIMED_OUT", "ERR_BLOCKED_BY_CLIENT", "ERR_ABORTED"} {
		if strings.Contains(errorText, s) {
			return true
		}
	}
	return false
}
