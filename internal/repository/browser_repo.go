package repository

import (
	"context"

	"github.com/user/court-watch/internal/entity"
)

// BrowserRepository defines the contract for the single page the engine drives.
// Implementations own exactly one tab; callers never use it concurrently.
type BrowserRepository interface {
	// Navigate loads url and waits until the document is ready.
	Navigate(ctx context.Context, url string) (entity.PageResponse, error)
	// Click activates the referenced element and waits for the page to settle.
	Click(ctx context.Context, ref entity.ElementRef) (entity.PageResponse, error)
	// Back goes one step back in history and waits for the page to settle.
	Back(ctx context.Context) (entity.PageResponse, error)
	// Content returns the serialized DOM of the current page.
	Content(ctx context.Context) (string, error)
	// CurrentURL returns the URL of the current page.
	CurrentURL(ctx context.Context) (string, error)
	// Screenshot captures the full current page as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
}
