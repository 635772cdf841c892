package resolve

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sells-group/content-pulse/pkg/google"
)

// PlacesDiscoverer discovers business websites via Google Places text search.
type PlacesDiscoverer struct {
	client google.Client
}

// NewPlacesDiscoverer creates a Places-backed discoverer.
func NewPlacesDiscoverer(client google.Client) *PlacesDiscoverer {
	return &PlacesDiscoverer{client: client}
}

// Discover searches Places for the business name and returns the first
// result carrying a website URI. Returns "" without error when no result
// has one.
func (d *PlacesDiscoverer) Discover(ctx context.Context, name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", eris.New("resolve: business name is required for discovery")
	}

	resp, err := d.client.TextSearch(ctx, name)
	if err != nil {
		return "", eris.Wrap(err, "resolve: places search")
	}

	for _, p := range resp.Places {
		if url := strings.TrimSpace(p.WebsiteURI); url != "" {
			return url, nil
		}
	}
	return "", nil
}
