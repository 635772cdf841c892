package roster

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

const sourceTimeout = 30 * time.Second

// openSource returns a reader for a roster source: a local path, an
// http(s):// URL, or an ftp:// URL. The caller closes the reader.
func openSource(ctx context.Context, source string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(source, "http://"), strings.HasPrefix(source, "https://"):
		return httpOpen(ctx, source)
	case strings.HasPrefix(source, "ftp://"):
		return ftpOpen(ctx, source)
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, eris.Wrap(err, "roster: open csv file")
		}
		return f, nil
	}
}

func httpOpen(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "roster: create request")
	}
	req.Header.Set("User-Agent", "content-pulse/1.0")

	client := &http.Client{Timeout: sourceTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "roster: fetch csv")
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, eris.Errorf("roster: csv fetch returned %d from %s", resp.StatusCode, rawURL)
	}
	return resp.Body, nil
}
