package profiles

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"strings"

	"github.com/playperu/cluequiz/internal/cluequiz"
)

// fetcher reads a file relative to the data root.
type fetcher interface {
	fetch(ctx context.Context, name string) ([]byte, error)
}

type fsFetcher struct {
	fsys fs.FS
}

func (f fsFetcher) fetch(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return b, nil
}

type httpFetcher struct {
	base   string
	client *http.Client
}

func (f httpFetcher) fetch(ctx context.Context, name string) ([]byte, error) {
	u, err := url.JoinPath(f.base, strings.Split(name, "/")...)
	if err != nil {
		return nil, fmt.Errorf("building url for %s: %w", name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", name, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, cluequiz.Network(err, "Fetching %s failed", name)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("fetching %s: %w", name, fs.ErrNotExist)
	case resp.StatusCode != http.StatusOK:
		return nil, cluequiz.Network(fmt.Errorf("status %d", resp.StatusCode), "Fetching %s failed", name)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cluequiz.Network(err, "Reading %s failed", name)
	}
	return b, nil
}
