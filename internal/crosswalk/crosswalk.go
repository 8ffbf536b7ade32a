// Package crosswalk fetches and caches the TDX Hydro region-to-header
// mapping used by internal/rekey to compute a region's global id offset.
//
// Grounded on the original implementation's TDXPreprocessor.tdx_header_crosswalk
// (_examples/original_source/src/global_hydrography/preprocess.py), which
// lazily fetches a JSON object from a well-known S3 URL and caches it on a
// bare class attribute. That module-global cache is reworked here into a
// Loader instance owned by its caller, with first-touch guarded by
// sync.Once instead of an unsynchronized class attribute.
package crosswalk

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/wikiwatershed/tdxmnsi/internal/domain"
	"github.com/wikiwatershed/tdxmnsi/internal/rekey"
)

// DefaultURL is the well-known crosswalk endpoint used in production.
const DefaultURL = "https://geoglows-v2.s3-us-west-2.amazonaws.com/tdxhydro-processing/tdx_header_numbers.json"

// Loader fetches the region-header crosswalk once per Loader instance and
// serves it to callers thereafter. The zero value is not usable; construct
// with New.
type Loader struct {
	url    string
	client *http.Client

	once    sync.Once
	headers rekey.HeaderTable
	err     error
}

// New returns a Loader that fetches from url using client. If client is
// nil, http.DefaultClient is used.
func New(url string, client *http.Client) *Loader {
	if client == nil {
		client = http.DefaultClient
	}
	return &Loader{url: url, client: client}
}

// Load returns the cached header table, fetching it on the first call.
// Concurrent callers block on the same fetch; all observe the same result.
func (l *Loader) Load(ctx context.Context) (rekey.HeaderTable, error) {
	l.once.Do(func() {
		l.headers, l.err = fetch(ctx, l.client, l.url)
	})
	return l.headers, l.err
}

func fetch(ctx context.Context, client *http.Client, url string) (rekey.HeaderTable, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("crosswalk: building request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("crosswalk: fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("crosswalk: fetching %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("crosswalk: reading response: %w", err)
	}

	var raw map[string]json.Number
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("crosswalk: decoding response: %w", err)
	}

	headers := make(rekey.HeaderTable, len(raw))
	for k, v := range raw {
		region, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("crosswalk: region key %q is not an integer: %w", k, err)
		}
		header, err := v.Int64()
		if err != nil {
			return nil, fmt.Errorf("crosswalk: header value %q for region %s is not an integer: %w", v, k, err)
		}
		headers[domain.RegionCode(region)] = header
	}

	return headers, nil
}
