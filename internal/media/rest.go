package media

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Thirdegree/TheSentinel/internal/sentinel"
)

// restClient gives every platform resolver the same endpoint composition and
// payload handling: URLs are built as
//
//	{apiBase}/{restBase joined by '/'}[/{suffix or endpointBase}]
//
// and responses are JSON. The raw payload is never partially kept: a non-2xx
// status or a decode failure discards everything.
type restClient struct {
	apiBase      string
	restBase     []string
	endpointBase string
	auth         url.Values
	client       *http.Client
}

func (c *restClient) endpointURL(suffix string) string {
	parts := append([]string{c.apiBase}, c.restBase...)
	switch {
	case suffix != "":
		parts = append(parts, suffix)
	case c.endpointBase != "":
		parts = append(parts, c.endpointBase)
	}
	return strings.Join(parts, "/")
}

// getJSON issues a GET against the composed endpoint and decodes the JSON
// payload into out. Auth parameters are merged into the query string.
func (c *restClient) getJSON(ctx context.Context, suffix string, query url.Values, out any) error {
	endpoint := c.endpointURL(suffix)

	q := url.Values{}
	for k, vs := range c.auth {
		q[k] = vs
	}
	for k, vs := range query {
		q[k] = vs
	}
	requestURL := endpoint
	if len(q) > 0 {
		requestURL += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", endpoint, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", sentinel.ErrRemoteUnavailable, endpoint, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: GET %s", sentinel.ErrNotFound, endpoint)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%w: GET %s: status %d", sentinel.ErrRemoteUnavailable, endpoint, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: malformed payload from %s: %v", sentinel.ErrRemoteUnavailable, endpoint, err)
	}
	return nil
}
