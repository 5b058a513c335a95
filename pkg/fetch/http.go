package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grovetools/prodtrack/errors"
	"github.com/tidwall/gjson"
)

// HTTP fetches rows with GET <base>/<query>?<params> and extracts the row
// array at a gjson path of the JSON response.
type HTTP struct {
	base     string
	rowsPath string
	client   *http.Client
}

// NewHTTP returns an HTTP fetcher. An empty rowsPath reads the top-level
// array.
func NewHTTP(base, rowsPath string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTP{
		base:     strings.TrimRight(base, "/"),
		rowsPath: rowsPath,
		client:   &http.Client{Timeout: timeout},
	}
}

// Fetch implements Fetcher.
func (h *HTTP) Fetch(ctx context.Context, query string, params Params) ([]Row, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint(query, params), nil)
	if err != nil {
		return nil, errors.FetchFailed(query, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.FetchFailed(query, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.FetchFailed(query, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.FetchFailed(query, fmt.Errorf("unexpected status %d", resp.StatusCode)).
			WithDetail("status", resp.StatusCode)
	}
	if !gjson.ValidBytes(body) {
		return nil, errors.FetchFailed(query, fmt.Errorf("response is not valid JSON"))
	}

	result := gjson.ParseBytes(body)
	if h.rowsPath != "" {
		result = result.Get(h.rowsPath)
	}
	if !result.IsArray() {
		return nil, errors.FetchFailed(query, fmt.Errorf("no row array at %q", h.rowsPath))
	}

	var rows []Row
	var bad error
	result.ForEach(func(_, value gjson.Result) bool {
		m, ok := value.Value().(map[string]interface{})
		if !ok {
			bad = fmt.Errorf("row is not an object: %s", value.Raw)
			return false
		}
		rows = append(rows, Row(m))
		return true
	})
	if bad != nil {
		return nil, errors.FetchFailed(query, bad)
	}
	return rows, nil
}

func (h *HTTP) endpoint(query string, params Params) string {
	u := h.base + "/" + url.PathEscape(query)
	if len(params) == 0 {
		return u
	}
	values := url.Values{}
	for k, v := range params {
		values.Set(k, fmt.Sprint(v))
	}
	return u + "?" + values.Encode()
}
