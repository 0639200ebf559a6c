// Package harvest fetches contratação pages from the PNCP consulta API.
package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pncp-data/harvester/internal/config"
)

// Page is one page of the publicacao endpoint.
type Page struct {
	Data           []json.RawMessage `json:"data"`
	TotalPaginas   int               `json:"totalPaginas"`
	TotalRegistros int               `json:"totalRegistros"`
}

// Client issues paged requests against a single endpoint.
type Client struct {
	httpClient   *http.Client
	baseURL      string
	endpoint     string
	pageSize     int
	maxRetries   int
	retryBase    time.Duration
	requestDelay time.Duration
	logger       *slog.Logger

	sleep func(context.Context, time.Duration)
}

// NewClient builds a client from the source API configuration.
func NewClient(cfg config.Config, logger *slog.Logger) *Client {
	return &Client{
		httpClient:   &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		endpoint:     strings.TrimLeft(cfg.Endpoint, "/"),
		pageSize:     cfg.PageSize,
		maxRetries:   cfg.MaxRetries,
		retryBase:    cfg.RetryBaseDelay,
		requestDelay: cfg.RequestDelay,
		logger:       logger.With("component", "harvest"),
		sleep:        sleepCtx,
	}
}

// FetchPage retrieves one page of publications for a date and modality.
// date is YYYY-MM-DD; the API wants the compact YYYYMMDD form. An empty
// page (no records) comes back as a Page with zero totals, not an error.
func (c *Client) FetchPage(ctx context.Context, date string, modalidade, pagina int) (Page, error) {
	compact := strings.ReplaceAll(date, "-", "")

	params := url.Values{}
	params.Set("dataInicial", compact)
	params.Set("dataFinal", compact)
	params.Set("codigoModalidadeContratacao", strconv.Itoa(modalidade))
	params.Set("pagina", strconv.Itoa(pagina))
	params.Set("tamanhoPagina", strconv.Itoa(c.pageSize))

	reqURL := fmt.Sprintf("%s/%s?%s", c.baseURL, c.endpoint, params.Encode())

	page, err := c.getWithRetry(ctx, reqURL)
	if err != nil {
		return Page{}, fmt.Errorf("fetching page %d (date %s, modalidade %d): %w", pagina, date, modalidade, err)
	}

	if c.requestDelay > 0 {
		c.sleep(ctx, c.requestDelay)
	}
	return page, nil
}

func (c *Client) getOnce(ctx context.Context, reqURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Page{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNoContent:
		// The API signals "nothing published" with 204.
		return Page{}, nil
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Page{}, &httpError{status: resp.StatusCode, body: strings.TrimSpace(string(body))}
	}

	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("decoding response: %w", err)
	}
	return page, nil
}

// httpError carries the status code so the retry layer can tell client
// errors from server errors.
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string {
	if e.body == "" {
		return fmt.Sprintf("unexpected status %d", e.status)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
