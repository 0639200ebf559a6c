package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pncp-data/harvester/internal/config"
	"github.com/pncp-data/harvester/internal/schema"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClient(serverURL string, maxRetries int) *Client {
	cfg := config.Config{
		BaseURL:        serverURL,
		Endpoint:       "contratacoes/publicacao",
		PageSize:       2,
		MaxRetries:     maxRetries,
		RetryBaseDelay: time.Millisecond,
		RequestDelay:   0,
		RequestTimeout: 5 * time.Second,
	}
	return NewClient(cfg, testLogger())
}

func pageBody(totalPages, totalRecords int, objetos ...string) string {
	records := make([]map[string]any, len(objetos))
	for i, o := range objetos {
		records[i] = map[string]any{"objetoCompra": o}
	}
	body, _ := json.Marshal(map[string]any{
		"data":           records,
		"totalPaginas":   totalPages,
		"totalRegistros": totalRecords,
	})
	return string(body)
}

func decodeAll(_ context.Context, raw []json.RawMessage) ([]schema.Record, error) {
	out := make([]schema.Record, 0, len(raw))
	for _, r := range raw {
		var rec schema.Record
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func TestFetchPageSendsExpectedParams(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, pageBody(1, 1, "caneta azul"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	page, err := c.FetchPage(context.Background(), "2025-08-15", 6, 1)
	require.NoError(t, err)

	assert.Contains(t, gotQuery, "dataInicial=20250815")
	assert.Contains(t, gotQuery, "dataFinal=20250815")
	assert.Contains(t, gotQuery, "codigoModalidadeContratacao=6")
	assert.Contains(t, gotQuery, "pagina=1")
	assert.Contains(t, gotQuery, "tamanhoPagina=2")
	assert.Equal(t, 1, page.TotalRegistros)
	assert.Len(t, page.Data, 1)
}

func TestFetchPageNoContentMeansEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 0)
	page, err := c.FetchPage(context.Background(), "2025-08-15", 6, 1)
	require.NoError(t, err)
	assert.Zero(t, page.TotalRegistros)
	assert.Empty(t, page.Data)
}

func TestFetchPartitionCollectsAllPagesInOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("pagina") {
		case "1":
			fmt.Fprint(w, pageBody(3, 5, "obj-1a", "obj-1b"))
		case "2":
			fmt.Fprint(w, pageBody(3, 5, "obj-2a", "obj-2b"))
		case "3":
			fmt.Fprint(w, pageBody(3, 5, "obj-3a"))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	defer srv.Close()

	h := NewHarvester(testClient(srv.URL, 0), 3, testLogger())
	records, err := h.FetchPartition(context.Background(), "2025-08-15", 8, decodeAll)
	require.NoError(t, err)

	objetos := make([]string, len(records))
	for i, r := range records {
		objetos[i] = r.ObjetoCompra
	}
	assert.Equal(t, []string{"obj-1a", "obj-1b", "obj-2a", "obj-2b", "obj-3a"}, objetos)
}

func TestFetchPartitionEmptyDay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pageBody(0, 0))
	}))
	defer srv.Close()

	h := NewHarvester(testClient(srv.URL, 0), 3, testLogger())
	records, err := h.FetchPartition(context.Background(), "2025-08-15", 8, decodeAll)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestFetchPageRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, pageBody(1, 1, "after retry"))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	page, err := c.FetchPage(context.Background(), "2025-08-15", 6, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Len(t, page.Data, 1)
}

func TestFetchPageGivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 2)
	_, err := c.FetchPage(context.Background(), "2025-08-15", 6, 1)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
	assert.Contains(t, err.Error(), "502")
}

func TestFetchPageClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5)
	_, err := c.FetchPage(context.Background(), "2025-08-15", 6, 1)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchPartitionPropagatesProcessorError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, pageBody(1, 1, "whatever"))
	}))
	defer srv.Close()

	h := NewHarvester(testClient(srv.URL, 0), 2, testLogger())
	boom := fmt.Errorf("processor exploded")
	_, err := h.FetchPartition(context.Background(), "2025-08-15", 8,
		func(context.Context, []json.RawMessage) ([]schema.Record, error) {
			return nil, boom
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
