package alerting

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPPriceSource_FetchPrice(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "EURUSD", r.URL.Query().Get("symbol"))
		assert.Equal(t, "H1", r.URL.Query().Get("timeframe"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"symbol":"EURUSD","price":1.0925,"timeframe":"H1"}`))
	}))
	defer server.Close()

	source := NewHTTPPriceSource(server.URL, 0)

	price, err := source.FetchPrice("EURUSD", "H1")
	require.NoError(t, err)
	assert.Equal(t, "1.0925", price.String())
}

func TestHTTPPriceSource_NonOKStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	source := NewHTTPPriceSource(server.URL, 0)

	_, err := source.FetchPrice("USDJPY", "H1")
	assert.ErrorIs(t, err, ErrPriceNotAvailable)
}

func TestHTTPPriceSource_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))
	defer server.Close()

	source := NewHTTPPriceSource(server.URL, 0)

	_, err := source.FetchPrice("USDJPY", "H1")
	assert.ErrorIs(t, err, ErrPriceNotAvailable)
}

func TestHTTPPriceSource_MissingPriceField(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"USDJPY","timeframe":"H1"}`))
	}))
	defer server.Close()

	source := NewHTTPPriceSource(server.URL, 0)

	_, err := source.FetchPrice("USDJPY", "H1")
	assert.ErrorIs(t, err, ErrPriceNotAvailable)
}

func TestHTTPPriceSource_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"symbol":"USDJPY","price":150.21}`))
	}))
	defer server.Close()

	source := NewHTTPPriceSource(server.URL, 20*time.Millisecond)

	_, err := source.FetchPrice("USDJPY", "H1")
	assert.ErrorIs(t, err, ErrPriceNotAvailable)
}

func TestHTTPPriceSource_ConnectionRefused(t *testing.T) {
	// Server closed before the request is made
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	source := NewHTTPPriceSource(server.URL, 0)

	_, err := source.FetchPrice("EURUSD", "H1")
	assert.ErrorIs(t, err, ErrPriceNotAvailable)
}
