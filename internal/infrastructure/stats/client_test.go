package stats

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanosuguru/go-event-admission/internal/domain/stats"
)

func TestClient_RecordHit(t *testing.T) {
	var received hitDto
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/hit", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	err := client.RecordHit(context.Background(), stats.Hit{
		App: "event-admission", URI: "/events/1", IP: "192.0.2.1", Timestamp: ts,
	})
	require.NoError(t, err)

	assert.Equal(t, "event-admission", received.App)
	assert.Equal(t, "/events/1", received.URI)
	assert.Equal(t, "192.0.2.1", received.IP)
	assert.Equal(t, "2025-06-01 12:30:00", received.Timestamp)
}

func TestClient_RecordHit_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	err := client.RecordHit(context.Background(), stats.Hit{App: "a", URI: "/events/1", IP: "ip", Timestamp: time.Now()})
	assert.Error(t, err)
}

func TestClient_CountViews(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/stats", r.URL.Path)
		assert.Equal(t, "/events/1", r.URL.Query().Get("uris"))
		assert.Equal(t, "true", r.URL.Query().Get("unique"))
		json.NewEncoder(w).Encode([]viewStatsDto{{App: "event-admission", URI: "/events/1", Hits: 17}})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	views, err := client.CountViews(context.Background(), "/events/1", time.Now().Add(-time.Hour), time.Now(), true)
	require.NoError(t, err)
	assert.Equal(t, int64(17), views)
}

func TestClient_CountViews_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]viewStatsDto{})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	views, err := client.CountViews(context.Background(), "/events/99", time.Now().Add(-time.Hour), time.Now(), false)
	require.NoError(t, err)
	assert.Equal(t, int64(0), views)
}

func TestClient_CountViews_Unavailable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", 200*time.Millisecond)
	_, err := client.CountViews(context.Background(), "/events/1", time.Now().Add(-time.Hour), time.Now(), false)
	assert.Error(t, err)
}
