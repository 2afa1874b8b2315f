package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ErrorIncludesBody(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer s.Close()

	c := NewClient(s.URL)
	_, err := c.Relay(context.Background(), 300, "")
	require.Error(t, err)
	got := err.Error()
	assert.NotEqual(t, byte('\n'), got[len(got)-1])
	assert.Contains(t, got, "400")
	assert.Contains(t, got, `"error":"nope"`)
}

func TestClient_RelayQuery(t *testing.T) {
	t.Parallel()

	var gotQuery string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		assert.Equal(t, "/relay", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"suffix":1,"hex":"0x01","kind":"unambiguous","text":"Alpha (0x01)","candidates":[]}`))
	}))
	defer s.Close()

	c := NewClient(s.URL + "/")
	resp, err := c.Relay(context.Background(), 1, "!00003000")
	require.NoError(t, err)
	assert.Equal(t, "owner=%2100003000&suffix=1", gotQuery)
	assert.Equal(t, "0x01", resp.Hex)
	assert.Equal(t, "Alpha (0x01)", resp.Text)
}

func TestClient_Node(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/nodes/!00001001", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"!00001001","short_name":"A","hop_text":"3 of 5 hops"}`))
	}))
	defer s.Close()

	d, err := NewClient(s.URL).Node(context.Background(), "!00001001")
	require.NoError(t, err)
	assert.Equal(t, "A", d.ShortName)
	assert.Equal(t, "3 of 5 hops", d.HopText)
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/healthz", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok","nodes":4,"updated_at":"2026-01-02T03:04:05Z"}`))
	}))
	defer s.Close()

	h, err := NewClient(s.URL).Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 4, h.Nodes)
	assert.Equal(t, 2026, h.UpdatedAt.Year())
}
