package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/karwei/ntfywatch/config"
	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	return NewClient(fxtest.NewLifecycle(t), &config.Config{}, zap.NewNop(), http.DefaultTransport)
}

func collect(t *testing.T, c *Client, baseURL, topic, since string, creds *models.User) ([]*wire.Message, error) {
	t.Helper()
	var msgs []*wire.Message
	err := c.Poll(context.Background(), creds, baseURL, topic, since, func(m *wire.Message) error {
		msgs = append(msgs, m)
		return nil
	})
	return msgs, err
}

func TestPoll(t *testing.T) {
	var gotPath, gotSince, gotPoll string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSince = r.URL.Query().Get("since")
		gotPoll = r.URL.Query().Get("poll")
		fmt.Fprintln(w, `{"id":"m1","time":100,"event":"message","topic":"alerts"}`)
		fmt.Fprintln(w, `{"id":"k1","time":101,"event":"keepalive","topic":"alerts"}`)
		fmt.Fprintln(w, `{"id":"m2","time":200,"event":"message","topic":"alerts"}`)
	}))
	defer srv.Close()

	msgs, err := collect(t, newTestClient(t), srv.URL, "alerts", "all", nil)
	require.NoError(t, err)

	assert.Equal(t, "/alerts/json", gotPath)
	assert.Equal(t, "all", gotSince)
	assert.Equal(t, "1", gotPoll)
	// Keepalive chatter is dropped at decode and never reaches the callback.
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestPoll_EmptySinceDefaultsToAll(t *testing.T) {
	var gotSince string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSince = r.URL.Query().Get("since")
	}))
	defer srv.Close()

	_, err := collect(t, newTestClient(t), srv.URL, "alerts", "", nil)
	require.NoError(t, err)
	assert.Equal(t, SinceAll, gotSince)
}

func TestPoll_BasicAuth(t *testing.T) {
	var user, pass string
	var ok bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok = r.BasicAuth()
	}))
	defer srv.Close()

	creds := &models.User{Username: "phil", Password: "secret"}
	_, err := collect(t, newTestClient(t), srv.URL, "alerts", "all", creds)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "phil", user)
	assert.Equal(t, "secret", pass)
}

func TestPoll_ServerErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := collect(t, newTestClient(t), srv.URL, "alerts", "all", nil)
	assert.Error(t, err)
}

func TestFetchByID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "m1" {
			fmt.Fprintln(w, `{"id":"m1","time":100,"event":"message","topic":"alerts","message":"hello"}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(t)

	msg, err := c.FetchByID(context.Background(), nil, srv.URL, "alerts", "m1")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message)

	_, err = c.FetchByID(context.Background(), nil, srv.URL, "alerts", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPublish(t *testing.T) {
	var gotTitle, gotPriority, gotTags, gotBody, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotTitle = r.Header.Get("Title")
		gotPriority = r.Header.Get("Priority")
		gotTags = r.Header.Get("Tags")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
	}))
	defer srv.Close()

	c := newTestClient(t)
	err := c.Publish(context.Background(), nil, srv.URL, "alerts", "disk is full", "alert", 5, []string{"warning", "disk"})
	require.NoError(t, err)

	assert.Equal(t, "/alerts", gotPath)
	assert.Equal(t, "alert", gotTitle)
	assert.Equal(t, "5", gotPriority)
	assert.Equal(t, "warning,disk", gotTags)
	assert.Equal(t, "disk is full", gotBody)
}

func TestPublish_TransportFailureSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := newTestClient(t)
	err := c.Publish(context.Background(), nil, srv.URL, "alerts", "hi", "", 3, nil)
	assert.Error(t, err)
}
