// Package api is the HTTP client for the notification server: cursor polls,
// single-message fetches and publishes.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/carlmjohnson/requests"
	"github.com/karwei/ntfywatch/config"
	"github.com/karwei/ntfywatch/lib/models"
	"github.com/karwei/ntfywatch/lib/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// SinceAll polls the server's full buffer for a topic; used when no cursor
// exists yet.
const SinceAll = "all"

var ErrNotFound = errors.New("message not found")

type Client struct {
	log       *zap.Logger
	transport http.RoundTripper
	strict    bool
}

func NewClient(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, transport http.RoundTripper) *Client {
	return &Client{log: log, transport: transport, strict: cfg.StrictDecode}
}

// Poll streams messages for {base}/{topic} published after the cursor. fn is
// invoked per decoded message; messages delivered before a mid-stream failure
// stay delivered, so callers resume from their updated cursor on error.
func (c *Client) Poll(ctx context.Context, creds *models.User, baseURL, topic, since string, fn func(*wire.Message) error) error {
	if since == "" {
		since = SinceAll
	}
	return c.fetchStream(ctx, creds, baseURL, topic, map[string]string{"since": since}, fn)
}

// FetchByID resolves a poll-request signal into the actual message.
func (c *Client) FetchByID(ctx context.Context, creds *models.User, baseURL, topic, id string) (*wire.Message, error) {
	var found *wire.Message
	err := c.fetchStream(ctx, creds, baseURL, topic, map[string]string{"id": id}, func(m *wire.Message) error {
		if found == nil {
			found = m
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}

// Publish posts a message. Transport failures are returned to the caller, not
// swallowed, so user-facing surfaces can report them.
func (c *Client) Publish(ctx context.Context, creds *models.User, baseURL, topic, body, title string, priority int, tags []string) error {
	rb := requests.
		URL(baseURL).
		Pathf("/%s", topic).
		Transport(c.transport).
		BodyBytes([]byte(body))

	if title != "" {
		rb.Header("Title", title)
	}
	if priority != 0 && priority != models.DefaultPriority {
		rb.Header("Priority", strconv.Itoa(priority))
	}
	if len(tags) > 0 {
		rb.Header("Tags", strings.Join(tags, ","))
	}
	c.auth(rb, creds)

	return rb.Fetch(ctx)
}

func (c *Client) fetchStream(ctx context.Context, creds *models.User, baseURL, topic string, params map[string]string, fn func(*wire.Message) error) error {
	rb := requests.
		URL(baseURL).
		Pathf("/%s/json", topic).
		Param("poll", "1").
		Transport(c.transport)
	for k, v := range params {
		rb.Param(k, v)
	}
	c.auth(rb, creds)

	return rb.
		Handle(func(res *http.Response) error {
			result, err := wire.DecodeStream(res.Body, c.strict, fn)
			if result.Skipped > 0 {
				c.log.Sugar().Warnf("Skipped %d undecodable lines from %s/%s", result.Skipped, baseURL, topic)
			}
			return err
		}).
		Fetch(ctx)
}

func (c *Client) auth(rb *requests.Builder, creds *models.User) {
	if creds != nil && creds.Username != "" {
		rb.BasicAuth(creds.Username, creds.Password)
	}
}
