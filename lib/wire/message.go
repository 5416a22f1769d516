// Package wire implements the codec for the server's newline-delimited JSON
// stream and the flat string-map payload used by the push transport.
package wire

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/karwei/ntfywatch/lib/models"
	"github.com/tidwall/gjson"
)

var (
	ErrMissingField = errors.New("missing required field")
	ErrBadLine      = errors.New("malformed message line")
)

type Message struct {
	ID         string      `json:"id"`
	Time       int64       `json:"time"`
	Event      string      `json:"event"`
	Topic      string      `json:"topic"`
	Message    string      `json:"message,omitempty"`
	Title      string      `json:"title,omitempty"`
	Priority   int         `json:"priority,omitempty"`
	Tags       []string    `json:"tags,omitempty"`
	Actions    []Action    `json:"actions,omitempty"`
	Click      string      `json:"click,omitempty"`
	PollID     string      `json:"poll_id,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

type Attachment struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Type    string `json:"type,omitempty"`
	Size    int64  `json:"size,omitempty"`
	Expires int64  `json:"expires,omitempty"`
}

// DecodeLine parses one line of a poll response. A message without id, time,
// event and topic is rejected.
func DecodeLine(line []byte) (*Message, error) {
	if !gjson.ValidBytes(line) {
		return nil, fmt.Errorf("%w: %.60q", ErrBadLine, line)
	}

	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadLine, err)
	}
	if m.ID == "" || m.Time == 0 || m.Event == "" || m.Topic == "" {
		return nil, fmt.Errorf("%w: need id, time, event, topic", ErrMissingField)
	}
	if m.Priority == 0 {
		m.Priority = models.DefaultPriority
	}
	return &m, nil
}

// PeekEvent reads the event field off a raw line without a full decode, so
// keepalive chatter can be skipped cheaply.
func PeekEvent(line []byte) string {
	return gjson.GetBytes(line, "event").String()
}

type Result struct {
	Decoded int
	Skipped int
}

// DecodeStream decodes a newline-delimited message stream, invoking fn per
// message. Bad lines are skipped and counted; an error from fn or the reader
// aborts the stream, with messages already delivered remaining usable.
// In strict mode a non-zero skip count is reported as an error at stream end.
func DecodeStream(r io.Reader, strict bool, fn func(*Message) error) (Result, error) {
	var res Result

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Keepalive chatter carries no content; not worth a full decode and
		// not counted either way.
		if PeekEvent(line) == models.EventKeepalive {
			continue
		}

		m, err := DecodeLine(line)
		if err != nil {
			res.Skipped++
			continue
		}
		res.Decoded++

		if err := fn(m); err != nil {
			return res, err
		}
	}

	if err := scanner.Err(); err != nil {
		return res, err
	}
	if strict && res.Skipped > 0 {
		return res, fmt.Errorf("%w: skipped %d of %d lines", ErrBadLine, res.Skipped, res.Skipped+res.Decoded)
	}
	return res, nil
}
