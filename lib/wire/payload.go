package wire

import (
	"strconv"
	"strings"

	"github.com/karwei/ntfywatch/lib/models"
)

// The push transport only carries flat string-to-string maps, so every field
// is stringified: numbers as decimals, tags comma-joined, actions as their
// JSON encoding, attachment fields flattened under an attachment_ prefix.

func ToTransportPayload(m *Message) map[string]string {
	p := map[string]string{
		"id":    m.ID,
		"time":  strconv.FormatInt(m.Time, 10),
		"event": m.Event,
		"topic": m.Topic,
	}
	setIfPresent(p, "message", m.Message)
	setIfPresent(p, "title", m.Title)
	if m.Priority != 0 {
		p["priority"] = strconv.Itoa(m.Priority)
	}
	setIfPresent(p, "tags", strings.Join(m.Tags, ","))
	setIfPresent(p, "actions", EncodeActions(m.Actions))
	setIfPresent(p, "click", m.Click)
	setIfPresent(p, "poll_id", m.PollID)

	if m.Attachment != nil {
		p["attachment_name"] = m.Attachment.Name
		p["attachment_url"] = m.Attachment.URL
		setIfPresent(p, "attachment_type", m.Attachment.Type)
		if m.Attachment.Size != 0 {
			p["attachment_size"] = strconv.FormatInt(m.Attachment.Size, 10)
		}
		if m.Attachment.Expires != 0 {
			p["attachment_expires"] = strconv.FormatInt(m.Attachment.Expires, 10)
		}
	}
	return p
}

// FromTransportPayload is the inverse mapping. A payload missing any of id,
// time, event, topic, or carrying an unparseable time, yields nil: the caller
// treats it as unknown-or-irrelevant and drops it.
func FromTransportPayload(p map[string]string) *Message {
	t, err := strconv.ParseInt(p["time"], 10, 64)
	if err != nil {
		return nil
	}
	m := &Message{
		ID:    p["id"],
		Time:  t,
		Event: p["event"],
		Topic: p["topic"],
	}
	if m.ID == "" || m.Event == "" || m.Topic == "" {
		return nil
	}

	m.Message = p["message"]
	m.Title = p["title"]
	m.Priority = models.DefaultPriority
	if raw, ok := p["priority"]; ok {
		if prio, err := strconv.Atoi(raw); err == nil {
			m.Priority = prio
		}
	}
	m.Tags = SplitTags(p["tags"])
	m.Actions = ParseActions(p["actions"])
	m.Click = p["click"]
	m.PollID = p["poll_id"]

	if url := p["attachment_url"]; url != "" {
		att := &Attachment{
			Name: p["attachment_name"],
			URL:  url,
			Type: p["attachment_type"],
		}
		att.Size, _ = strconv.ParseInt(p["attachment_size"], 10, 64)
		att.Expires, _ = strconv.ParseInt(p["attachment_expires"], 10, 64)
		m.Attachment = att
	}
	return m
}

// SplitTags splits a comma-joined tag string, trimming whitespace and
// discarding empty segments.
func SplitTags(joined string) []string {
	if joined == "" {
		return nil
	}
	var tags []string
	for _, tag := range strings.Split(joined, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func setIfPresent(p map[string]string, key, val string) {
	if val != "" {
		p[key] = val
	}
}
