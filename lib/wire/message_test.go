package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeLine(t *testing.T) {
	line := []byte(`{"id":"m1","time":100,"event":"message","topic":"alerts","message":"hi","tags":["warning","skull"],"priority":5}`)

	m, err := DecodeLine(line)
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, int64(100), m.Time)
	assert.Equal(t, "message", m.Event)
	assert.Equal(t, "alerts", m.Topic)
	assert.Equal(t, "hi", m.Message)
	assert.Equal(t, []string{"warning", "skull"}, m.Tags)
	assert.Equal(t, 5, m.Priority)
}

func TestDecodeLine_DefaultsPriority(t *testing.T) {
	m, err := DecodeLine([]byte(`{"id":"m1","time":100,"event":"message","topic":"alerts"}`))
	require.NoError(t, err)
	assert.Equal(t, 3, m.Priority)
}

func TestDecodeLine_MissingRequiredFields(t *testing.T) {
	lines := []string{
		`{"time":100,"event":"message","topic":"alerts"}`,
		`{"id":"m1","event":"message","topic":"alerts"}`,
		`{"id":"m1","time":100,"topic":"alerts"}`,
		`{"id":"m1","time":100,"event":"message"}`,
	}
	for _, line := range lines {
		_, err := DecodeLine([]byte(line))
		assert.ErrorIs(t, err, ErrMissingField, line)
	}
}

func TestDecodeLine_Malformed(t *testing.T) {
	_, err := DecodeLine([]byte(`{not json`))
	assert.ErrorIs(t, err, ErrBadLine)
}

func TestDecodeLine_Attachment(t *testing.T) {
	line := []byte(`{"id":"m1","time":100,"event":"message","topic":"alerts","attachment":{"name":"cat.jpg","url":"https://ntfy.sh/file/abc.jpg","type":"image/jpeg","size":12345,"expires":2000000000}}`)
	m, err := DecodeLine(line)
	require.NoError(t, err)
	require.NotNil(t, m.Attachment)
	assert.Equal(t, "cat.jpg", m.Attachment.Name)
	assert.Equal(t, int64(12345), m.Attachment.Size)
}

func TestPeekEvent(t *testing.T) {
	assert.Equal(t, "keepalive", PeekEvent([]byte(`{"id":"x","event":"keepalive"}`)))
	assert.Equal(t, "", PeekEvent([]byte(`garbage`)))
}

func TestDecodeStream_SkipsBadLines(t *testing.T) {
	body := strings.Join([]string{
		`{"id":"m1","time":100,"event":"message","topic":"alerts"}`,
		`this is not json`,
		``,
		`{"id":"k1","time":150,"event":"keepalive","topic":"alerts"}`,
		`{"id":"m2","time":200,"event":"message","topic":"alerts"}`,
		`{"missing":"everything"}`,
	}, "\n")

	var ids []string
	res, err := DecodeStream(strings.NewReader(body), false, func(m *Message) error {
		ids = append(ids, m.ID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, ids)
	assert.Equal(t, 2, res.Decoded)
	assert.Equal(t, 2, res.Skipped)
}

func TestDecodeStream_Strict(t *testing.T) {
	body := "{bad}\n" + `{"id":"m1","time":100,"event":"message","topic":"alerts"}`

	res, err := DecodeStream(strings.NewReader(body), true, func(m *Message) error { return nil })
	assert.ErrorIs(t, err, ErrBadLine)
	assert.Equal(t, 1, res.Decoded)
	assert.Equal(t, 1, res.Skipped)
}

func TestDecodeStream_CallbackErrorAborts(t *testing.T) {
	body := strings.Join([]string{
		`{"id":"m1","time":100,"event":"message","topic":"alerts"}`,
		`{"id":"m2","time":200,"event":"message","topic":"alerts"}`,
	}, "\n")

	var ids []string
	_, err := DecodeStream(strings.NewReader(body), false, func(m *Message) error {
		ids = append(ids, m.ID)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, []string{"m1"}, ids)
}
