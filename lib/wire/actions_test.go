package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActions(t *testing.T) {
	raw := `[
		{"id":"a1","action":"view","label":"Open","url":"https://example.com"},
		{"id":"a2","action":"http","label":"Ack","url":"https://example.com/ack","headers":{"X-Token":"t"}},
		{"id":"a3","action":"broadcast","label":"Android only"}
	]`

	actions := ParseActions(raw)
	require.Len(t, actions, 2)
	assert.Equal(t, "a1", actions[0].ID)
	assert.Equal(t, ActionView, actions[0].Action)

	// http actions default to POST
	assert.Equal(t, "POST", actions[1].Method)
	assert.Equal(t, map[string]string{"X-Token": "t"}, actions[1].Headers)
}

func TestParseActions_EmptyAndMalformed(t *testing.T) {
	assert.Empty(t, ParseActions(""))
	assert.Empty(t, ParseActions("{broken"))
	assert.Empty(t, ParseActions(`{"not":"a list"}`))
	assert.Empty(t, ParseActions(`[{"id":"a1","action":"unsupported"}]`))
}

func TestEncodeActions(t *testing.T) {
	assert.Equal(t, "", EncodeActions(nil))
	assert.Equal(t, "", EncodeActions([]Action{}))
}

func TestActionsRoundTrip(t *testing.T) {
	actions := []Action{
		{ID: "a1", Action: ActionView, Label: "Open", URL: "https://example.com"},
		{ID: "a2", Action: ActionHTTP, Label: "Ack", URL: "https://example.com/ack", Method: "PUT", Body: "ok", Clear: true},
	}
	assert.Equal(t, actions, ParseActions(EncodeActions(actions)))
}

func TestActionsRoundTrip_DropsUnsupported(t *testing.T) {
	actions := []Action{
		{ID: "a1", Action: ActionView, Label: "Open"},
		{ID: "a2", Action: "broadcast", Label: "Dropped"},
	}
	got := ParseActions(EncodeActions(actions))
	require.Len(t, got, 1)
	assert.Equal(t, "a1", got[0].ID)
}
