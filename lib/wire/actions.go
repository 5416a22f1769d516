package wire

import (
	"encoding/json"
	"net/http"
)

// Supported user-triggerable action kinds. Unrecognized kinds are dropped at
// parse time.
const (
	ActionView = "view"
	ActionHTTP = "http"
)

type Action struct {
	ID      string            `json:"id"`
	Action  string            `json:"action"`
	Label   string            `json:"label"`
	URL     string            `json:"url,omitempty"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
	Clear   bool              `json:"clear,omitempty"`
}

// ParseActions decodes a JSON-encoded action list. It never fails: nil/empty
// input and malformed JSON both yield an empty list.
func ParseActions(actionsJSON string) []Action {
	if actionsJSON == "" {
		return nil
	}

	var raw []Action
	if err := json.Unmarshal([]byte(actionsJSON), &raw); err != nil {
		return nil
	}

	var actions []Action
	for _, a := range raw {
		switch a.Action {
		case ActionView:
		case ActionHTTP:
			if a.Method == "" {
				a.Method = http.MethodPost
			}
		default:
			continue
		}
		actions = append(actions, a)
	}
	return actions
}

// EncodeActions is the inverse serialization; empty string when there is
// nothing to encode or encoding fails.
func EncodeActions(actions []Action) string {
	if len(actions) == 0 {
		return ""
	}
	b, err := json.Marshal(actions)
	if err != nil {
		return ""
	}
	return string(b)
}
