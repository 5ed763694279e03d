package adkchat

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultSessionName is the label given to sessions that have not been named.
const DefaultSessionName = "New conversation"

// FallbackIDPrefix marks session ids that were synthesized locally because
// the remote service could not be reached. Downstream code can use
// Session.IsFallback to detect degraded mode.
const FallbackIDPrefix = "mock-"

// sessionNameKey is the state key the agent service uses for the session name.
const sessionNameKey = "session_name"

// Role identifies the author of a ChatMessage.
type Role string

const (
	// RoleUser is a message authored by the user.
	RoleUser Role = "user"

	// RoleAssistant is a message authored by the agent.
	RoleAssistant Role = "assistant"

	// RoleSystem is a system message.
	RoleSystem Role = "system"
)

// Session is a conversation session as stored by the remote agent service.
// The client never mutates Events directly; it re-fetches the session when
// it needs the authoritative history.
type Session struct {
	ID         string         `json:"id"`
	AppName    string         `json:"app_name"`
	UserID     string         `json:"user_id"`
	State      map[string]any `json:"state"`
	Events     []Event        `json:"events"`
	LastUpdate UnixSeconds    `json:"last_update_time"`
}

// Name returns the human label for the session, falling back to
// DefaultSessionName when the service recorded none.
func (s *Session) Name() string {
	if s.State != nil {
		if name, ok := s.State[sessionNameKey].(string); ok && name != "" {
			return name
		}
	}
	return DefaultSessionName
}

// IsFallback reports whether this session was synthesized locally because
// the remote service was unreachable. Fallback sessions are not known to
// the backend and will not survive a directory refresh.
func (s *Session) IsFallback() bool {
	return strings.HasPrefix(s.ID, FallbackIDPrefix)
}

// Event is a single entry in a session's append-only history.
// Insertion order is chronological order.
type Event struct {
	ID           string      `json:"id"`
	InvocationID string      `json:"invocation_id,omitempty"`
	Author       string      `json:"author"`
	Content      Content     `json:"content"`
	Timestamp    UnixSeconds `json:"timestamp"`
	Partial      bool        `json:"partial,omitempty"`
}

// Content holds the ordered parts of an event.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// PartKind identifies which variant of the Part union is populated.
type PartKind string

const (
	// PartKindText is plain text content.
	PartKindText PartKind = "text"

	// PartKindFunctionCall is a function invocation by the agent.
	PartKindFunctionCall PartKind = "function_call"

	// PartKindFunctionResponse is the result of a function invocation.
	PartKindFunctionResponse PartKind = "function_response"
)

// Part is one piece of event content. Exactly one of the three variants is
// populated; Kind reports which. The JSON encoding mirrors the agent
// service's wire format, where the variant is implied by the field present.
type Part struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *FunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *FunctionResponse `json:"functionResponse,omitempty"`
}

// Kind returns the variant of this part. A part carrying neither a function
// call nor a function response is text, matching how the service encodes
// empty text parts.
func (p Part) Kind() PartKind {
	switch {
	case p.FunctionCall != nil:
		return PartKindFunctionCall
	case p.FunctionResponse != nil:
		return PartKindFunctionResponse
	default:
		return PartKindText
	}
}

// FunctionCall describes a function the agent asked to run.
type FunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// FunctionResponse carries the result of a function call back to the agent.
type FunctionResponse struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response,omitempty"`
}

// ChatMessage is the flattened, display-oriented projection of event text.
// While a reply is streaming, the conversation controller owns the message
// and grows Content incrementally; once the stream closes it is immutable.
type ChatMessage struct {
	ID      string `json:"id"`
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// RunRequest is the body of a POST /run_sse call.
type RunRequest struct {
	AppName    string     `json:"app_name"`
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	NewMessage NewMessage `json:"new_message"`
	Streaming  bool       `json:"streaming"`
}

// NewMessage is the user turn submitted with a run request.
type NewMessage struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// UnixSeconds is a time.Time that encodes as fractional seconds since the
// Unix epoch, the unit the agent service uses for last_update_time and event
// timestamps. All in-memory code works with time.Time; the conversion
// happens only at this JSON boundary.
type UnixSeconds time.Time

// Time returns the wrapped time.Time.
func (t UnixSeconds) Time() time.Time {
	return time.Time(t)
}

// MarshalJSON encodes the time as fractional Unix seconds.
func (t UnixSeconds) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte("0"), nil
	}
	sec := float64(tt.Unix()) + float64(tt.Nanosecond())/float64(time.Second)
	return []byte(strconv.FormatFloat(sec, 'f', -1, 64)), nil
}

// UnmarshalJSON decodes fractional Unix seconds into a time.Time.
func (t *UnixSeconds) UnmarshalJSON(data []byte) error {
	var sec float64
	if err := json.Unmarshal(data, &sec); err != nil {
		return err
	}
	if sec == 0 {
		*t = UnixSeconds(time.Time{})
		return nil
	}
	whole, frac := math.Modf(sec)
	*t = UnixSeconds(time.Unix(int64(whole), int64(math.Round(frac*float64(time.Second)))))
	return nil
}
