package adkchat

import (
	"fmt"
	"strings"
)

// ToolPartPolicy controls how function call and function response parts are
// projected into the displayed message list. Whether these parts should be
// user-visible is a product decision, so it is configurable rather than
// fixed.
type ToolPartPolicy string

const (
	// ToolPartHide drops function call/response parts from the projection.
	// This is the default.
	ToolPartHide ToolPartPolicy = "hide"

	// ToolPartCompact renders function call/response parts as a one-line
	// affordance in place of the full payload.
	ToolPartCompact ToolPartPolicy = "compact"
)

// MessagesFromSession projects a session's events onto the flat ChatMessage
// list shown to the user: text parts in event order, function call/response
// parts collapsed or hidden per policy. Partial events are interim streaming
// artifacts and are skipped, so a reconciling re-fetch never duplicates
// messages that already streamed in.
func MessagesFromSession(s *Session, policy ToolPartPolicy) []ChatMessage {
	if s == nil {
		return nil
	}

	messages := make([]ChatMessage, 0, len(s.Events))
	for _, ev := range s.Events {
		if ev.Partial {
			continue
		}

		var b strings.Builder
		for _, part := range ev.Content.Parts {
			switch part.Kind() {
			case PartKindText:
				b.WriteString(part.Text)
			case PartKindFunctionCall:
				if policy == ToolPartCompact {
					if b.Len() > 0 {
						b.WriteString("\n")
					}
					fmt.Fprintf(&b, "[calling %s]", part.FunctionCall.Name)
				}
			case PartKindFunctionResponse:
				if policy == ToolPartCompact {
					if b.Len() > 0 {
						b.WriteString("\n")
					}
					fmt.Fprintf(&b, "[%s returned]", part.FunctionResponse.Name)
				}
			}
		}

		content := b.String()
		if content == "" {
			continue
		}

		messages = append(messages, ChatMessage{
			ID:      ev.ID,
			Role:    roleForAuthor(ev.Author),
			Content: content,
		})
	}
	return messages
}

// roleForAuthor normalizes an event author to a display role. The service
// reports assistant turns under agent-specific author names; anything that
// is not the user is shown as the assistant.
func roleForAuthor(author string) Role {
	if author == string(RoleUser) {
		return RoleUser
	}
	return RoleAssistant
}

// LastUserText returns the text of the most recent user-authored event,
// used as the directory preview line. Falls back to DefaultSessionName when
// the session has no user text yet.
func LastUserText(s *Session) string {
	if s == nil {
		return DefaultSessionName
	}
	for i := len(s.Events) - 1; i >= 0; i-- {
		ev := s.Events[i]
		if ev.Author != string(RoleUser) {
			continue
		}
		for _, part := range ev.Content.Parts {
			if part.Kind() == PartKindText && part.Text != "" {
				return part.Text
			}
		}
	}
	return DefaultSessionName
}
