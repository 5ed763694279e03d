package adkchat

import (
	"github.com/google/uuid"
)

// NewChatMessage creates a chat message with a locally generated id
func NewChatMessage(role Role, content string) ChatMessage {
	return ChatMessage{
		ID:      uuid.New().String(),
		Role:    role,
		Content: content,
	}
}

// NewUserChatMessage creates a user chat message with text content.
// Used for the optimistic echo of a submitted message.
func NewUserChatMessage(text string) ChatMessage {
	return NewChatMessage(RoleUser, text)
}

// NewAssistantPlaceholder creates the empty assistant message that a
// streaming reply grows into
func NewAssistantPlaceholder() ChatMessage {
	return NewChatMessage(RoleAssistant, "")
}

// NewTextPart creates a text part
func NewTextPart(text string) Part {
	return Part{Text: text}
}

// NewFunctionCallPart creates a function call part
func NewFunctionCallPart(id, name string, args map[string]any) Part {
	return Part{FunctionCall: &FunctionCall{
		ID:   id,
		Name: name,
		Args: args,
	}}
}

// NewFunctionResponsePart creates a function response part
func NewFunctionResponsePart(id, name string, response map[string]any) Part {
	return Part{FunctionResponse: &FunctionResponse{
		ID:       id,
		Name:     name,
		Response: response,
	}}
}
