package chat

import (
	"RecipeChat/internal/messaging"
	"RecipeChat/internal/recipe"
	"RecipeChat/internal/store"
)

// Well-known senders; any other sender is a username
const (
	SenderSystem    = "system"
	SenderAssistant = "assistant"
)

// ChatMessage is one entry of the chat sequence
type ChatMessage struct {
	Sender            string
	Text              string
	ImageRef          string
	Recipe            *recipe.Recipe
	RecipeID          string
	SentByCurrentUser bool
}

// Empty reports whether the message has nothing to render
func (m ChatMessage) Empty() bool {
	return m.Text == "" && m.Recipe == nil && m.ImageRef == ""
}

// IsSystem reports whether the message is a system notice
func (m ChatMessage) IsSystem() bool {
	return m.Sender == SenderSystem
}

// payloadKeys are the fields that make a payload a chat message
var payloadKeys = []string{"sender", "username", "text", "message", "imageRef", "imageUrl", "recipe"}

// FromPayload converts an inbound payload into a ChatMessage.
// It returns false for payloads carrying none of the chat message fields.
func FromPayload(p messaging.Payload) (ChatMessage, bool) {
	if !hasAnyKey(p) {
		return ChatMessage{}, false
	}

	m := ChatMessage{
		Sender:   firstString(p, "sender", "username"),
		Text:     firstString(p, "text", "message"),
		ImageRef: firstString(p, "imageRef", "imageUrl"),
	}
	if m.Sender == "" {
		m.Sender = SenderAssistant
	}

	if raw, ok := recipe.AsRaw(p["recipe"]); ok {
		r := recipe.Normalize(raw)
		m.Recipe = &r
		m.RecipeID = raw.ID()
	}
	if id := (recipe.Raw{"id": p["recipeId"]}).ID(); id != "" {
		m.RecipeID = id
	}

	for _, key := range []string{"sentByCurrentUser", "sentByMe"} {
		if mine, ok := p[key].(bool); ok && mine {
			m.SentByCurrentUser = true
		}
	}
	return m, true
}

func hasAnyKey(p messaging.Payload) bool {
	for _, k := range payloadKeys {
		if _, ok := p[k]; ok {
			return true
		}
	}
	return false
}

func firstString(p messaging.Payload, keys ...string) string {
	for _, k := range keys {
		if s, ok := p[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func toEntry(m ChatMessage) store.Entry {
	return store.Entry{
		Sender:   m.Sender,
		Text:     m.Text,
		ImageRef: m.ImageRef,
		RecipeID: m.RecipeID,
		Recipe:   m.Recipe,
		Mine:     m.SentByCurrentUser,
	}
}

// FromEntry restores an archived message
func FromEntry(e store.Entry) ChatMessage {
	return ChatMessage{
		Sender:            e.Sender,
		Text:              e.Text,
		ImageRef:          e.ImageRef,
		Recipe:            e.Recipe,
		RecipeID:          e.RecipeID,
		SentByCurrentUser: e.Mine,
	}
}
