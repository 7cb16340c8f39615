package tripapi

import (
	"encoding/json"
	"strings"

	"github.com/c360studio/nomadplan/itinerary"
)

// ChatReply is the assistant's answer to a chat message. Patch is nil when
// the assistant proposed no itinerary change.
type ChatReply struct {
	Reply string
	Patch itinerary.Patch
}

// HasPatch reports whether the reply carries an itinerary patch.
func (r ChatReply) HasPatch() bool {
	return r.Patch != nil
}

// ParseChatReply reads a chat response body. A JSON object with a string
// "reply" supplies the reply; any other body becomes the reply verbatim.
// "itineraryPatch" is kept only when it is a JSON object.
func ParseChatReply(body []byte) ChatReply {
	text := strings.TrimSpace(string(body))

	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return ChatReply{Reply: text}
	}
	return ChatReplyFromObject(obj, text)
}

// ChatReplyFromObject applies the reply rules to an already decoded object.
// raw is the reply used when the object has no string "reply".
func ChatReplyFromObject(obj map[string]any, raw string) ChatReply {
	reply, ok := obj["reply"].(string)
	if !ok {
		reply = raw
	}

	out := ChatReply{Reply: reply}
	if patch, ok := obj["itineraryPatch"].(map[string]any); ok {
		out.Patch = itinerary.Patch(itinerary.FromRaw(patch))
	}
	return out
}
