package domain

import "strings"

// displayPrefix disambiguates server ids from client-generated temp ids.
const displayPrefix = "msg_"

// MessageID is the store-assigned identifier of a message.
type MessageID string

// Display returns the client-visible form of the id.
func (id MessageID) Display() string {
	if id == "" {
		return ""
	}
	return displayPrefix + string(id)
}

func (id MessageID) String() string {
	return string(id)
}

// ParseDisplayID unwraps a client-visible id. Bare store ids are accepted as-is.
func ParseDisplayID(s string) (MessageID, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, displayPrefix)
	if s == "" {
		return "", false
	}
	return MessageID(s), true
}

// ParseDisplayIDs unwraps a batch, dropping empty entries and duplicates.
func ParseDisplayIDs(in []string) []MessageID {
	seen := make(map[MessageID]struct{}, len(in))
	out := make([]MessageID, 0, len(in))
	for _, raw := range in {
		id, ok := ParseDisplayID(raw)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
