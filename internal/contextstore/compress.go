package contextstore

import "github.com/relaygate/gateway/internal/storage"

// maxMessageChars is the per-message truncation threshold (spec.md
// §4.H's supplemented compression format).
const maxMessageChars = 2000

const truncationMarker = "... [truncated] ..."

// Compress removes strictly-consecutive duplicate (role, content) pairs
// and truncates any remaining message over maxMessageChars to its first
// and last 1000 characters, joined by a truncation marker.
func Compress(messages []storage.Message) []storage.Message {
	out := make([]storage.Message, 0, len(messages))
	for _, m := range messages {
		if n := len(out); n > 0 && out[n-1].Role == m.Role && out[n-1].Content == m.Content {
			continue
		}
		if len(m.Content) > maxMessageChars {
			m.Content = m.Content[:1000] + truncationMarker + m.Content[len(m.Content)-1000:]
		}
		out = append(out, m)
	}
	return out
}
