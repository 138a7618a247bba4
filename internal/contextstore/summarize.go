package contextstore

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/relaygate/gateway/internal/storage"
)

// defaultSummarizeThreshold is the message count past which the oldest
// portion of a conversation is collapsed into a synthetic summary
// (spec.md §4.H).
const defaultSummarizeThreshold = 50

// retainKeywords are the sentence markers preserved verbatim rather
// than dropped during summarization.
var retainKeywords = []string{"decided", "decision", "important", "note"}

var sentenceSplit = regexp.MustCompile(`(?:[.!?]\s+|\n)`)

// Summarize collapses the oldest 80% of messages into one synthetic
// system message once len(messages) exceeds threshold (0 uses the
// default). Code blocks collapse to a one-line marker; sentences
// containing a retained keyword survive verbatim.
func Summarize(messages []storage.Message, threshold int) []storage.Message {
	if threshold <= 0 {
		threshold = defaultSummarizeThreshold
	}
	if len(messages) <= threshold {
		return messages
	}

	cut := int(float64(len(messages)) * 0.8)
	old, recent := messages[:cut], messages[cut:]

	summary := summarizeMessages(old)
	synthetic := storage.Message{Role: storage.RoleSystem, Content: summary}
	if len(old) > 0 {
		synthetic.Timestamp = old[len(old)-1].Timestamp
	}

	out := make([]storage.Message, 0, len(recent)+1)
	out = append(out, synthetic)
	return append(out, recent...)
}

func summarizeMessages(messages []storage.Message) string {
	var lines []string
	for _, m := range messages {
		if strings.Contains(m.Content, "```") {
			lines = append(lines, fmt.Sprintf("[Code discussion: %s]", m.Role))
			continue
		}
		for _, sentence := range sentenceSplit.Split(m.Content, -1) {
			trimmed := strings.TrimSpace(sentence)
			if trimmed == "" {
				continue
			}
			lower := strings.ToLower(trimmed)
			for _, kw := range retainKeywords {
				if strings.Contains(lower, kw) {
					lines = append(lines, trimmed)
					break
				}
			}
		}
	}
	if len(lines) == 0 {
		return "Earlier conversation summarized (no salient points detected)."
	}
	return "Summary of earlier conversation:\n" + strings.Join(lines, "\n")
}
