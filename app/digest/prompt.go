package digest

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// BuildPrompt assembles the user message sent to the model. Formatting
// instructions live in the system prompt owned by the profile.
func BuildPrompt(title, excerpt string) string {
	return fmt.Sprintf("Thread: %s\n\nContent excerpt:\n---\n%s\n---", title, excerpt)
}

// PromptHash is a stable digest of the exact request identity: model,
// topic id and prompt bytes. Stored alongside the summary so identical
// inputs stay auditable even if the timestamp guard is bypassed.
func PromptHash(topicID int64, model, prompt string) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{'\n'})

	var id [8]byte
	binary.BigEndian.PutUint64(id[:], uint64(topicID))
	h.Write(id[:])
	h.Write([]byte{'\n'})

	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}
