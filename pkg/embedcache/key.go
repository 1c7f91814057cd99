package embedcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Key identifies one cached embedding. Text is already normalized.
type Key struct {
	Model string
	Text  string
}

// Normalize trims the text and collapses every whitespace run to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Hash is a fixed-width digest of the key, used where the durable tier wants
// a short index column or a bounded redis key.
func (k Key) Hash() string {
	h := sha256.New()
	h.Write([]byte(k.Model))
	h.Write([]byte{0})
	h.Write([]byte(k.Text))
	return hex.EncodeToString(h.Sum(nil))
}
