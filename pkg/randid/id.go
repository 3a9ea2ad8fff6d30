// Package randid generates random identifiers for messages and activity
// records.
package randid

import "math/rand/v2"

// MessageIDLength matches the length of IDs assigned by ntfy servers.
const MessageIDLength = 12

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// Generate returns a random alphanumeric string of n characters. It is not
// suitable for secrets.
func Generate(n int) string {
	if n <= 0 {
		return ""
	}
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.IntN(len(alphabet))]
	}
	return string(b)
}

// MessageID returns an ID shaped like the ones ntfy assigns to messages.
func MessageID() string {
	return Generate(MessageIDLength)
}
