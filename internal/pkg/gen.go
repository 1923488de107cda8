package pkg

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// CodeAlphabet skips 0/O and 1/I/L so codes survive being read aloud.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const CodeLength = 6

// GenerateGameCode - generates a random join code. The alphabet has 32 letters,
// so a byte modulo its length is unbiased.
func GenerateGameCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	out := make([]byte, CodeLength)
	for i := range buf {
		out[i] = CodeAlphabet[int(buf[i])%len(CodeAlphabet)]
	}

	return string(out), nil
}

// NormalizeCode - upper-cases and trims user input.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}

	for _, r := range code {
		if !strings.ContainsRune(CodeAlphabet, r) {
			return false
		}
	}

	return true
}

// GenerateID - generates a time-ordered unique id for sessions and players.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return id.String()
}

const secretBytes = 32

// GenerateSecret - generates the token a player's client presents to act as that
// player. Unlike the player id it is never shown to other participants.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	return hex.EncodeToString(buf), nil
}

// SecretMatches - compares a presented token with a stored one in constant time.
func SecretMatches(stored, presented string) bool {
	if stored == "" || presented == "" {
		return false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) == 1
}

// GameLink - the deep link a guest opens to join by code.
func GameLink(publicURL, code string) string {
	return strings.TrimSuffix(publicURL, "/") + "/game/" + code
}

// PlayerCookie - the cookie that remembers the browser's player in one session.
func PlayerCookie(code string) string {
	return "bingo_player_" + code
}
