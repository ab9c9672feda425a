// Package secrets generates and hashes the bearer credentials used by the
// print subsystem: long-lived agent API keys and short-lived human pairing
// codes. Plaintext secrets are never persisted; storage only ever sees the
// sha256 digest. These are high-entropy random tokens, not user passwords,
// so a fast cryptographic hash plus constant-time comparison is sufficient.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// Pairing codes use a restricted alphabet without visually confusable
// characters (no 0/O, no 1/I) so they survive being read over the phone.
const pairingAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const pairingCodePrefix = "MONTIS"

// GenerateAPIKey returns a fresh 256-bit agent secret, base64url encoded.
func GenerateAPIKey() string {
	return randomToken(32)
}

func randomToken(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on a healthy system; treat exhaustion
		// as a fatal environment error.
		panic(fmt.Sprintf("secrets: randomness source unavailable: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// HashSecret returns the hex sha256 digest persisted in place of a secret.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

// SecureCompare compares two digests in constant time.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// GeneratePairingCode returns a human-dictation-friendly activation code in
// the fixed MONTIS-XXXX-XXXX format.
func GeneratePairingCode() string {
	return fmt.Sprintf("%s-%s-%s", pairingCodePrefix, randomChunk(4), randomChunk(4))
}

func randomChunk(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("secrets: randomness source unavailable: %v", err))
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = pairingAlphabet[int(b)%len(pairingAlphabet)]
	}
	return string(out)
}

// NormalizePairingCode folds case and strips separators so transcription
// noise ("montis 7kqr 2xwf") still resolves to the stored hash.
func NormalizePairingCode(code string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(code) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// HashPairingCode hashes the normalized form of a presented activation code.
func HashPairingCode(code string) string {
	return HashSecret(NormalizePairingCode(code))
}
