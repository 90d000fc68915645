package griddb

import (
	"crypto/md5"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// Challenge is what a GridDB-compatible server hands back after a
// connect request: the material the client combines with its own nonce
// to compute an authentication response (spec §6).
type Challenge struct {
	ChallengeBase string
	Nonce         string
	BaseSalt      string
	CryptBase     string
}

func md5hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// newCnonce returns a random client nonce, hex-encoded.
func newCnonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("griddb: generating client nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// computeResponse implements spec §6's challenge/response formula
// verbatim: HA1 = MD5(challengeBase:nonce:cnonce), HA2 = MD5("POST:/"),
// HA3 = MD5(HA1:nonce:nc:cnonce:auth:HA2), secret = SHA256(baseSalt:cryptBase),
// response = "#1#"+base64(HA3)+"#"+hex(secret).
func computeResponse(c Challenge, cnonce, nc string) string {
	ha1 := md5hex(c.ChallengeBase + ":" + c.Nonce + ":" + cnonce)
	ha2 := md5hex("POST:/")
	ha3 := md5.Sum([]byte(ha1 + ":" + c.Nonce + ":" + nc + ":" + cnonce + ":auth:" + ha2))
	secret := sha256.Sum256([]byte(c.BaseSalt + ":" + c.CryptBase))

	return "#1#" + base64.StdEncoding.EncodeToString(ha3[:]) + "#" + hex.EncodeToString(secret[:])
}
