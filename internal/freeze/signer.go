package freeze

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/cryptods8/openframedl-sub001/internal/game"
)

// Signer authorizes claim mints with HMAC-SHA256 over the claim fields.
type Signer struct {
	key []byte
}

func NewSigner(key string) Signer { return Signer{key: []byte(key)} }

func (s Signer) Sign(user game.UserKey, gameKey, nonce string) string {
	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(strings.Join([]string{user.UserID, string(user.IdentityProvider), gameKey, nonce}, "|")))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks sig in constant time.
func (s Signer) Verify(user game.UserKey, gameKey, nonce, sig string) bool {
	want, err := hex.DecodeString(s.Sign(user, gameKey, nonce))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	return hmac.Equal(want, got)
}
