// Package idtoken converts numeric ids to opaque route tokens and back.  A
// token is the id followed by a truncated keyed BLAKE2b tag, base64url
// encoded, so ids cannot be enumerated or forged.
package idtoken

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

const tagSize = 10

// ErrInvalidToken is returned for malformed or forged tokens.
var ErrInvalidToken = errors.New("invalid id token")

// Codec encodes ids for one purpose (e.g. "booking").  Tokens for one
// purpose never decode under another.
type Codec struct {
	key     []byte
	purpose string
}

// New returns a codec keyed by secret.  BLAKE2b accepts keys of at most 64
// bytes.
func New(secret []byte, purpose string) (*Codec, error) {
	if len(secret) < 16 || len(secret) > blake2b.Size {
		return nil, fmt.Errorf("id token secret must be 16-64 bytes, got %d", len(secret))
	}
	return &Codec{key: append([]byte(nil), secret...), purpose: purpose}, nil
}

func (c *Codec) tag(raw []byte) []byte {
	h, _ := blake2b.New(tagSize, c.key)
	h.Write([]byte(c.purpose))
	h.Write(raw)
	return h.Sum(nil)
}

// Encode returns the token for id.
func (c *Codec) Encode(id int64) string {
	raw := make([]byte, 8, 8+tagSize)
	binary.BigEndian.PutUint64(raw, uint64(id))
	return base64.RawURLEncoding.EncodeToString(append(raw, c.tag(raw)...))
}

// Decode returns the id behind token.
func (c *Codec) Decode(token string) (int64, error) {
	buf, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(buf) != 8+tagSize {
		return 0, ErrInvalidToken
	}
	if subtle.ConstantTimeCompare(buf[8:], c.tag(buf[:8])) != 1 {
		return 0, ErrInvalidToken
	}
	id := int64(binary.BigEndian.Uint64(buf[:8]))
	if id <= 0 {
		return 0, ErrInvalidToken
	}
	return id, nil
}
