package phi

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// sealedPrefix marks values written by an enabled Codec. Rows stored before a
// key was configured lack it and are returned as-is.
const sealedPrefix = "phi1:"

// Codec seals restricted profile columns before they are written and opens
// them after they are read. A Codec built without a key passes values
// through unchanged.
type Codec struct {
	enc FieldEncryptor
}

// NewCodec builds a Codec from a 64-character hex key. An empty key yields a
// pass-through Codec and logs a warning.
func NewCodec(hexKey string, logger zerolog.Logger) (*Codec, error) {
	if hexKey == "" {
		logger.Warn().Msg("profile field encryption disabled: PHI_ENCRYPTION_KEY is not set")
		return &Codec{}, nil
	}

	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY is not valid hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("PHI_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(key))
	}

	c, err := NewCipher(key)
	if err != nil {
		return nil, err
	}

	logger.Info().Msg("profile field encryption enabled")
	return &Codec{enc: c}, nil
}

// NewCodecWith wraps an existing encryptor. A nil encryptor disables sealing.
func NewCodecWith(enc FieldEncryptor) *Codec {
	return &Codec{enc: enc}
}

// Enabled reports whether values are encrypted at rest.
func (c *Codec) Enabled() bool {
	return c != nil && c.enc != nil
}

// Seal encrypts an optional column value. Nil stays nil.
func (c *Codec) Seal(v *string) (*string, error) {
	if v == nil || !c.Enabled() {
		return v, nil
	}
	ct, err := c.enc.Encrypt(*v)
	if err != nil {
		return nil, err
	}
	out := sealedPrefix + ct
	return &out, nil
}

// Open reverses Seal. Values without the sealed prefix are returned unchanged.
func (c *Codec) Open(v *string) (*string, error) {
	if v == nil || !strings.HasPrefix(*v, sealedPrefix) {
		return v, nil
	}
	if !c.Enabled() {
		return nil, fmt.Errorf("phi open: value is encrypted but no key is configured")
	}
	pt, err := c.enc.Decrypt(strings.TrimPrefix(*v, sealedPrefix))
	if err != nil {
		return nil, err
	}
	return &pt, nil
}
