package phi

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func strPtr(s string) *string { return &s }

func TestNewCodec_EmptyKey(t *testing.T) {
	c, err := NewCodec("", zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Enabled() {
		t.Fatal("expected codec to be disabled")
	}
	v := strPtr("plain")
	got, err := c.Seal(v)
	if err != nil || got != v {
		t.Errorf("disabled Seal should pass through, got %v, %v", got, err)
	}
}

func TestNewCodec_InvalidKeys(t *testing.T) {
	if _, err := NewCodec("not-hex!", zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "not valid hex") {
		t.Errorf("expected hex error, got %v", err)
	}
	short := hex.EncodeToString(make([]byte, 16))
	if _, err := NewCodec(short, zerolog.Nop()); err == nil || !strings.Contains(err.Error(), "32 bytes") {
		t.Errorf("expected length error, got %v", err)
	}
}

func TestCodec_SealOpen(t *testing.T) {
	c, err := NewCodec(hex.EncodeToString(generateTestKey(t)), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if !c.Enabled() {
		t.Fatal("expected codec to be enabled")
	}

	sealed, err := c.Seal(strPtr("patient@example.com"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if !strings.HasPrefix(*sealed, sealedPrefix) {
		t.Fatalf("expected sealed prefix, got %q", *sealed)
	}

	opened, err := c.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if *opened != "patient@example.com" {
		t.Errorf("expected round trip, got %q", *opened)
	}
}

func TestCodec_NilAndLegacyValues(t *testing.T) {
	c := NewCodecWith(mustCipher(t))

	if got, err := c.Seal(nil); err != nil || got != nil {
		t.Errorf("Seal(nil) = %v, %v", got, err)
	}
	if got, err := c.Open(nil); err != nil || got != nil {
		t.Errorf("Open(nil) = %v, %v", got, err)
	}

	legacy := strPtr("stored before encryption")
	got, err := c.Open(legacy)
	if err != nil {
		t.Fatalf("Open legacy: %v", err)
	}
	if *got != *legacy {
		t.Errorf("expected legacy value unchanged, got %q", *got)
	}
}

func TestCodec_OpenWithoutKey(t *testing.T) {
	sealed, _ := NewCodecWith(mustCipher(t)).Seal(strPtr("x"))
	if _, err := NewCodecWith(nil).Open(sealed); err == nil {
		t.Error("expected error opening sealed value without a key")
	}
}

func mustCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := NewCipher(generateTestKey(t))
	if err != nil {
		t.Fatalf("NewCipher: %v", err)
	}
	return c
}
