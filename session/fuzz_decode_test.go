package session

import (
	"testing"
	"time"

	"github.com/MrEthical07/estateAuth/internal"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics, and anything that decodes re-encodes to the same bytes.
func FuzzSessionDecode(f *testing.F) {
	now := time.UnixMilli(1_700_000_000_000)
	sess := &Session{
		ID:                 "sid-fuzz",
		PrincipalID:        "p-1",
		Role:               "TENANT",
		RefreshFingerprint: internal.Fingerprint("refresh"),
		RefreshExpiresAt:   now.Add(time.Hour),
		Browser:            BrowserFirefox,
		DeviceType:         DeviceDesktop,
		UserAgent:          "Mozilla/5.0 Firefox/121.0",
		Origin:             "198.51.100.1",
		CreatedAt:          now,
		LastActivity:       now,
	}
	encoded, err := Encode(sess)
	if err != nil {
		f.Fatal(err)
	}
	f.Add(encoded)

	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{sessionFormatVersionCurrent})
	f.Add([]byte{255, 255, 255})
	f.Add(encoded[:10])
	f.Add(encoded[:len(encoded)-1])

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}
		out, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode of decoded session failed: %v", err)
		}
		if string(out) != string(data) {
			t.Fatal("decode/encode is not stable")
		}
	})
}

func TestDecodeRejectsUnsupportedSchemaVersion(t *testing.T) {
	if _, err := Decode([]byte{99}); err != errInvalidVersion {
		t.Fatalf("expected unsupported schema version error, got %v", err)
	}
}

func TestEncodeTruncatesUserAgent(t *testing.T) {
	long := make([]byte, MaxUserAgentBytes+100)
	for i := range long {
		long[i] = 'a'
	}
	sess := &Session{ID: "s", PrincipalID: "p", RefreshFingerprint: internal.Fingerprint("x"), UserAgent: string(long)}
	data, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.UserAgent) != MaxUserAgentBytes {
		t.Fatalf("expected truncated user agent, got %d bytes", len(got.UserAgent))
	}
}
