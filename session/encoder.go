package session

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

const sessionFormatVersionCurrent = 1

// MaxUserAgentBytes bounds the stored user agent.
const MaxUserAgentBytes = 512

// MaxOriginBytes bounds the stored origin; short fields carry a one-byte
// length prefix.
const MaxOriginBytes = 255

var errInvalidVersion = errors.New("unsupported session schema version")

// Encode serializes s into the versioned binary record stored in Redis.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	fp, err := hex.DecodeString(s.RefreshFingerprint)
	if err != nil || len(fp) != 32 {
		return nil, errors.New("refresh fingerprint must be 64 hex characters")
	}

	var buf bytes.Buffer
	buf.WriteByte(sessionFormatVersionCurrent)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"id", s.ID},
		{"principalID", s.PrincipalID},
		{"role", s.Role},
		{"browser", s.Browser},
		{"deviceType", s.DeviceType},
		{"origin", s.Origin},
	} {
		if len(field.value) > 255 {
			return nil, fmt.Errorf("%s too long", field.name)
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	ua := s.UserAgent
	if len(ua) > MaxUserAgentBytes {
		ua = ua[:MaxUserAgentBytes]
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(ua))); err != nil {
		return nil, err
	}
	buf.WriteString(ua)

	buf.Write(fp)

	for _, ts := range []time.Time{s.RefreshExpiresAt, s.CreatedAt, s.LastActivity} {
		if err := binary.Write(&buf, binary.BigEndian, ts.UnixMilli()); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a record produced by [Encode].
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errInvalidVersion
	}

	s := &Session{}
	for _, dst := range []*string{&s.ID, &s.PrincipalID, &s.Role, &s.Browser, &s.DeviceType, &s.Origin} {
		n, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(reader, b); err != nil {
			return nil, err
		}
		*dst = string(b)
	}

	var uaLen uint16
	if err := binary.Read(reader, binary.BigEndian, &uaLen); err != nil {
		return nil, err
	}
	if int(uaLen) > MaxUserAgentBytes {
		return nil, errors.New("user agent too long")
	}
	ua := make([]byte, uaLen)
	if _, err := io.ReadFull(reader, ua); err != nil {
		return nil, err
	}
	s.UserAgent = string(ua)

	var fp [32]byte
	if _, err := io.ReadFull(reader, fp[:]); err != nil {
		return nil, err
	}
	s.RefreshFingerprint = hex.EncodeToString(fp[:])

	for _, dst := range []*time.Time{&s.RefreshExpiresAt, &s.CreatedAt, &s.LastActivity} {
		var ms int64
		if err := binary.Read(reader, binary.BigEndian, &ms); err != nil {
			return nil, err
		}
		*dst = time.UnixMilli(ms)
	}

	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in session record")
	}

	return s, nil
}
