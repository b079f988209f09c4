package stores

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	resetRecordVersionV1 = 1
	maxConsumeRetries    = 4
)

var (
	ErrResetNotFound         = errors.New("reset record not found")
	ErrResetAlreadyUsed      = errors.New("reset record already used")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetRecord is the stored state of one reset token. The token
// itself is only known through the fingerprint used as the key.
type PasswordResetRecord struct {
	PrincipalID string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Used        bool
}

// PasswordResetStore keeps reset records until their natural expiry, marking
// them used instead of deleting them so a replay stays distinguishable from
// an unknown token.
type PasswordResetStore struct {
	redis  redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewPasswordResetStore(redisClient redis.UniversalClient, prefix string, now func() time.Time) *PasswordResetStore {
	if prefix == "" {
		prefix = "apr"
	}
	if now == nil {
		now = time.Now
	}
	return &PasswordResetStore{
		redis:  redisClient,
		prefix: prefix,
		now:    now,
	}
}

func (s *PasswordResetStore) key(fingerprint string) string {
	return s.prefix + ":" + fingerprint
}

// Save writes a fresh record with TTL equal to its remaining validity.
func (s *PasswordResetStore) Save(ctx context.Context, fingerprint string, record *PasswordResetRecord) error {
	ttl := record.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return errors.New("reset record already expired")
	}

	encoded, err := encodePasswordResetRecord(record)
	if err != nil {
		return err
	}

	if err := s.redis.Set(ctx, s.key(fingerprint), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}
	return nil
}

// Get returns the record for fingerprint, used or not. Expired and missing
// records yield [ErrResetNotFound].
func (s *PasswordResetStore) Get(ctx context.Context, fingerprint string) (*PasswordResetRecord, error) {
	data, err := s.redis.Get(ctx, s.key(fingerprint)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrResetNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	record, err := decodePasswordResetRecord(data)
	if err != nil {
		return nil, err
	}
	if !s.now().Before(record.ExpiresAt) {
		return nil, ErrResetNotFound
	}
	return record, nil
}

// Consume atomically transitions an unused, unexpired record to used and
// returns it. Exactly one of any number of concurrent callers succeeds.
func (s *PasswordResetStore) Consume(ctx context.Context, fingerprint string) (*PasswordResetRecord, error) {
	return s.setUsed(ctx, fingerprint, true)
}

// Release reverts [PasswordResetStore.Consume] when the credential update
// that followed it failed.
func (s *PasswordResetStore) Release(ctx context.Context, fingerprint string) error {
	_, err := s.setUsed(ctx, fingerprint, false)
	return err
}

func (s *PasswordResetStore) setUsed(ctx context.Context, fingerprint string, used bool) (*PasswordResetRecord, error) {
	key := s.key(fingerprint)

	for i := 0; i < maxConsumeRetries; i++ {
		var matched *PasswordResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodePasswordResetRecord(data)
			if err != nil {
				return err
			}

			if !s.now().Before(record.ExpiresAt) {
				return ErrResetNotFound
			}
			if used && record.Used {
				return ErrResetAlreadyUsed
			}

			record.Used = used
			updated, err := encodePasswordResetRecord(record)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, redis.KeepTTL)
				return nil
			})
			if err != nil {
				return err
			}

			matched = record
			return nil
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			switch {
			case errors.Is(err, redis.Nil), errors.Is(err, ErrResetNotFound):
				return nil, ErrResetNotFound
			case errors.Is(err, ErrResetAlreadyUsed):
				return nil, err
			default:
				return nil, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
			}
		}

		return matched, nil
	}

	// Contention on a single-use record means another caller won the race.
	return nil, ErrResetAlreadyUsed
}

func encodePasswordResetRecord(record *PasswordResetRecord) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(resetRecordVersionV1)
	if record.Used {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}

	if err := binary.Write(&buf, binary.BigEndian, record.CreatedAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}

	if len(record.PrincipalID) > 65535 {
		return nil, errors.New("reset record principal id too long")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.PrincipalID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.PrincipalID)

	return buf.Bytes(), nil
}

func decodePasswordResetRecord(data []byte) (*PasswordResetRecord, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != resetRecordVersionV1 {
		return nil, errors.New("invalid reset record version")
	}

	used, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &PasswordResetRecord{Used: used == 1}

	var createdMs, expiresMs int64
	if err := binary.Read(reader, binary.BigEndian, &createdMs); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresMs); err != nil {
		return nil, err
	}
	record.CreatedAt = time.UnixMilli(createdMs)
	record.ExpiresAt = time.UnixMilli(expiresMs)

	var principalLen uint16
	if err := binary.Read(reader, binary.BigEndian, &principalLen); err != nil {
		return nil, err
	}
	principal := make([]byte, principalLen)
	if _, err := io.ReadFull(reader, principal); err != nil {
		return nil, err
	}
	record.PrincipalID = string(principal)

	return record, nil
}
