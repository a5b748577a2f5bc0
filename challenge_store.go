package dashauth

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const challengeRecordVersion1 = 1

var (
	errChallengeNotFound = errors.New("login challenge not found")
	errChallengeExpired  = errors.New("login challenge expired")
)

// loginChallenge is the transient state of a password sign-in paused for a
// second factor. It lives in redis until confirmed, expired, or burned by
// too many failed attempts.
type loginChallenge struct {
	UserID         string
	Email          string
	RememberClient bool
	ExpiresAt      int64
	Attempts       uint16
}

type challengeStore struct {
	redis  *redis.Client
	prefix string
}

func newChallengeStore(redisClient *redis.Client, prefix string) *challengeStore {
	return &challengeStore{redis: redisClient, prefix: prefix}
}

func (s *challengeStore) key(challengeID string) string {
	return s.prefix + ":tfc:" + challengeID
}

// Create stores a fresh challenge and returns its opaque id.
func (s *challengeStore) Create(ctx context.Context, userID, email string, rememberClient bool, ttl time.Duration) (string, error) {
	challengeID := uuid.NewString()
	record := &loginChallenge{
		UserID:         userID,
		Email:          email,
		RememberClient: rememberClient,
		ExpiresAt:      time.Now().Add(ttl).Unix(),
	}

	encoded, err := encodeLoginChallenge(record)
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, s.key(challengeID), encoded, ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrChallengeStoreUnavailable, err)
	}
	return challengeID, nil
}

func (s *challengeStore) Get(ctx context.Context, challengeID string) (*loginChallenge, error) {
	data, err := s.redis.Get(ctx, s.key(challengeID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeStoreUnavailable, err)
	}

	record, err := decodeLoginChallenge(data)
	if err != nil {
		return nil, err
	}
	if time.Now().Unix() > record.ExpiresAt {
		_, _ = s.redis.Del(ctx, s.key(challengeID)).Result()
		return nil, errChallengeExpired
	}
	return record, nil
}

func (s *challengeStore) Delete(ctx context.Context, challengeID string) (bool, error) {
	n, err := s.redis.Del(ctx, s.key(challengeID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrChallengeStoreUnavailable, err)
	}
	return n > 0, nil
}

// RecordFailure bumps the attempt counter under optimistic locking. It
// reports whether the failure burned the challenge by reaching maxAttempts.
func (s *challengeStore) RecordFailure(ctx context.Context, challengeID string, maxAttempts int) (bool, error) {
	const maxRetries = 4
	key := s.key(challengeID)

	for i := 0; i < maxRetries; i++ {
		var exceeded bool
		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			record, err := decodeLoginChallenge(data)
			if err != nil {
				return err
			}

			ttl := time.Until(time.Unix(record.ExpiresAt, 0))
			if ttl <= 0 {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errChallengeExpired
			}

			record.Attempts++
			if int(record.Attempts) >= maxAttempts {
				exceeded = true
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				return err
			}

			updated, err := encodeLoginChallenge(record)
			if err != nil {
				return err
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, updated, ttl)
				return nil
			})
			return err
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return false, errChallengeNotFound
			}
			if errors.Is(err, errChallengeExpired) {
				return false, err
			}
			return false, fmt.Errorf("%w: %v", ErrChallengeStoreUnavailable, err)
		}
		return exceeded, nil
	}

	return false, errChallengeNotFound
}

func encodeLoginChallenge(record *loginChallenge) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(challengeRecordVersion1)

	var flags uint8
	if record.RememberClient {
		flags |= 1
	}
	buf.WriteByte(flags)

	if err := binary.Write(&buf, binary.BigEndian, record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, record.ExpiresAt); err != nil {
		return nil, err
	}

	if len(record.UserID) > 65535 || len(record.Email) > 65535 {
		return nil, errors.New("login challenge field length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.UserID))); err != nil {
		return nil, err
	}
	buf.WriteString(record.UserID)
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(record.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(record.Email)

	return buf.Bytes(), nil
}

func decodeLoginChallenge(data []byte) (*loginChallenge, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != challengeRecordVersion1 {
		return nil, errors.New("invalid login challenge version")
	}

	flags, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}

	record := &loginChallenge{RememberClient: flags&1 != 0}
	if err := binary.Read(reader, binary.BigEndian, &record.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &record.ExpiresAt); err != nil {
		return nil, err
	}

	var userLen uint16
	if err := binary.Read(reader, binary.BigEndian, &userLen); err != nil {
		return nil, err
	}
	user := make([]byte, userLen)
	if _, err := io.ReadFull(reader, user); err != nil {
		return nil, err
	}
	record.UserID = string(user)

	var emailLen uint16
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	record.Email = string(email)

	return record, nil
}
