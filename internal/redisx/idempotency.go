package redisx

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type IdemState int

const (
	// IdemNew means the caller owns the key and must Complete or Abort it.
	IdemNew IdemState = iota
	// IdemInFlight means another request with the same key is still running.
	IdemInFlight
	// IdemDone means a stored response can be replayed.
	IdemDone
	// IdemMismatch means the key was first used with a different request body.
	IdemMismatch
)

// idemRecord is what a key holds: the request fingerprint, plus the response
// once the request completed.
type idemRecord struct {
	Fingerprint string          `json:"fp"`
	Body        json.RawMessage `json:"body,omitempty"`
}

// Fingerprint identifies a request body for idempotency checks.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Idempotency guards POST /checkout against client retries creating a second order.
type Idempotency struct {
	RDB *redis.Client
}

// Begin claims key for the request identified by fingerprint. For IdemDone the
// stored response body is returned.
func (i Idempotency) Begin(ctx context.Context, key, fingerprint string) (IdemState, []byte, error) {
	k := fmt.Sprintf(KeyIdemCheckout, key)
	claim, _ := json.Marshal(idemRecord{Fingerprint: fingerprint})
	ok, err := i.RDB.SetNX(ctx, k, claim, TTLIdemLock).Result()
	if err != nil {
		return IdemNew, nil, err
	}
	if ok {
		return IdemNew, nil, nil
	}
	v, err := i.RDB.Get(ctx, k).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		// expired between SETNX and GET; try once more
		if ok, err = i.RDB.SetNX(ctx, k, claim, TTLIdemLock).Result(); err == nil && ok {
			return IdemNew, nil, nil
		}
		return IdemInFlight, nil, err
	case err != nil:
		return IdemNew, nil, err
	}

	var rec idemRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		// unreadable record: hold the key until it expires
		return IdemInFlight, nil, nil
	}
	switch {
	case rec.Fingerprint != fingerprint:
		return IdemMismatch, nil, nil
	case len(rec.Body) == 0:
		return IdemInFlight, nil, nil
	default:
		return IdemDone, rec.Body, nil
	}
}

// Complete stores the response to replay for later requests with key.
func (i Idempotency) Complete(ctx context.Context, key, fingerprint string, body []byte) error {
	v, err := json.Marshal(idemRecord{Fingerprint: fingerprint, Body: body})
	if err != nil {
		return err
	}
	return i.RDB.Set(ctx, fmt.Sprintf(KeyIdemCheckout, key), v, TTLIdempotency).Err()
}

// Abort releases key so the client may retry.
func (i Idempotency) Abort(ctx context.Context, key string) error {
	return i.RDB.Del(ctx, fmt.Sprintf(KeyIdemCheckout, key)).Err()
}

// Dedup remembers processed event ids per consuming service.
type Dedup struct {
	RDB     *redis.Client
	Service string
}

// First reports whether id has not been seen before and marks it seen.
func (d Dedup) First(ctx context.Context, id string) (bool, error) {
	return d.RDB.SetNX(ctx, fmt.Sprintf(KeyDedup, d.Service, id), "1", TTLDedup).Result()
}

// Forget unmarks id, used when processing failed and the message will be redelivered.
func (d Dedup) Forget(ctx context.Context, id string) error {
	return d.RDB.Del(ctx, fmt.Sprintf(KeyDedup, d.Service, id)).Err()
}
