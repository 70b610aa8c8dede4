package authstatevalkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/openshop/identity/internal/serviceerr"
)

type store struct {
	valkey valkey.Client
	prefix string
}

func newStore(valkeyClient valkey.Client, prefix string) *store {
	prefix = strings.TrimSuffix(prefix, ":")
	return &store{
		valkey: valkeyClient,
		prefix: prefix,
	}
}

func (s *store) Get(ctx context.Context, objectType ObjectType, objectID string, decodeInto any) error {
	return s.get(ctx, s.key(objectType, objectID), decodeInto)
}

// SetNX stores val only if the key is free. An occupied key yields serviceerr.ErrConflict.
func (s *store) SetNX(ctx context.Context, objectType ObjectType, id string, val any, ttl time.Duration) error {
	key := s.key(objectType, id)
	bytes, err := s.encode(val)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}

	seconds := max(int64(ttl/time.Second), 1)
	err = s.valkey.Do(ctx, s.valkey.B().Set().Key(key).Value(valkey.BinaryString(bytes)).Nx().ExSeconds(seconds).Build()).Error()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return serviceerr.ErrConflict
		}

		return fmt.Errorf("executing set command: %w", err)
	}

	return nil
}

// Destroy removes the key and reports how many keys were removed.
func (s *store) Destroy(ctx context.Context, objectType ObjectType, id string) (int64, error) {
	return s.destroyKey(ctx, s.key(objectType, id))
}

func (s *store) destroyKey(ctx context.Context, key string) (int64, error) {
	n, err := s.valkey.Do(ctx, s.valkey.B().Del().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("executing del command: %w", err)
	}

	return n, nil
}

func (s *store) get(ctx context.Context, key string, decodeInto any) error {
	bytes, err := s.valkey.Do(ctx, s.valkey.B().Get().Key(key).Build()).AsBytes()
	if err != nil {
		valkeyErr, ok := valkey.IsValkeyErr(err)
		if ok && valkeyErr.IsNil() {
			return serviceerr.ErrNotFound
		}

		return fmt.Errorf("executing get command: %w", err)
	}

	if err := s.decode(bytes, decodeInto); err != nil {
		return fmt.Errorf("decoding object: %w", err)
	}

	return nil
}

func (s *store) key(objectType ObjectType, objectID string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, objectType, objectID)
}

func (s *store) encode(v any) ([]byte, error) {
	bytes, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshaling json: %w", err)
	}

	return bytes, nil
}

func (s *store) decode(data []byte, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return fmt.Errorf("unmarshaling json: %w", err)
	}

	return nil
}

// scanObjects calls fn for every object of objectType. Keys that expire between
// SCAN and GET are skipped.
func scanObjects[T any](ctx context.Context, s *store, objectType ObjectType, fn func(key string, obj T) error) error {
	match := s.key(objectType, "*")
	var cursor uint64
	for {
		scan, err := s.valkey.Do(ctx, s.valkey.B().Scan().Cursor(cursor).Match(match).Count(100).Build()).AsScanEntry()
		if err != nil {
			return fmt.Errorf("executing scan command: %w", err)
		}

		cursor = scan.Cursor
		keys := slices.Clone(scan.Elements)
		for _, key := range keys {
			var decoded T
			if err := s.get(ctx, key, &decoded); err != nil {
				if errors.Is(err, serviceerr.ErrNotFound) {
					continue
				}

				return fmt.Errorf("getting an element: %w", err)
			}

			if err := fn(key, decoded); err != nil {
				return err
			}
		}

		if cursor == 0 {
			return nil
		}
	}
}
