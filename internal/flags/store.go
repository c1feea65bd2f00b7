package flags

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// hashKey holds every stored override as field -> JSON Flag.
const hashKey = "dexai:flags"

var keyRe = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,128}$`)

// Store keeps boolean overrides in a Redis hash. Well-known flags without an
// override read as their Known default.
type Store struct {
	client   redis.Cmdable
	defaults map[string]bool
}

func NewStore(client redis.Cmdable) (*Store, error) {
	if client == nil {
		return nil, errors.New("redis client is nil")
	}
	return &Store{client: client, defaults: Known}, nil
}

func ValidateKey(key string) error {
	if !keyRe.MatchString(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}

// Upsert stores an override for key.
func (s *Store) Upsert(ctx context.Context, key string, value bool) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	flag := &Flag{Key: key, Value: value, Stored: true, UpdatedAt: time.Now().UTC()}
	b, err := json.Marshal(flag)
	if err != nil {
		return nil, fmt.Errorf("marshal flag: %w", err)
	}
	if err := s.client.HSet(ctx, hashKey, key, b).Err(); err != nil {
		return nil, fmt.Errorf("store flag %s: %w", key, err)
	}
	return flag, nil
}

// Get returns the override for key, or the default of a well-known flag.
func (s *Store) Get(ctx context.Context, key string) (*Flag, error) {
	f, err := s.override(ctx, key)
	if errors.Is(err, ErrNotFound) {
		if def, ok := s.defaults[key]; ok {
			return &Flag{Key: key, Value: def}, nil
		}
	}
	return f, err
}

// Enabled returns the override for key. Without one, or when Redis cannot be
// read, it returns fallback, which takes the place of the Known default so
// callers can layer their own configuration underneath the flag.
func (s *Store) Enabled(ctx context.Context, key string, fallback bool) bool {
	f, err := s.override(ctx, key)
	if err != nil {
		return fallback
	}
	return f.Value
}

// List returns every override plus the well-known flags that have none,
// ordered by key.
func (s *Store) List(ctx context.Context) ([]*Flag, error) {
	raw, err := s.client.HGetAll(ctx, hashKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}

	out := make([]*Flag, 0, len(raw)+len(s.defaults))
	for key, v := range raw {
		if ValidateKey(key) != nil {
			continue
		}
		f, err := decodeFlag(v)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	for key, def := range s.defaults {
		if _, ok := raw[key]; !ok {
			out = append(out, &Flag{Key: key, Value: def})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Delete removes the override for key. A well-known flag goes back to its
// default; deleting a key with no override is ErrNotFound.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}

	n, err := s.client.HDel(ctx, hashKey, key).Result()
	if err != nil {
		return fmt.Errorf("delete flag %s: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

func (s *Store) override(ctx context.Context, key string) (*Flag, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}

	v, err := s.client.HGet(ctx, hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return nil, fmt.Errorf("get flag %s: %w", key, err)
	}
	return decodeFlag(v)
}

func decodeFlag(v string) (*Flag, error) {
	var f Flag
	if err := json.Unmarshal([]byte(v), &f); err != nil {
		return nil, fmt.Errorf("decode flag: %w", err)
	}
	f.Stored = true
	return &f, nil
}
