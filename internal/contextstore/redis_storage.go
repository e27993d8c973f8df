package contextstore

import (
	"context"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
)

// RedisStorage keeps a sorted-set index per namespace, scored by write time in
// microseconds, plus one string key per record. Microsecond scores stay exact
// in a float64; writes within the same microsecond tie and list in member order.
type RedisStorage struct {
	client *redisv9.Client
	prefix string
	now    func() time.Time
}

func NewRedisStorage(client *redisv9.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "tutor:context"
	}
	return &RedisStorage{client: client, prefix: prefix, now: time.Now}
}

// EnsureNamespace is a no-op: the index key appears with the first write.
func (s *RedisStorage) EnsureNamespace(_ context.Context, _ string) error {
	return nil
}

func (s *RedisStorage) Write(ctx context.Context, namespace, name string, data []byte) error {
	score := float64(s.now().UnixMicro())
	_, err := s.client.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
		pipe.Set(ctx, s.recordKey(namespace, name), data, 0)
		pipe.ZAdd(ctx, s.indexKey(namespace), redisv9.Z{Score: score, Member: name})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write snippet failed: %w", err)
	}
	return nil
}

func (s *RedisStorage) List(ctx context.Context, namespace string) ([]Entry, error) {
	members, err := s.client.ZRangeWithScores(ctx, s.indexKey(namespace), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list snippets failed: %w", err)
	}
	if len(members) == 0 {
		return nil, ErrNamespaceNotFound
	}

	entries := make([]Entry, 0, len(members))
	for _, m := range members {
		name, ok := m.Member.(string)
		if !ok {
			continue
		}
		size, err := s.client.StrLen(ctx, s.recordKey(namespace, name)).Result()
		if err != nil {
			return nil, fmt.Errorf("redis stat snippet failed: %w", err)
		}
		entries = append(entries, Entry{
			Name:    name,
			ModTime: time.UnixMicro(int64(m.Score)),
			Size:    size,
		})
	}
	return entries, nil
}

func (s *RedisStorage) Read(ctx context.Context, namespace, name string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.recordKey(namespace, name)).Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis read snippet failed: %w", err)
	}
	return data, nil
}

func (s *RedisStorage) Location(namespace string) string {
	return s.indexKey(namespace)
}

func (s *RedisStorage) indexKey(namespace string) string {
	return fmt.Sprintf("%s:%s:index", s.prefix, namespace)
}

func (s *RedisStorage) recordKey(namespace, name string) string {
	return fmt.Sprintf("%s:%s:snippet:%s", s.prefix, namespace, name)
}
