package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// Store is a concurrent in-memory LocalStore implementation.
type Store struct {
	values sync.Map // map[string]string
}

func New() *Store { return &Store{} }

func (s *Store) Load(_ context.Context, key string) (string, bool, error) {
	v, ok := s.values.Load(key)
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (s *Store) Save(_ context.Context, key, value string) error {
	s.values.Store(key, value)
	return nil
}

func (s *Store) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	s.values.Range(func(k, _ any) bool {
		if key := k.(string); strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return true
	})
	sort.Strings(keys)
	return keys, nil
}

var _ interface {
	Load(context.Context, string) (string, bool, error)
	Save(context.Context, string, string) error
	Keys(context.Context, string) ([]string, error)
} = (*Store)(nil)
