package auth

import (
	"context"
	"sync"
)

// Slot is an in-process TokenStore.
type Slot struct {
	mu    sync.Mutex
	token string
}

// NewSlot returns a slot holding token.
func NewSlot(token string) *Slot { return &Slot{token: token} }

func (s *Slot) LoadToken(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, nil
}

func (s *Slot) SaveToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	return nil
}
