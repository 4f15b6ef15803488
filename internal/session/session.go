// Package session keeps the state of multi-step chat conversations, one per chat user.
package session

import (
	"context"
	"time"
)

// Flow names.
const (
	FlowRegister = "register"
	FlowRequest  = "request"
)

// State is everything a conversation has collected so far. A zero State means the user
// is not inside any flow.
type State struct {
	Flow      string            `json:"flow"`
	Step      string            `json:"step"`
	Data      map[string]string `json:"data,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Active reports whether a flow is in progress.
func (s *State) Active() bool {
	return s.Flow != ""
}

// Begin starts flow at step, discarding previous data.
func (s *State) Begin(flow, step string) {
	s.Flow = flow
	s.Step = step
	s.Data = map[string]string{}
}

func (s *State) Get(key string) string {
	return s.Data[key]
}

func (s *State) Set(key, value string) {
	if s.Data == nil {
		s.Data = map[string]string{}
	}
	s.Data[key] = value
}

func (s *State) Delete(key string) {
	delete(s.Data, key)
}

// Reset leaves the flow.
func (s *State) Reset() {
	*s = State{}
}

// Store persists states by key (the chat user ID).
type Store interface {
	// Load returns the saved state, or a zero State when none exists.
	Load(ctx context.Context, key string) (*State, error)
	Save(ctx context.Context, key string, state *State) error
	Clear(ctx context.Context, key string) error
}
