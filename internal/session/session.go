// Package session holds the process-wide conversation session and its
// expiry-driven fact extraction. There is exactly one live session at a
// time: voice interactions from every satellite share it, so a follow-up
// question from the kitchen can reference what was said in the office.
package session

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Message is one turn of the conversation, user or assistant.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is an ordered transcript with an activity clock. Safe for
// concurrent use.
type Session struct {
	mu           sync.Mutex
	messages     []Message
	lastActivity time.Time
}

// NewSession returns an empty session stamped with the current time.
func NewSession() *Session {
	return &Session{lastActivity: time.Now()}
}

// Add appends a message and refreshes the activity clock.
func (s *Session) Add(role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, Message{Role: role, Content: content})
	s.lastActivity = time.Now()
}

// Messages returns a copy of the transcript.
func (s *Session) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of messages.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

// Expired reports whether the session has been idle longer than timeout.
func (s *Session) Expired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity) > timeout
}

// Transcript renders the conversation as "Role: content" lines for the
// fact extraction prompt.
func (s *Session) Transcript() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var b strings.Builder
	for _, m := range s.messages {
		role := m.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		fmt.Fprintf(&b, "%s: %s\n", role, m.Content)
	}
	return b.String()
}

// touch backdates the activity clock; test helper via export_test.go.
func (s *Session) touch(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = t
}
