package voice

import (
	"fmt"
	"time"
)

// SessionState is the conversational state of a VoiceSession.
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateListening SessionState = "listening"
	StateSpeaking  SessionState = "speaking"
)

// allowedTransitions lists the transitions permitted from each state.
// idle never goes directly to speaking: a session must pass through
// listening first. speaking may return directly to idle.
var allowedTransitions = map[SessionState]map[SessionState]bool{
	StateIdle:      {StateIdle: true, StateListening: true},
	StateListening: {StateSpeaking: true, StateIdle: true},
	StateSpeaking:  {StateListening: true, StateIdle: true},
}

// Turn records one exchange within a session.
type Turn struct {
	ID        string
	UserText  string
	AgentText string
	StartTime time.Time
	EndTime   time.Time
	ToolCalls []string
}

// VoiceSession tracks the conversational state and turn history for one
// client connection.
type VoiceSession struct {
	ID        string
	State     SessionState
	CreatedAt time.Time
	Metadata  map[string]any
	Turns     []Turn
}

// NewSession creates an idle VoiceSession with the given ID.
func NewSession(id string) *VoiceSession {
	return &VoiceSession{
		ID:        id,
		State:     StateIdle,
		CreatedAt: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// Transition moves the session to state to, if the transition is allowed.
// idle -> idle is a permitted no-op; listening -> listening and
// speaking -> speaking are not.
func (s *VoiceSession) Transition(to SessionState) error {
	if !allowedTransitions[s.State][to] {
		return fmt.Errorf("voice: invalid transition %s -> %s", s.State, to)
	}
	s.State = to
	return nil
}

// CurrentState returns the session's current state.
func (s *VoiceSession) CurrentState() SessionState {
	return s.State
}

// AddTurn appends turn to the session's history.
func (s *VoiceSession) AddTurn(turn Turn) {
	s.Turns = append(s.Turns, turn)
}

// TurnCount returns the number of turns recorded so far.
func (s *VoiceSession) TurnCount() int {
	return len(s.Turns)
}

// LastTurn returns a pointer to the most recent turn, or nil if none exist.
func (s *VoiceSession) LastTurn() *Turn {
	if len(s.Turns) == 0 {
		return nil
	}
	return &s.Turns[len(s.Turns)-1]
}
