package session

import (
	"sync"

	"github.com/google/uuid"

	"github.com/notepid/twilight_arcade/internal/game"
)

// State is the in-flight interaction for one user. A user with no stored
// state is idle. Each variant carries exactly what its continuation needs.
type State interface {
	// Flow names the variant for logs and tests.
	Flow() string
	// FlowID identifies one run of a flow; a new entry gets a new ID.
	FlowID() uuid.UUID
}

type flowBase struct {
	ID uuid.UUID
}

func newFlowBase() flowBase {
	return flowBase{ID: uuid.New()}
}

// FlowID implements State.
func (b flowBase) FlowID() uuid.UUID { return b.ID }

// GuessFlow is a guess-the-number game in progress.
type GuessFlow struct {
	flowBase
	Game game.GuessState
}

// Flow implements State.
func (GuessFlow) Flow() string { return "guess" }

// XOFlow is a tic-tac-toe game in progress.
type XOFlow struct {
	flowBase
	Game game.XOState
}

// Flow implements State.
func (XOFlow) Flow() string { return "xo" }

// QuizFlow holds the question awaiting an answer.
type QuizFlow struct {
	flowBase
	Question game.Question
}

// Flow implements State.
func (QuizFlow) Flow() string { return "quiz" }

// AwaitingTodo waits for the text of a new to-do item.
type AwaitingTodo struct {
	flowBase
}

// Flow implements State.
func (AwaitingTodo) Flow() string { return "todo" }

// FreeformKind selects the service answering an AwaitingFreeform prompt.
type FreeformKind string

const (
	Weather   FreeformKind = "weather"
	Currency  FreeformKind = "currency"
	Translate FreeformKind = "translate"
)

// AwaitingFreeform waits for input to a text service.
type AwaitingFreeform struct {
	flowBase
	Kind FreeformKind
}

// Flow implements State.
func (a AwaitingFreeform) Flow() string { return "freeform:" + string(a.Kind) }

// Store holds at most one State per user.
type Store interface {
	// Load returns the user's state, or nil when idle.
	Load(userID int64) State
	// Save replaces the user's state.
	Save(userID int64, s State)
	// Clear returns the user to idle.
	Clear(userID int64)
}

// MemoryStore is a process-local Store. State is lost on restart.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[int64]State
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[int64]State)}
}

// Load implements Store.
func (s *MemoryStore) Load(userID int64) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[userID]
}

// Save implements Store.
func (s *MemoryStore) Save(userID int64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = st
}

// Clear implements Store.
func (s *MemoryStore) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}

// Len returns the number of users with an active flow.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}
