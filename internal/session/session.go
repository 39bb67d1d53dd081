package session

import (
	"context"
	"math"
	"sync"
	"time"

	"cryptoquest-engine/internal/domain"

	"github.com/google/uuid"
)

// Provider fetches a question set for a tier (AI generator, cache, static fixture).
type Provider interface {
	Generate(ctx context.Context, tier domain.Tier, count int) ([]domain.Question, error)
}

// State is the lifecycle phase of a session.
type State string

const (
	StateLoading   State = "loading"
	StateActive    State = "active"
	StateCompleted State = "completed"
	StateError     State = "error"
)

// Session is one play-through of a quiz. Its id is freshly generated per
// start and doubles as the idempotency key for settlement and reward claim;
// it is never reused across replays.
type Session struct {
	mu        sync.Mutex
	id        string
	tier      domain.Tier
	mode      domain.Mode
	requested int
	questions []domain.Question
	index     int
	score     int
	answered  []bool
	selected  []int
	state     State
	errMsg    string
	settled   bool
	createdAt time.Time
}

// Engine creates sessions by asking the question provider and owns id generation.
type Engine struct {
	provider Provider
	store    *Store
	newID    func() string
	now      func() time.Time
}

func NewEngine(provider Provider, store *Store) *Engine {
	return &Engine{
		provider: provider,
		store:    store,
		newID:    uuid.NewString,
		now:      time.Now,
	}
}

// NewEngineWithIDs is test-only for deterministic ids and timestamps.
func NewEngineWithIDs(provider Provider, store *Store, newID func() string, now func() time.Time) *Engine {
	return &Engine{provider: provider, store: store, newID: newID, now: now}
}

// Start fetches questions and returns a fresh Active session. On provider
// failure it returns a session parked in StateError together with the error;
// the caller retries by calling Start again, which always mints a new id.
// A provider returning fewer questions than requested is accepted as-is: the
// session's max score is the actual count, never the requested one.
func (e *Engine) Start(ctx context.Context, tier domain.Tier, mode domain.Mode) (*Session, error) {
	s := &Session{
		id:        e.newID(),
		tier:      tier,
		mode:      mode,
		requested: mode.Questions(tier),
		state:     StateLoading,
		createdAt: e.now(),
	}

	questions, err := e.provider.Generate(ctx, tier, s.requested)
	if err != nil {
		s.fail(err.Error())
		return s, err
	}
	usable := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		if q.Valid() {
			usable = append(usable, q)
		}
	}
	if len(usable) == 0 {
		s.fail("the generator returned no usable questions")
		return s, domain.ErrGeneration
	}

	s.activate(usable)
	if e.store != nil {
		e.store.Put(s)
	}
	return s, nil
}

func (s *Session) activate(questions []domain.Question) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.questions = questions
	s.answered = make([]bool, len(questions))
	s.selected = make([]int, len(questions))
	for i := range s.selected {
		s.selected[i] = -1
	}
	s.index = 0
	s.score = 0
	s.state = StateActive
}

func (s *Session) fail(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateError
	s.errMsg = msg
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Tier() domain.Tier { return s.tier }
func (s *Session) Mode() domain.Mode { return s.mode }

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ErrorMessage is the human-readable reason for StateError.
func (s *Session) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Current returns the zero-based index and a copy of the question under the pointer.
func (s *Session) Current() (int, domain.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return 0, domain.Question{}, domain.ErrSessionState
	}
	return s.index, s.questions[s.index], nil
}

// Answer records the selection for the current question. A repeated answer on
// an already-answered question is rejected and never changes the score. An
// exact match of the correct index awards exactly one point.
func (s *Session) Answer(option int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return false, domain.ErrSessionState
	}
	if s.answered[s.index] {
		return false, domain.ErrAlreadyAnswered
	}
	q := s.questions[s.index]
	if option < 0 || option >= len(q.Answers) {
		return false, domain.ErrInvalidOption
	}
	s.answered[s.index] = true
	s.selected[s.index] = option
	correct := option == q.CorrectIndex
	if correct {
		s.score++
	}
	return correct, nil
}

// Advance moves past an answered question. It reports done=true when the
// session transitions to Completed; the caller is responsible for triggering
// settlement exactly once (see MarkSettled).
func (s *Session) Advance() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateActive {
		return false, domain.ErrSessionState
	}
	if !s.answered[s.index] {
		return false, domain.ErrNotAnswered
	}
	if s.index+1 < len(s.questions) {
		s.index++
		return false, nil
	}
	s.state = StateCompleted
	return true, nil
}

// MarkSettled flips the settled flag and reports whether this call won the
// race. Guards against settlement running twice for one session.
func (s *Session) MarkSettled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCompleted || s.settled {
		return false
	}
	s.settled = true
	return true
}

func (s *Session) Score() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.score
}

// MaxScore is the number of questions actually played, which may be fewer
// than requested if the provider came up short.
func (s *Session) MaxScore() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.questions)
}

// Percentage is round(score / maxScore * 100), always against this session's
// actual question list.
func (s *Session) Percentage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.questions) == 0 {
		return 0
	}
	return int(math.Round(float64(s.score) / float64(len(s.questions)) * 100))
}

// Passed reports whether the session met its tier's threshold.
func (s *Session) Passed() bool {
	return s.Percentage() >= s.tier.PassPercent
}

// ClaimEligible reports whether the session can back an on-chain claim:
// completed, passed, and played in full mode.
func (s *Session) ClaimEligible() bool {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()
	return state == StateCompleted && s.mode == domain.ModeFull && s.Passed()
}

// Record converts the finished session into its settlement payload.
func (s *Session) Record(userID string, at time.Time) domain.AttemptRecord {
	return domain.AttemptRecord{
		UserID:    userID,
		Tier:      s.tier.Name,
		SessionID: s.id,
		Score:     s.Score(),
		MaxScore:  s.MaxScore(),
		Percent:   s.Percentage(),
		CreatedAt: at,
	}
}
