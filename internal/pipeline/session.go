package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/dpolishuk/sketch2code/internal/models"
)

type State string

const (
	StateInit       State = "INIT"
	StateAnalyzing  State = "ANALYZING"
	StateRetrieving State = "RETRIEVING"
	StateGenerating State = "GENERATING"
	StateValidating State = "VALIDATING"
	StatePassed     State = "PASSED"
	StateExhausted  State = "EXHAUSTED"
	StateFailed     State = "FAILED"
)

// transitions is the complete set of legal moves.
var transitions = map[State][]State{
	StateInit:       {StateAnalyzing, StateFailed},
	StateAnalyzing:  {StateRetrieving, StateFailed},
	StateRetrieving: {StateGenerating, StateFailed},
	StateGenerating: {StateValidating, StateFailed},
	StateValidating: {StatePassed, StateGenerating, StateExhausted, StateFailed},
}

func (s State) Terminal() bool {
	return s == StatePassed || s == StateExhausted || s == StateFailed
}

// Stage is the collaborator-facing name of the work done in a state.
func (s State) Stage() string {
	switch s {
	case StateInit:
		return "init"
	case StateAnalyzing:
		return "vision"
	case StateRetrieving:
		return "rag"
	case StateGenerating:
		return "coder"
	case StateValidating:
		return "validator"
	}
	return ""
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

var ErrIllegalTransition = errors.New("illegal pipeline transition")

// Attempt records one generate-and-validate round.
type Attempt struct {
	Number   int                       `json:"number"`
	Artifact *models.GeneratedArtifact `json:"artifact"`
	Report   models.ValidationReport   `json:"report"`
	Duration time.Duration             `json:"duration"`
}

// Session is the state of one request. It is owned by a single Run call and
// never shared.
type Session struct {
	ID          string
	State       State
	Attempt     int
	MaxAttempts int

	Query string
	Image models.Image

	Analysis   *models.DiagramAnalysis
	Retrieval  models.RetrievalResult
	Artifact   *models.GeneratedArtifact
	LastReport *models.ValidationReport
	History    []Attempt
	Err        error

	StartedAt time.Time
}

func NewSession(id string, maxAttempts int) *Session {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Session{ID: id, State: StateInit, MaxAttempts: maxAttempts, StartedAt: time.Now()}
}

// advance moves the session to the next state, enforcing the transition table.
func (s *Session) advance(to State) error {
	if !canTransition(s.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.State, to)
	}
	s.State = to
	return nil
}

// recordAttempt stores the outcome of the current attempt.
func (s *Session) recordAttempt(report models.ValidationReport, took time.Duration) {
	s.History = append(s.History, Attempt{
		Number:   s.Attempt,
		Artifact: s.Artifact,
		Report:   report,
		Duration: took,
	})
	last := report
	s.LastReport = &last
}
