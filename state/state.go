package state

import (
	"errors"
	"sync"
)

// Phase 房间游戏阶段
type Phase string

const (
	Waiting    Phase = "waiting"
	InProgress Phase = "in_progress"
	Ended      Phase = "ended"
)

// 状态机接口
type StateMachine interface {
	ChangeState(state State) error
	GetCurrentState() State
	AddTransition(from, to Phase, condition func() bool) error
}

// 状态接口
type State interface {
	OnEnter()
	OnExit()
	GetID() Phase
}

// ErrTransitionNotAllowed is returned when a state transition is not
// registered or its condition rejects it.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only permits transitions that were registered with
// AddTransition, so phases cannot move backwards unless explicitly allowed.
type BaseStateMachine struct {
	currentState State
	transitions  map[Phase]map[Phase]func() bool // fromState -> toState -> condition
	mutex        sync.RWMutex
}

func NewBaseStateMachine(initialState State) *BaseStateMachine {
	machine := &BaseStateMachine{
		currentState: initialState,
		transitions:  make(map[Phase]map[Phase]func() bool),
	}
	initialState.OnEnter()
	return machine
}

// CanChange reports whether a transition to the given phase would currently
// be accepted, without performing it.
func (sm *BaseStateMachine) CanChange(to Phase) bool {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.allowed(to)
}

func (sm *BaseStateMachine) allowed(to Phase) bool {
	conditions, exists := sm.transitions[sm.currentState.GetID()]
	if !exists {
		return false
	}
	condition, exists := conditions[to]
	if !exists {
		return false
	}
	return condition == nil || condition()
}

func (sm *BaseStateMachine) ChangeState(newState State) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if !sm.allowed(newState.GetID()) {
		return ErrTransitionNotAllowed
	}

	sm.currentState.OnExit()
	sm.currentState = newState
	sm.currentState.OnEnter()

	return nil
}

func (sm *BaseStateMachine) GetCurrentState() State {
	sm.mutex.RLock()
	defer sm.mutex.RUnlock()
	return sm.currentState
}

// Phase returns the ID of the current state.
func (sm *BaseStateMachine) Phase() Phase {
	return sm.GetCurrentState().GetID()
}

func (sm *BaseStateMachine) AddTransition(from, to Phase, condition func() bool) error {
	sm.mutex.Lock()
	defer sm.mutex.Unlock()

	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[Phase]func() bool)
	}

	sm.transitions[from][to] = condition
	return nil
}

// PhaseState is a State with optional enter/exit hooks.
type PhaseState struct {
	ID    Phase
	Enter func()
	Exit  func()
}

func (s *PhaseState) GetID() Phase {
	return s.ID
}

func (s *PhaseState) OnEnter() {
	if s.Enter != nil {
		s.Enter()
	}
}

func (s *PhaseState) OnExit() {
	if s.Exit != nil {
		s.Exit()
	}
}

// NewGameMachine builds the quiz lifecycle waiting -> in_progress -> ended.
// canStart guards the first transition.
func NewGameMachine(canStart func() bool) *BaseStateMachine {
	sm := NewBaseStateMachine(&PhaseState{ID: Waiting})
	_ = sm.AddTransition(Waiting, InProgress, canStart)
	_ = sm.AddTransition(InProgress, Ended, nil)
	return sm
}
