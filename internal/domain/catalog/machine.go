package catalog

import (
	"encoding/json"
	"fmt"

	"github.com/felixgeelhaar/statekit"
)

// LifecycleContext is the context passed to the lifecycle machines.
type LifecycleContext struct {
	Request *ServiceRequest
	Service *Service
	ActorID int64
}

// Request lifecycle events.
const (
	EventApprove        statekit.EventType = "APPROVE"
	EventReject         statekit.EventType = "REJECT"
	EventRequestChanges statekit.EventType = "REQUEST_CHANGES"
	EventResubmit       statekit.EventType = "RESUBMIT"
)

// Service lifecycle events.
const (
	EventPublish     statekit.EventType = "PUBLISH"
	EventUnpublish   statekit.EventType = "UNPUBLISH"
	EventActivate    statekit.EventType = "ACTIVATE"
	EventMaintenance statekit.EventType = "MAINTENANCE"
	EventDeactivate  statekit.EventType = "DEACTIVATE"
	EventSubmit      statekit.EventType = "SUBMIT"
	EventAccept      statekit.EventType = "ACCEPT"
	EventDecline     statekit.EventType = "DECLINE"
)

// GuardHasActor requires a positive actor id in the machine context.
const GuardHasActor statekit.GuardType = "hasActor"

type transition struct {
	event  statekit.EventType
	target string
	guard  statekit.GuardType
}

var requestMachineSpec = map[RequestStatus][]transition{
	RequestPendingReview: {
		{EventApprove, string(RequestApproved), GuardHasActor},
		{EventReject, string(RequestRejected), GuardHasActor},
		{EventRequestChanges, string(RequestNeedsModification), GuardHasActor},
		{EventResubmit, string(RequestPendingReview), GuardHasActor},
	},
	RequestNeedsModification: {
		{EventResubmit, string(RequestPendingReview), GuardHasActor},
	},
}

var serviceMachineSpec = map[ServiceStatus][]transition{
	ServiceDraft: {
		{EventSubmit, string(ServicePending), GuardHasActor},
		{EventDecline, string(ServiceRejected), GuardHasActor},
	},
	ServicePending: {
		{EventAccept, string(ServiceReadyToPublish), GuardHasActor},
		{EventDecline, string(ServiceRejected), GuardHasActor},
	},
	ServiceReadyToPublish: {
		{EventPublish, string(ServicePublished), GuardHasActor},
	},
	ServicePublished: {
		{EventUnpublish, string(ServiceReadyToPublish), GuardHasActor},
		{EventActivate, string(ServiceActive), GuardHasActor},
		{EventMaintenance, string(ServiceMaintenance), GuardHasActor},
		{EventDeactivate, string(ServiceInactive), GuardHasActor},
	},
	ServiceActive: {
		{EventUnpublish, string(ServiceReadyToPublish), GuardHasActor},
		{EventMaintenance, string(ServiceMaintenance), GuardHasActor},
		{EventDeactivate, string(ServiceInactive), GuardHasActor},
	},
	ServiceMaintenance: {
		{EventActivate, string(ServiceActive), GuardHasActor},
		{EventDeactivate, string(ServiceInactive), GuardHasActor},
	},
	ServiceInactive: {
		{EventActivate, string(ServiceActive), GuardHasActor},
	},
}

func guardHasActor(ctx LifecycleContext, _ statekit.Event) bool {
	return ctx.ActorID > 0
}

// LifecycleMachine wraps a statekit interpreter for one of the catalog lifecycles.
type LifecycleMachine struct {
	id          string
	initial     string
	interpreter *statekit.Interpreter[LifecycleContext]
}

// NewRequestMachine builds the service request lifecycle machine.
func NewRequestMachine() (*LifecycleMachine, error) {
	return newRequestMachineAt(RequestPendingReview)
}

// NewServiceMachine builds the enhanced service lifecycle machine.
func NewServiceMachine() (*LifecycleMachine, error) {
	return newServiceMachineAt(ServiceDraft)
}

func newRequestMachineAt(initial RequestStatus) (*LifecycleMachine, error) {
	return buildLifecycle("service-request", initial, AllRequestStatuses(), requestMachineSpec, RequestStatus.IsFinal)
}

func newServiceMachineAt(initial ServiceStatus) (*LifecycleMachine, error) {
	return buildLifecycle("service", initial, AllServiceStatuses(), serviceMachineSpec,
		func(s ServiceStatus) bool { return s == ServiceRejected })
}

// buildLifecycle turns a transition table into a statekit machine, so the
// interpreter, the Validate*Event checks and the XState export share one source.
func buildLifecycle[S ~string](id string, initial S, statuses []S, spec map[S][]transition, final func(S) bool) (*LifecycleMachine, error) {
	b := statekit.NewMachine[LifecycleContext](id).
		WithInitial(statekit.StateID(initial)).
		WithGuard(GuardHasActor, guardHasActor)

	for _, status := range statuses {
		sb := b.State(statekit.StateID(status))
		for _, t := range spec[status] {
			tb := sb.On(t.event).Target(statekit.StateID(t.target))
			if t.guard != "" {
				tb = tb.Guard(t.guard)
			}
			sb = tb.End()
		}
		if final(status) {
			sb = sb.Final()
		}
		b = sb.Done()
	}

	machine, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s machine: %w", id, err)
	}

	return &LifecycleMachine{
		id:          id,
		initial:     string(initial),
		interpreter: statekit.NewInterpreter(machine),
	}, nil
}

// Start starts the interpreter at the initial state.
func (m *LifecycleMachine) Start() {
	m.interpreter.Start()
}

// Send sends an event on behalf of actorID. Without an actor the guard
// rejects the transition and the state is unchanged.
func (m *LifecycleMachine) Send(actorID int64, event statekit.EventType) {
	m.interpreter.UpdateContext(func(ctx *LifecycleContext) { ctx.ActorID = actorID })
	m.interpreter.Send(statekit.Event{Type: event})
}

// CurrentState returns the interpreter's current state.
func (m *LifecycleMachine) CurrentState() string {
	return string(m.interpreter.State().Value)
}

// IsDone returns true if the machine is in a final state.
func (m *LifecycleMachine) IsDone() bool {
	return m.interpreter.Done()
}

// RequestTarget returns the status an event leads to from the given request status.
func RequestTarget(from RequestStatus, event statekit.EventType) (RequestStatus, bool) {
	for _, t := range requestMachineSpec[from] {
		if t.event == event {
			return RequestStatus(t.target), true
		}
	}
	return "", false
}

// ServiceTarget returns the status an event leads to from the given service status.
func ServiceTarget(from ServiceStatus, event statekit.EventType) (ServiceStatus, bool) {
	for _, t := range serviceMachineSpec[from] {
		if t.event == event {
			return ServiceStatus(t.target), true
		}
	}
	return "", false
}

// ValidateRequestEvent checks that event is legal for req and its guard passes.
func ValidateRequestEvent(req *ServiceRequest, event statekit.EventType, actorID int64) error {
	target, ok := RequestTarget(req.Status(), event)
	if !ok {
		return fmt.Errorf("%w: %s not allowed from %s", ErrInvalidStateTransition, event, req.Status())
	}
	if !guardHasActor(LifecycleContext{Request: req, ActorID: actorID}, statekit.Event{Type: event}) {
		return ErrMissingActor
	}
	if !req.Status().CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, req.Status(), target)
	}
	return nil
}

// ValidateServiceEvent checks that event is legal for svc and its guard passes.
func ValidateServiceEvent(svc *Service, event statekit.EventType, actorID int64) error {
	target, ok := ServiceTarget(svc.Status(), event)
	if !ok {
		return fmt.Errorf("%w: %s not allowed from %s", ErrInvalidStateTransition, event, svc.Status())
	}
	if !guardHasActor(LifecycleContext{Service: svc, ActorID: actorID}, statekit.Event{Type: event}) {
		return ErrMissingActor
	}
	if !svc.Status().CanTransitionTo(target) {
		return fmt.Errorf("%w: cannot transition from %s to %s", ErrInvalidStateTransition, svc.Status(), target)
	}
	return nil
}

// XStateJSON represents the XState JSON format for visualization.
type XStateJSON struct {
	ID      string                     `json:"id"`
	Initial string                     `json:"initial"`
	States  map[string]XStateStateJSON `json:"states"`
}

// XStateStateJSON represents a state in XState JSON format.
type XStateStateJSON struct {
	Type string                      `json:"type,omitempty"`
	On   map[string]XStateTransition `json:"on,omitempty"`
}

// XStateTransition represents a transition in XState JSON format.
type XStateTransition struct {
	Target string `json:"target"`
	Guard  string `json:"cond,omitempty"`
}

// ExportXStateJSON exports the machine definition as XState-compatible JSON.
func (m *LifecycleMachine) ExportXStateJSON() ([]byte, error) {
	out := XStateJSON{
		ID:      m.id,
		Initial: m.initial,
		States:  map[string]XStateStateJSON{},
	}

	switch m.id {
	case "service-request":
		for _, status := range AllRequestStatuses() {
			out.States[string(status)] = exportState(requestMachineSpec[status], status.IsFinal())
		}
	default:
		for _, status := range AllServiceStatuses() {
			out.States[string(status)] = exportState(serviceMachineSpec[status], status == ServiceRejected)
		}
	}

	return json.MarshalIndent(out, "", "  ")
}

func exportState(transitions []transition, final bool) XStateStateJSON {
	if final {
		return XStateStateJSON{Type: "final"}
	}
	state := XStateStateJSON{On: map[string]XStateTransition{}}
	for _, t := range transitions {
		state.On[string(t.event)] = XStateTransition{Target: t.target, Guard: string(t.guard)}
	}
	return state
}
