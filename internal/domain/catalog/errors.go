package catalog

import "errors"

// Domain errors for catalog operations.
var (
	// ErrRequestNotFound indicates a service request was not found.
	ErrRequestNotFound = errors.New("service request not found")

	// ErrServiceNotFound indicates an enhanced service was not found.
	ErrServiceNotFound = errors.New("service not found")

	// ErrInvalidStateTransition indicates an invalid status transition.
	ErrInvalidStateTransition = errors.New("invalid state transition")

	// ErrDuplicateName indicates the name is already taken.
	ErrDuplicateName = errors.New("name already in use")

	// ErrDuplicateURL indicates the managed endpoint is already taken.
	ErrDuplicateURL = errors.New("managed endpoint already in use")

	// ErrLinkedService indicates the request is linked to a promoted service.
	ErrLinkedService = errors.New("request is linked to an approved service")

	// ErrMissingActor indicates no actor was supplied.
	ErrMissingActor = errors.New("actor is required")

	// ErrNotOwner indicates the actor does not own the entity.
	ErrNotOwner = errors.New("actor does not own this entity")

	// ErrTransactionInactive indicates the unit of work was already committed or rolled back.
	ErrTransactionInactive = errors.New("unit of work is not active")
)
