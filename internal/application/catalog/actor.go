// Package catalog provides application use cases for the service catalog
// approval and publication workflows.
package catalog

import (
	"fmt"
	"strings"

	"github.com/williamsiker/practicas/internal/domain/catalog"
	apperrors "github.com/williamsiker/practicas/internal/errors"
)

// Role is the authorization role of an actor.
type Role string

// Roles.
const (
	RolePublisher Role = "publisher"
	RoleAdmin     Role = "admin"
)

// ParseRole parses a role name. Unknown names are an error.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePublisher, "":
		return RolePublisher, nil
	case RoleAdmin:
		return RoleAdmin, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID   int64
	Role Role
}

// IsAdmin reports whether the actor may review requests and manage endpoints.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

func requireActor(op string, a Actor) error {
	if a.ID <= 0 {
		return apperrors.Authentication(op, catalog.ErrMissingActor.Error())
	}
	return nil
}

func requireAdmin(op string, a Actor) error {
	if err := requireActor(op, a); err != nil {
		return err
	}
	if !a.IsAdmin() {
		return apperrors.Permission(op, "administrator role required")
	}
	return nil
}

// canSeeRequest hides other publishers' requests behind NotFound.
func canSeeRequest(a Actor, req *catalog.ServiceRequest) bool {
	return a.IsAdmin() || req.IsOwnedBy(a.ID)
}

func canSeeService(a Actor, svc *catalog.Service) bool {
	return a.IsAdmin() || svc.IsOwnedBy(a.ID)
}

func requestNotFound(op string, id int64) error {
	return apperrors.NotFoundWrap(catalog.ErrRequestNotFound, op, fmt.Sprintf("service request %d not found", id))
}

func serviceNotFound(op string, id int64) error {
	return apperrors.NotFoundWrap(catalog.ErrServiceNotFound, op, fmt.Sprintf("service %d not found", id))
}
