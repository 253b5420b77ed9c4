package catalog

import "github.com/williamsiker/practicas/internal/domain/catalog"

// Store is the persistence the use cases depend on: units of work for
// writes and repositories for plain reads.
type Store interface {
	catalog.UnitOfWorkFactory
	Requests() catalog.RequestRepository
	Services() catalog.ServiceRepository
}
