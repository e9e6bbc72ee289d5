package permission

import (
	"context"
	"sync"

	id "helpdesk/pkg/domain"
)

// OwnershipFunc resolves the creator of a ticket. The in-memory oracle
// delegates ownership checks so it does not depend on the ticket store
// package directly.
type OwnershipFunc func(ctx context.Context, number id.TicketNumber) (id.UserID, error)

// InMemoryOracle keeps capability grants in a map. Favors clarity over
// performance, like the other in-memory collaborators.
type InMemoryOracle struct {
	mu     sync.RWMutex
	grants map[id.UserID]map[id.PermissionID]struct{}
	owner  OwnershipFunc
}

func NewInMemoryOracle(owner OwnershipFunc) *InMemoryOracle {
	return &InMemoryOracle{
		grants: make(map[id.UserID]map[id.PermissionID]struct{}),
		owner:  owner,
	}
}

// Grant adds a capability to a user.
func (o *InMemoryOracle) Grant(userID id.UserID, perm id.PermissionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	set, ok := o.grants[userID]
	if !ok {
		set = make(map[id.PermissionID]struct{})
		o.grants[userID] = set
	}
	set[perm] = struct{}{}
}

// Revoke removes a capability from a user.
func (o *InMemoryOracle) Revoke(userID id.UserID, perm id.PermissionID) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if set, ok := o.grants[userID]; ok {
		delete(set, perm)
		if len(set) == 0 {
			delete(o.grants, userID)
		}
	}
}

func (o *InMemoryOracle) PermissionsOf(_ context.Context, userID id.UserID) (map[id.PermissionID]struct{}, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[id.PermissionID]struct{}, len(o.grants[userID]))
	for perm := range o.grants[userID] {
		out[perm] = struct{}{}
	}
	return out, nil
}

func (o *InMemoryOracle) IsOwner(ctx context.Context, userID id.UserID, number id.TicketNumber) (bool, error) {
	if o.owner == nil {
		return false, nil
	}
	creator, err := o.owner(ctx, number)
	if err != nil {
		return false, err
	}
	return creator == userID, nil
}

func (o *InMemoryOracle) Supporters(_ context.Context) ([]id.UserID, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	var out []id.UserID
	for userID, set := range o.grants {
		if _, ok := set[id.PermissionSupportTickets]; ok {
			out = append(out, userID)
		}
	}
	return out, nil
}
