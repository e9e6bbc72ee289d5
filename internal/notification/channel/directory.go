package channel

import (
	"context"
	"sync"

	id "helpdesk/pkg/domain"
	"helpdesk/pkg/platform/sentinel"
)

// StaticDirectory is an in-memory Directory for development and tests.
// Production deployments plug in the organization's user directory instead.
type StaticDirectory struct {
	mu        sync.RWMutex
	addresses map[id.UserID]string
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{addresses: make(map[id.UserID]string)}
}

func (d *StaticDirectory) Set(userID id.UserID, address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addresses[userID] = address
}

func (d *StaticDirectory) AddressOf(_ context.Context, userID id.UserID) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	address, ok := d.addresses[userID]
	if !ok {
		return "", sentinel.ErrNotFound
	}
	return address, nil
}
