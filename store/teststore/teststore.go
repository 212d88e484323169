// Package teststore provides an in-memory store.Driver for tests. It keeps
// the same filtering and atomicity semantics as the sqlite driver without
// touching disk.
package teststore

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/fankam/depanneo/internal/profile"
	"github.com/fankam/depanneo/store"
)

// Driver is the in-memory store.Driver.
type Driver struct {
	mu sync.Mutex

	sessions     map[int32]*store.Session
	requests     map[int32]*store.ServiceRequest
	providers    map[int32]*store.Provider
	attempts     map[int32]*store.NotificationAttempt
	nextSession  int32
	nextRequest  int32
	nextProvider int32
	nextAttempt  int32
}

// New creates an empty in-memory driver.
func New() *Driver {
	return &Driver{
		sessions:  make(map[int32]*store.Session),
		requests:  make(map[int32]*store.ServiceRequest),
		providers: make(map[int32]*store.Provider),
		attempts:  make(map[int32]*store.NotificationAttempt),
	}
}

// NewStore wraps a fresh driver in a store.Store with a test profile.
func NewStore() (*store.Store, *Driver) {
	driver := New()
	return store.New(driver, &profile.Profile{Mode: "test"}), driver
}

func (d *Driver) GetDB() *sql.DB { return nil }

func (d *Driver) Close() error { return nil }

func (d *Driver) IsInitialized(ctx context.Context) (bool, error) { return true, nil }

func (d *Driver) UpsertSession(ctx context.Context, upsert *store.Session) (*store.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().Unix()
	if upsert.Phase == "" {
		upsert.Phase = store.PhaseGreeting
	}
	if upsert.LastActivityTs == 0 {
		upsert.LastActivityTs = now
	}

	for _, existing := range d.sessions {
		if existing.UserKey == upsert.UserKey {
			upsert.ID = existing.ID
			upsert.CreatedTs = existing.CreatedTs
			upsert.UpdatedTs = now
			copied := *upsert
			d.sessions[existing.ID] = &copied
			return upsert, nil
		}
	}

	d.nextSession++
	upsert.ID = d.nextSession
	upsert.CreatedTs = now
	upsert.UpdatedTs = now
	copied := *upsert
	d.sessions[upsert.ID] = &copied
	return upsert, nil
}

func (d *Driver) ListSessions(ctx context.Context, find *store.FindSession) ([]*store.Session, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := make([]*store.Session, 0)
	for _, s := range d.sessions {
		if find.ID != nil && s.ID != *find.ID {
			continue
		}
		if find.UserKey != nil && s.UserKey != *find.UserKey {
			continue
		}
		if find.LastActivityBefore != nil && s.LastActivityTs >= *find.LastActivityBefore {
			continue
		}
		if find.ExcludePhase != nil && s.Phase == *find.ExcludePhase {
			continue
		}
		copied := *s
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].LastActivityTs > list[j].LastActivityTs })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *Driver) DeleteSession(ctx context.Context, del *store.DeleteSession) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[del.ID]; !ok {
		return fmt.Errorf("session %d not found", del.ID)
	}
	delete(d.sessions, del.ID)
	return nil
}

func (d *Driver) CreateServiceRequestIfNoneOpen(ctx context.Context, create *store.ServiceRequest) (*store.ServiceRequest, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, r := range d.requests {
		if r.UserKey == create.UserKey && !r.Status.IsTerminal() {
			copied := *r
			return &copied, false, nil
		}
	}

	now := time.Now().Unix()
	d.nextRequest++
	create.ID = d.nextRequest
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Status == "" {
		create.Status = store.RequestStatusPending
	}
	create.CreatedTs = now
	create.UpdatedTs = now
	copied := *create
	d.requests[create.ID] = &copied
	return create, true, nil
}

func (d *Driver) ListServiceRequests(ctx context.Context, find *store.FindServiceRequest) ([]*store.ServiceRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := make([]*store.ServiceRequest, 0)
	for _, r := range d.requests {
		if find.ID != nil && r.ID != *find.ID {
			continue
		}
		if find.UID != nil && r.UID != *find.UID {
			continue
		}
		if find.UserKey != nil && r.UserKey != *find.UserKey {
			continue
		}
		if find.Status != nil && r.Status != *find.Status {
			continue
		}
		if find.OpenOnly && r.Status.IsTerminal() {
			continue
		}
		copied := *r
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID > list[j].ID })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *Driver) UpdateServiceRequest(ctx context.Context, update *store.UpdateServiceRequest) (*store.ServiceRequest, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, ok := d.requests[update.ID]
	if !ok || r.Status.IsTerminal() {
		return nil, fmt.Errorf("service request %d not found or terminal", update.ID)
	}

	if update.Status != nil {
		r.Status = *update.Status
	}
	if update.AssignedProviderID != nil {
		r.AssignedProviderID = update.AssignedProviderID
	}
	if update.Category != nil {
		r.Category = *update.Category
	}
	if update.Location != nil {
		r.Location = *update.Location
	}
	if update.Description != nil {
		r.Description = *update.Description
	}
	if update.Urgency != nil {
		r.Urgency = *update.Urgency
	}
	r.UpdatedTs = time.Now().Unix()
	copied := *r
	return &copied, nil
}

func (d *Driver) CreateProvider(ctx context.Context, create *store.Provider) (*store.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().Unix()
	d.nextProvider++
	create.ID = d.nextProvider
	create.CreatedTs = now
	create.UpdatedTs = now
	copied := *create
	d.providers[create.ID] = &copied
	return create, nil
}

func (d *Driver) ListProviders(ctx context.Context, find *store.FindProvider) ([]*store.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := make([]*store.Provider, 0)
	for _, p := range d.providers {
		if find.ID != nil && p.ID != *find.ID {
			continue
		}
		if find.Available != nil && p.Available != *find.Available {
			continue
		}
		if find.Category != nil && !p.ServesCategory(*find.Category) {
			continue
		}
		copied := *p
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *Driver) UpdateProvider(ctx context.Context, update *store.UpdateProvider) (*store.Provider, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	p, ok := d.providers[update.ID]
	if !ok {
		return nil, fmt.Errorf("provider %d not found", update.ID)
	}
	if update.Available != nil {
		p.Available = *update.Available
	}
	if update.Rating != nil {
		p.Rating = *update.Rating
	}
	if update.AvgResponseMins != nil {
		p.AvgResponseMins = *update.AvgResponseMins
	}
	p.UpdatedTs = time.Now().Unix()
	copied := *p
	return &copied, nil
}

func (d *Driver) CreateNotificationAttempt(ctx context.Context, create *store.NotificationAttempt) (*store.NotificationAttempt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now().Unix()
	d.nextAttempt++
	create.ID = d.nextAttempt
	if create.Status == "" {
		create.Status = store.AttemptStatusPending
	}
	create.CreatedTs = now
	create.UpdatedTs = now
	copied := *create
	d.attempts[create.ID] = &copied
	return create, nil
}

func (d *Driver) ListNotificationAttempts(ctx context.Context, find *store.FindNotificationAttempt) ([]*store.NotificationAttempt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	list := make([]*store.NotificationAttempt, 0)
	for _, a := range d.attempts {
		if find.ID != nil && a.ID != *find.ID {
			continue
		}
		if find.RequestID != nil && a.RequestID != *find.RequestID {
			continue
		}
		if find.Status != nil && a.Status != *find.Status {
			continue
		}
		if find.DueBefore != nil && a.NextRetryTs > *find.DueBefore {
			continue
		}
		copied := *a
		list = append(list, &copied)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].NextRetryTs != list[j].NextRetryTs {
			return list[i].NextRetryTs < list[j].NextRetryTs
		}
		return list[i].ID < list[j].ID
	})
	if find.Limit != nil && len(list) > *find.Limit {
		list = list[:*find.Limit]
	}
	return list, nil
}

func (d *Driver) UpdateNotificationAttempt(ctx context.Context, update *store.UpdateNotificationAttempt) (*store.NotificationAttempt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	a, ok := d.attempts[update.ID]
	if !ok {
		return nil, fmt.Errorf("notification attempt %d not found", update.ID)
	}
	if update.Status != nil {
		a.Status = *update.Status
	}
	if update.RetryCount != nil {
		a.RetryCount = *update.RetryCount
	}
	if update.NextRetryTs != nil {
		a.NextRetryTs = *update.NextRetryTs
	}
	if update.LastError != nil {
		a.LastError = *update.LastError
	}
	a.UpdatedTs = time.Now().Unix()
	copied := *a
	return &copied, nil
}

var _ store.Driver = (*Driver)(nil)
