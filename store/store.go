package store

import (
	"context"
	"fmt"
	"time"

	"github.com/fankam/depanneo/internal/profile"
	"github.com/fankam/depanneo/store/cache"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver

	// Caches for read-mostly objects.
	sessionCache  *cache.Cache
	providerCache *cache.Cache
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
		sessionCache: cache.New(cache.Config{
			DefaultTTL: 30 * time.Minute,
			MaxItems:   5000,
		}),
		providerCache: cache.New(cache.Config{
			DefaultTTL: 5 * time.Minute,
			MaxItems:   16,
		}),
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func sessionCacheKey(userKey string) string {
	return "session:" + userKey
}

// GetSessionByUserKey returns the session for the user key, or nil when the
// user has no session yet.
func (s *Store) GetSessionByUserKey(ctx context.Context, userKey string) (*Session, error) {
	if v, ok := s.sessionCache.Get(sessionCacheKey(userKey)); ok {
		if session, ok := v.(*Session); ok {
			return session, nil
		}
	}

	list, err := s.driver.ListSessions(ctx, &FindSession{UserKey: &userKey})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	s.sessionCache.Set(sessionCacheKey(userKey), list[0])
	return list[0], nil
}

// UpsertSession persists the session and refreshes the cache.
func (s *Store) UpsertSession(ctx context.Context, upsert *Session) (*Session, error) {
	session, err := s.driver.UpsertSession(ctx, upsert)
	if err != nil {
		return nil, err
	}
	s.sessionCache.Set(sessionCacheKey(session.UserKey), session)
	return session, nil
}

func (s *Store) ListSessions(ctx context.Context, find *FindSession) ([]*Session, error) {
	return s.driver.ListSessions(ctx, find)
}

func (s *Store) DeleteSession(ctx context.Context, delete *DeleteSession) error {
	return s.driver.DeleteSession(ctx, delete)
}

func (s *Store) CreateServiceRequestIfNoneOpen(ctx context.Context, create *ServiceRequest) (*ServiceRequest, bool, error) {
	return s.driver.CreateServiceRequestIfNoneOpen(ctx, create)
}

func (s *Store) ListServiceRequests(ctx context.Context, find *FindServiceRequest) ([]*ServiceRequest, error) {
	return s.driver.ListServiceRequests(ctx, find)
}

// GetOpenServiceRequest returns the single open request for the user key,
// or nil when none exists.
func (s *Store) GetOpenServiceRequest(ctx context.Context, userKey string) (*ServiceRequest, error) {
	list, err := s.driver.ListServiceRequests(ctx, &FindServiceRequest{UserKey: &userKey, OpenOnly: true})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateServiceRequest(ctx context.Context, update *UpdateServiceRequest) (*ServiceRequest, error) {
	return s.driver.UpdateServiceRequest(ctx, update)
}

func (s *Store) CreateProvider(ctx context.Context, create *Provider) (*Provider, error) {
	s.providerCache.Delete("providers:all")
	return s.driver.CreateProvider(ctx, create)
}

// ListProviders lists providers, serving the unfiltered listing from cache.
func (s *Store) ListProviders(ctx context.Context, find *FindProvider) ([]*Provider, error) {
	cacheable := find == nil || (find.ID == nil && find.Category == nil && find.Available == nil && find.Limit == nil)
	if cacheable {
		if v, ok := s.providerCache.Get("providers:all"); ok {
			if providers, ok := v.([]*Provider); ok {
				return providers, nil
			}
		}
	}
	providers, err := s.driver.ListProviders(ctx, find)
	if err != nil {
		return nil, err
	}
	if cacheable {
		s.providerCache.Set("providers:all", providers)
	}
	return providers, nil
}

// GetProvider returns one provider by id.
func (s *Store) GetProvider(ctx context.Context, id int32) (*Provider, error) {
	list, err := s.driver.ListProviders(ctx, &FindProvider{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("provider %d not found", id)
	}
	return list[0], nil
}

func (s *Store) UpdateProvider(ctx context.Context, update *UpdateProvider) (*Provider, error) {
	s.providerCache.Delete("providers:all")
	return s.driver.UpdateProvider(ctx, update)
}

func (s *Store) CreateNotificationAttempt(ctx context.Context, create *NotificationAttempt) (*NotificationAttempt, error) {
	return s.driver.CreateNotificationAttempt(ctx, create)
}

func (s *Store) ListNotificationAttempts(ctx context.Context, find *FindNotificationAttempt) ([]*NotificationAttempt, error) {
	return s.driver.ListNotificationAttempts(ctx, find)
}

func (s *Store) UpdateNotificationAttempt(ctx context.Context, update *UpdateNotificationAttempt) (*NotificationAttempt, error) {
	return s.driver.UpdateNotificationAttempt(ctx, update)
}
