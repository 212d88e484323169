package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Session model related methods.
	UpsertSession(ctx context.Context, upsert *Session) (*Session, error)
	ListSessions(ctx context.Context, find *FindSession) ([]*Session, error)
	DeleteSession(ctx context.Context, delete *DeleteSession) error

	// ServiceRequest model related methods.
	// CreateServiceRequestIfNoneOpen atomically creates a request unless an
	// open (non-terminal) request already exists for the user key; in that
	// case it returns the existing request and created=false.
	CreateServiceRequestIfNoneOpen(ctx context.Context, create *ServiceRequest) (request *ServiceRequest, created bool, err error)
	ListServiceRequests(ctx context.Context, find *FindServiceRequest) ([]*ServiceRequest, error)
	UpdateServiceRequest(ctx context.Context, update *UpdateServiceRequest) (*ServiceRequest, error)

	// Provider model related methods.
	CreateProvider(ctx context.Context, create *Provider) (*Provider, error)
	ListProviders(ctx context.Context, find *FindProvider) ([]*Provider, error)
	UpdateProvider(ctx context.Context, update *UpdateProvider) (*Provider, error)

	// NotificationAttempt model related methods.
	CreateNotificationAttempt(ctx context.Context, create *NotificationAttempt) (*NotificationAttempt, error)
	ListNotificationAttempts(ctx context.Context, find *FindNotificationAttempt) ([]*NotificationAttempt, error)
	UpdateNotificationAttempt(ctx context.Context, update *UpdateNotificationAttempt) (*NotificationAttempt, error)
}
