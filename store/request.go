package store

// RequestStatus is the lifecycle status of a service request.
// Terminal statuses (COMPLETED, CANCELLED) are immutable afterward.
type RequestStatus string

const (
	RequestStatusPending    RequestStatus = "PENDING"
	RequestStatusNotified   RequestStatus = "NOTIFIED"
	RequestStatusAssigned   RequestStatus = "ASSIGNED"
	RequestStatusInProgress RequestStatus = "IN_PROGRESS"
	RequestStatusCompleted  RequestStatus = "COMPLETED"
	RequestStatusCancelled  RequestStatus = "CANCELLED"
)

// IsTerminal reports whether the status is terminal.
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusCancelled
}

// ServiceRequest is created exactly once per completed slot set per session.
// At most one open (non-terminal) request exists per user key at a time.
type ServiceRequest struct {
	ID                 int32
	UID                string
	UserKey            string
	Category           string
	Location           string
	Description        string
	Urgency            string
	Status             RequestStatus
	AssignedProviderID *int32
	CreatedTs          int64
	UpdatedTs          int64
}

type FindServiceRequest struct {
	ID      *int32
	UID     *string
	UserKey *string
	Status  *RequestStatus
	// OpenOnly restricts to non-terminal statuses.
	OpenOnly bool
	Limit    *int
	Offset   *int
}

type UpdateServiceRequest struct {
	ID                 int32
	Status             *RequestStatus
	AssignedProviderID *int32
	Category           *string
	Location           *string
	Description        *string
	Urgency            *string
}

type DeleteServiceRequest struct {
	ID int32
}
