package store

// AttemptStatus is the delivery state of a notification attempt.
type AttemptStatus string

const (
	AttemptStatusPending   AttemptStatus = "PENDING"
	AttemptStatusSent      AttemptStatus = "SENT"
	AttemptStatusFailed    AttemptStatus = "FAILED"
	AttemptStatusExhausted AttemptStatus = "EXHAUSTED"
)

// NotificationAttempt tracks delivery of one message for one request.
// retry_count never exceeds the configured maximum; when it is reached the
// status becomes EXHAUSTED exactly once and the fallback path fires instead
// of silently dropping the message.
type NotificationAttempt struct {
	ID        int32
	RequestID int32
	// Target is "provider:<id>" or "requester:<user key>".
	Target      string
	Channel     string
	Status      AttemptStatus
	RetryCount  int
	NextRetryTs int64
	LastError   string
	CreatedTs   int64
	UpdatedTs   int64
}

type FindNotificationAttempt struct {
	ID        *int32
	RequestID *int32
	Status    *AttemptStatus
	// DueBefore selects attempts whose next retry is due at or before the
	// given unix timestamp. Used by the restart-recovery sweep.
	DueBefore *int64
	Limit     *int
}

type UpdateNotificationAttempt struct {
	ID          int32
	Status      *AttemptStatus
	RetryCount  *int
	NextRetryTs *int64
	LastError   *string
}
