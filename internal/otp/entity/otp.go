package entity

import "time"

// OTP is an issued code as held by the store.
type OTP struct {
	ID       int64
	Identity string
	Code     int64
	IssuedAt time.Time
}

// NewOTP carries what the store needs to persist a freshly issued code.
type NewOTP struct {
	Identity string
	Code     int64
	IssuedAt time.Time
}

// Expired reports whether the code is older than validity at now.
func (o *OTP) Expired(now time.Time, validity time.Duration) bool {
	return now.Sub(o.IssuedAt) > validity
}

// RequestMetadata describes the caller behind a request.
type RequestMetadata struct {
	SourceAddress    string
	DeviceHint       string
	ClientDescriptor string
	Timestamp        time.Time
}

// UnauthorizedAttempt is raised when an identity outside the allow-list calls in.
type UnauthorizedAttempt struct {
	Identity  string
	Operation Operation
	RequestMetadata
}
