package entity

import "time"

// Attempt is an unauthorized OTP request reported by the otp module.
type Attempt struct {
	EventID          int64
	Identity         string
	Operation        string
	SourceAddress    string
	DeviceHint       string
	ClientDescriptor string
	OccurredAt       time.Time
}
