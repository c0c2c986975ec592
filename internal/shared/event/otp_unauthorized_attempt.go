package event

import "time"

const OTPUnauthorizedAttemptDestination string = "otp_unauthorized_attempt"
const OTPUnauthorizedAttemptConsumerAlert string = "otp_unauthorized_attempt_alert"

type OTPUnauthorizedAttemptMessage struct {
	EventID          int64     `json:"event_id,string"`
	Identity         string    `json:"identity"`
	Operation        string    `json:"operation"`
	SourceAddress    string    `json:"source_address"`
	DeviceHint       string    `json:"device_hint"`
	ClientDescriptor string    `json:"client_descriptor"`
	OccurredAt       time.Time `json:"occurred_at"`
}
