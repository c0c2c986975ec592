package entity

// Operation names the OTP operation an attempt was made against.
type Operation string

const (
	OperationIssue  Operation = "issue"
	OperationVerify Operation = "verify"
)

func (o Operation) String() string {
	return string(o)
}

// Outcome is the client-visible result of Issue or Verify.
type Outcome string

const (
	OutcomeIssued            Outcome = "Issued"
	OutcomeVerified          Outcome = "Verified"
	OutcomeInvalidRequest    Outcome = "InvalidRequest"
	OutcomeUnauthorized      Outcome = "Unauthorized"
	OutcomeStorageError      Outcome = "StorageError"
	OutcomeDeliveryError     Outcome = "DeliveryError"
	OutcomeNotFoundOrExpired Outcome = "NotFoundOrExpired"
	OutcomeExpired           Outcome = "Expired"
	OutcomeMismatch          Outcome = "Mismatch"
	OutcomeAlreadyUsed       Outcome = "AlreadyUsed"
)

func (o Outcome) String() string {
	return string(o)
}
