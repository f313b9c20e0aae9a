package identity

import "time"

// KYCStatus gates payment capability. Only APPROVED users may move money.
type KYCStatus string

const (
	KYCPending  KYCStatus = "PENDING"
	KYCApproved KYCStatus = "APPROVED"
	KYCRejected KYCStatus = "REJECTED"
)

// User represents a registered wallet owner.
type User struct {
	ID             string
	Email          string
	PassportNumber string
	FullName       string
	Phone          string
	PasswordHash   []byte
	KYCStatus      KYCStatus
	KYCRef         string
	CreatedAt      time.Time
}

// RegisterInput captures the registration request.
type RegisterInput struct {
	Email          string
	Password       string
	FullName       string
	PassportNumber string
	Phone          string
}
