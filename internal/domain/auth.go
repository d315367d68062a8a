package domain

import "time"

// SubjectType differentiates reporters vs technician tokens.
type SubjectType string

const (
	SubjectTypeReporter   SubjectType = "REPORTER"
	SubjectTypeTechnician SubjectType = "TECHNICIAN"
)

// Token represents issued authentication token metadata.
type Token struct {
	ID        string
	SubjectID string
	Subject   SubjectType
	Role      *TechnicianRole
	ExpiresAt time.Time
	IssuedAt  time.Time
}
