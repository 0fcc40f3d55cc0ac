package domain

import "time"

// GoogleConnection stores a tenant's Google OAuth grant. Access and refresh
// tokens are envelope-encrypted before they reach this struct's Encrypted*
// fields; plaintext token material never touches the database.
type GoogleConnection struct {
	ID                    int64
	TenantID              string
	AccountEmail          string
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	Scopes                []string
	TokenExpiresAt        time.Time
	ConnectedBy           string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// SheetLink is a per-tenant spreadsheet export target.
type SheetLink struct {
	ID            int64
	TenantID      string
	SpreadsheetID string
	SheetName     string
	Description   string
	CreatedBy     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InboundMessage is an email delivered by the mail provider's webhook.
type InboundMessage struct {
	ID         int64
	TenantID   string
	ProviderID string
	Sender     string
	Recipient  string
	Subject    string
	BodyPlain  string
	ReceivedAt time.Time
	CreatedAt  time.Time
}

// AuditEntry records a privileged action against a tenant.
type AuditEntry struct {
	ID        int64
	TenantID  string
	ActorID   string
	Action    string
	Subject   string
	Detail    string
	CreatedAt time.Time
}
