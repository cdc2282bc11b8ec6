package registration

import (
	"time"
)

// Pending is a restaurant registration awaiting admin approval.
type Pending struct {
	ID             string    `json:"id"             db:"id"`
	OwnerAccountID string    `json:"ownerAccountId" db:"owner_account_id"`
	Name           string    `json:"name"           db:"name"`
	Email          string    `json:"email"          db:"email"`
	Phone          string    `json:"phone"          db:"phone"`
	Address        string    `json:"address"        db:"address"`
	Cuisine        string    `json:"cuisine"        db:"cuisine"`
	DocumentURL    string    `json:"documentUrl"    db:"document_url"`
	StatusNote     string    `json:"statusNote"     db:"status_note"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

// CatalogEntry is a live restaurant. It keeps the identifier of the
// registration it was promoted from.
type CatalogEntry struct {
	ID             string    `json:"id"             db:"id"`
	OwnerAccountID string    `json:"ownerAccountId" db:"owner_account_id"`
	Name           string    `json:"name"           db:"name"`
	Email          string    `json:"email"          db:"email"`
	Phone          string    `json:"phone"          db:"phone"`
	Address        string    `json:"address"        db:"address"`
	Cuisine        string    `json:"cuisine"        db:"cuisine"`
	DocumentURL    string    `json:"documentUrl"    db:"document_url"`
	ApprovedAt     time.Time `json:"approvedAt"     db:"approved_at"`
	ApprovedBy     string    `json:"approvedBy"     db:"approved_by"`
	CreatedAt      time.Time `json:"createdAt"      db:"created_at"`
	UpdatedAt      time.Time `json:"updatedAt"      db:"updated_at"`
}

// Promote copies a pending registration into a catalog entry, stamping the
// approval and dropping review-only fields such as the status note.
func (p Pending) Promote(approverID string, now time.Time) CatalogEntry {
	return CatalogEntry{
		ID:             p.ID,
		OwnerAccountID: p.OwnerAccountID,
		Name:           p.Name,
		Email:          p.Email,
		Phone:          p.Phone,
		Address:        p.Address,
		Cuisine:        p.Cuisine,
		DocumentURL:    p.DocumentURL,
		ApprovedAt:     now,
		ApprovedBy:     approverID,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      now,
	}
}
