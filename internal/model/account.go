package model

import "time"

// Account represents a business account tracked by the marketing dashboard.
// The audit core reads accounts and patches them; ownership stays with the
// store.
type Account struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Website       string            `json:"website,omitempty"`
	CRMID         string            `json:"crm_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"` // dashboard-mapped values, keyed by field name
	Enrichment    *Enrichment       `json:"enrichment,omitempty"`
	PostsPerMonth *float64          `json:"posts_per_month,omitempty"`
	LastAuditAt   *time.Time        `json:"last_audit_at,omitempty"`
	LastAudit     *ContentAudit     `json:"last_audit,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Mapped field keys populated by the dashboard's field-mapping UI.
const (
	FieldBlogURL = "blog_url"
	FieldWebsite = "website"
)

// Enrichment holds third-party enrichment data attached to an account.
type Enrichment struct {
	Website  string `json:"website,omitempty"`
	Industry string `json:"industry,omitempty"`
	Source   string `json:"source,omitempty"`
}

// AccountPatch is a partial account update. Nil fields are left untouched.
type AccountPatch struct {
	Website       *string    `json:"website,omitempty"`
	CRMID         *string    `json:"crm_id,omitempty"`
	PostsPerMonth *float64   `json:"posts_per_month,omitempty"`
	LastAuditAt   *time.Time `json:"last_audit_at,omitempty"`
}
