package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind - Which commercial document a row holds
type Kind string

const (
	KindQuote         Kind = "QUOTE"
	KindPurchaseOrder Kind = "PURCHASE_ORDER"
	KindInvoice       Kind = "INVOICE"
)

// Status - Lifecycle state of a document
type Status string

const (
	StatusDraft           Status = "DRAFT"
	StatusPendingApproval Status = "PENDING_APPROVAL"
	StatusApproved        Status = "APPROVED"
	StatusRejected        Status = "REJECTED"
	StatusConverted       Status = "CONVERTED"
)

// DiscountType - How a line discount is interpreted
type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountAmount  DiscountType = "AMOUNT"
)

// ApprovalAction - What an approver did
type ApprovalAction string

const (
	ApprovalSubmitted ApprovalAction = "SUBMITTED"
	ApprovalApproved  ApprovalAction = "APPROVED"
	ApprovalRejected  ApprovalAction = "REJECTED"
)

// AuditAction - The mutation an audit row belongs to
type AuditAction string

const (
	AuditCreate            AuditAction = "CREATE"
	AuditUpdate            AuditAction = "UPDATE"
	AuditDelete            AuditAction = "DELETE"
	AuditSubmitForApproval AuditAction = "SUBMIT_FOR_APPROVAL"
	AuditApprove           AuditAction = "APPROVE"
	AuditReject            AuditAction = "REJECT"
	AuditConvert           AuditAction = "CONVERT"
	AuditExportPDF         AuditAction = "EXPORT_PDF"
	AuditExportExcel       AuditAction = "EXPORT_EXCEL"
)

// Document - Quote, Purchase Order or Invoice header
type Document struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	TenantID uint   `gorm:"not null;uniqueIndex:idx_documents_tenant_kind_number,priority:1" json:"tenant_id"`
	Kind     Kind   `gorm:"type:varchar(20);not null;uniqueIndex:idx_documents_tenant_kind_number,priority:2" json:"kind"`
	Number   string `gorm:"type:varchar(30);not null;uniqueIndex:idx_documents_tenant_kind_number,priority:3" json:"number"`

	CounterpartyRef string     `gorm:"type:varchar(255)" json:"counterparty_ref"` // client for quotes/invoices, supplier for POs
	Currency        string     `gorm:"type:varchar(3)" json:"currency"`
	IssueDate       *time.Time `gorm:"index" json:"issue_date"`
	DueDate         *time.Time `json:"due_date"`
	PaymentTerms    string     `gorm:"type:varchar(255)" json:"payment_terms"`
	Notes           string     `gorm:"type:text" json:"notes"`

	HeaderDiscount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"header_discount"`
	Shipping       decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"shipping"`

	// Derived by the pricing package, never accepted from callers
	Subtotal      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"subtotal"`
	TotalTax      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_tax"`
	TotalDiscount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"total_discount"`
	GrandTotal    decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"grand_total"`

	Status Status `gorm:"type:varchar(20);not null;index" json:"status"`

	// Set on invoices produced by conversion
	SourceKind Kind  `gorm:"type:varchar(20)" json:"source_kind,omitempty"`
	SourceID   *uint `json:"source_id,omitempty"`

	Version   uint      `gorm:"not null" json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	LineItems []LineItem `gorm:"foreignKey:DocumentID" json:"line_items"`
}

// LineItem - One priced row, owned by exactly one document
type LineItem struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	DocumentID    uint            `gorm:"not null;index" json:"document_id"`
	Position      int             `gorm:"not null" json:"position"`
	Description   string          `gorm:"type:varchar(1000);not null" json:"description"`
	SKU           string          `gorm:"column:sku;type:varchar(100)" json:"sku"`
	Quantity      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UnitOfMeasure string          `gorm:"type:varchar(50)" json:"unit_of_measure"`
	UnitPrice     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"unit_price"`
	Discount      decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"discount"`
	DiscountType  DiscountType    `gorm:"type:varchar(10);not null" json:"discount_type"`
	TaxCode       string          `gorm:"type:varchar(20)" json:"tax_code"`
	TaxRate       decimal.Decimal `gorm:"type:decimal(9,4);not null" json:"tax_rate"` // fraction, 0.09 = 9%
	TaxExempt     bool            `json:"tax_exempt"`
	Notes         string          `gorm:"type:text" json:"notes"`

	LineSubtotal  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"line_subtotal"`
	LineDiscount  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"line_discount"`
	LineTaxAmount decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"line_tax_amount"`
	LineTotal     decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"line_total"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusHistoryLog - One row per status transition, including creation
type StatusHistoryLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     uint      `gorm:"not null;index" json:"tenant_id"`
	DocumentID   uint      `gorm:"not null;index" json:"document_id"`
	DocumentKind Kind      `gorm:"type:varchar(20);not null" json:"document_kind"`
	OldStatus    *Status   `gorm:"type:varchar(20)" json:"old_status"`
	NewStatus    Status    `gorm:"type:varchar(20);not null" json:"new_status"`
	ChangedBy    uint      `json:"changed_by"`
	Remarks      string    `gorm:"type:text" json:"remarks"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// ApprovalLog - Submit / approve / reject decisions
type ApprovalLog struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	TenantID     uint           `gorm:"not null;index" json:"tenant_id"`
	DocumentID   uint           `gorm:"not null;index" json:"document_id"`
	DocumentKind Kind           `gorm:"type:varchar(20);not null" json:"document_kind"`
	ApproverID   uint           `json:"approver_id"`
	Action       ApprovalAction `gorm:"type:varchar(20);not null" json:"action"`
	Remarks      string         `gorm:"type:text" json:"remarks"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
}

// AuditTrailLog - One changed field of one mutation
type AuditTrailLog struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	TenantID     uint        `gorm:"not null;index" json:"tenant_id"`
	DocumentID   uint        `gorm:"not null;index" json:"document_id"`
	DocumentKind Kind        `gorm:"type:varchar(20);not null" json:"document_kind"`
	Action       AuditAction `gorm:"type:varchar(30);not null" json:"action"`
	FieldName    string      `gorm:"type:varchar(50);not null" json:"field_name"`
	OldValue     *string     `gorm:"type:text" json:"old_value"`
	NewValue     *string     `gorm:"type:text" json:"new_value"`
	ChangedBy    uint        `json:"changed_by"`
	Remarks      string      `gorm:"type:text" json:"remarks"`
	CreatedAt    time.Time   `gorm:"index" json:"created_at"`
}

// Valid reports whether k is one of the three document kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindQuote, KindPurchaseOrder, KindInvoice:
		return true
	}
	return false
}

// User - Someone who creates or approves documents for one tenant
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TenantID     uint      `gorm:"not null;uniqueIndex:idx_users_tenant_username,priority:1" json:"tenant_id"`
	Username     string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_users_tenant_username,priority:2" json:"username"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Role         string    `gorm:"type:varchar(20);not null" json:"role"` // admin, manager, staff
	CreatedAt    time.Time `json:"created_at"`
}
