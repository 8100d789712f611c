// Package engine creates, edits, approves, audits and converts commercial
// documents. Every mutation runs in one database transaction together with
// the status history, approval and audit rows it produces.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sme-docengine/internal/audit"
	"sme-docengine/internal/database"
	"sme-docengine/internal/docerr"
	"sme-docengine/internal/logger"
	"sme-docengine/internal/models"
	"sme-docengine/internal/numbering"
)

// Policy holds the configurable domain decisions.
type Policy struct {
	// AllowDeleteApproved permits deleting APPROVED and CONVERTED documents.
	AllowDeleteApproved bool
}

type Engine struct {
	db      *gorm.DB
	numbers *numbering.Authority
	policy  Policy
	now     func() time.Time
	log     zerolog.Logger
}

type Option func(*Engine)

// WithPolicy overrides the default policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithClock replaces time.Now, mostly for tests that cross month boundaries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithAuthority shares a numbering authority between engines on the same database.
func WithAuthority(a *numbering.Authority) Option {
	return func(e *Engine) { e.numbers = a }
}

func New(db *gorm.DB, opts ...Option) *Engine {
	e := &Engine{
		db:      db,
		numbers: numbering.NewAuthority(),
		now:     time.Now,
		log:     logger.WithComponent("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// load reads a tenant's document with its line items. With lock set the
// header row is read FOR UPDATE.
func load(tx *gorm.DB, tenantID uint, kind models.Kind, id uint, lock bool) (*models.Document, error) {
	q := tx.Preload("LineItems", func(db *gorm.DB) *gorm.DB {
		return db.Order("position, id")
	})
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var doc models.Document
	err := q.Where("tenant_id = ? AND kind = ?", tenantID, kind).First(&doc, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &docerr.NotFoundError{TenantID: tenantID, Kind: kind, ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// saveHeader writes the mutable header columns, guarded by the version the
// document was loaded with, and bumps the version.
func saveHeader(tx *gorm.DB, doc *models.Document, at time.Time) error {
	res := tx.Model(&models.Document{}).
		Where("id = ? AND tenant_id = ? AND version = ?", doc.ID, doc.TenantID, doc.Version).
		Updates(map[string]interface{}{
			"counterparty_ref": doc.CounterpartyRef,
			"currency":         doc.Currency,
			"issue_date":       doc.IssueDate,
			"due_date":         doc.DueDate,
			"payment_terms":    doc.PaymentTerms,
			"notes":            doc.Notes,
			"header_discount":  doc.HeaderDiscount,
			"shipping":         doc.Shipping,
			"subtotal":         doc.Subtotal,
			"total_tax":        doc.TotalTax,
			"total_discount":   doc.TotalDiscount,
			"grand_total":      doc.GrandTotal,
			"status":           doc.Status,
			"version":          doc.Version + 1,
			"updated_at":       at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return &docerr.StaleVersionError{ID: doc.ID, Expected: doc.Version}
	}
	doc.Version++
	doc.UpdatedAt = at
	return nil
}

// logs is everything a mutation appends besides the document itself.
type logs struct {
	history  []models.StatusHistoryLog
	approval []models.ApprovalLog
	audit    []models.AuditTrailLog
}

func (l logs) write(tx *gorm.DB) error {
	if len(l.history) > 0 {
		if err := tx.Create(&l.history).Error; err != nil {
			return err
		}
	}
	if len(l.approval) > 0 {
		if err := tx.Create(&l.approval).Error; err != nil {
			return err
		}
	}
	if len(l.audit) > 0 {
		if err := tx.Create(&l.audit).Error; err != nil {
			return err
		}
	}
	return nil
}

// Get returns one document with its line items.
func (e *Engine) Get(ctx context.Context, tenantID uint, kind models.Kind, id uint) (*models.Document, error) {
	return load(e.db.WithContext(ctx), tenantID, kind, id, false)
}

// List returns a tenant's documents of one kind, newest first.
func (e *Engine) List(ctx context.Context, tenantID uint, kind models.Kind) ([]models.Document, error) {
	var docs []models.Document
	err := e.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("position, id") }).
		Where("tenant_id = ? AND kind = ?", tenantID, kind).
		Order("id DESC").
		Find(&docs).Error
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// StatusHistory returns the status transitions of a document in order.
func (e *Engine) StatusHistory(ctx context.Context, tenantID uint, kind models.Kind, id uint) ([]models.StatusHistoryLog, error) {
	var out []models.StatusHistoryLog
	if err := e.logQuery(ctx, tenantID, kind, id).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, e.mustExist(ctx, tenantID, kind, id)
	}
	return out, nil
}

// ApprovalLogs returns the submit/approve/reject decisions of a document in order.
func (e *Engine) ApprovalLogs(ctx context.Context, tenantID uint, kind models.Kind, id uint) ([]models.ApprovalLog, error) {
	var out []models.ApprovalLog
	if err := e.logQuery(ctx, tenantID, kind, id).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, e.mustExist(ctx, tenantID, kind, id)
	}
	return out, nil
}

// AuditTrail returns the field-level audit rows of a document in order. Rows
// outlive the document, so this works after deletion too.
func (e *Engine) AuditTrail(ctx context.Context, tenantID uint, kind models.Kind, id uint) ([]models.AuditTrailLog, error) {
	var out []models.AuditTrailLog
	if err := e.logQuery(ctx, tenantID, kind, id).Find(&out).Error; err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, e.mustExist(ctx, tenantID, kind, id)
	}
	return out, nil
}

// mustExist reports NotFoundError for ids the tenant never had, so an empty
// log list is only returned for a live document.
func (e *Engine) mustExist(ctx context.Context, tenantID uint, kind models.Kind, id uint) error {
	var n int64
	err := e.db.WithContext(ctx).Model(&models.Document{}).
		Where("id = ? AND tenant_id = ? AND kind = ?", id, tenantID, kind).
		Count(&n).Error
	if err != nil {
		return err
	}
	if n == 0 {
		return &docerr.NotFoundError{TenantID: tenantID, Kind: kind, ID: id}
	}
	return nil
}

func (e *Engine) logQuery(ctx context.Context, tenantID uint, kind models.Kind, id uint) *gorm.DB {
	return e.db.WithContext(ctx).
		Where("tenant_id = ? AND document_kind = ? AND document_id = ?", tenantID, kind, id).
		Order("created_at, id")
}

// Summary aggregates a tenant's documents issued between from and to.
func (e *Engine) Summary(ctx context.Context, tenantID uint, from, to time.Time) ([]database.SummaryRow, error) {
	return database.Summarize(ctx, e.db, tenantID, dateOnly(from), dateOnly(to))
}

// NextNumber previews the number the next created document would receive.
func (e *Engine) NextNumber(ctx context.Context, tenantID uint, kind models.Kind) (string, error) {
	return e.numbers.Next(ctx, numbering.GormStore{DB: e.db}, tenantID, kind, e.clock())
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dateOnly(*t)
	return &d
}

func auditEntry(action models.AuditAction, actor uint, remarks string, at time.Time) audit.Entry {
	return audit.Entry{Action: action, Actor: actor, Remarks: remarks, At: at}
}
