package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"sme-docengine/internal/audit"
	"sme-docengine/internal/docerr"
	"sme-docengine/internal/models"
	"sme-docengine/internal/numbering"
	"sme-docengine/internal/pricing"
	"sme-docengine/internal/workflow"
)

// LineInput is a caller-supplied line. Computed amounts are never accepted.
type LineInput struct {
	Description   string              `json:"description"`
	SKU           string              `json:"sku"`
	Quantity      decimal.Decimal     `json:"quantity"`
	UnitOfMeasure string              `json:"unit_of_measure"`
	UnitPrice     decimal.Decimal     `json:"unit_price"`
	Discount      decimal.Decimal     `json:"discount"`
	DiscountType  models.DiscountType `json:"discount_type"`
	TaxCode       string              `json:"tax_code"`
	TaxRate       decimal.Decimal     `json:"tax_rate"`
	TaxExempt     bool                `json:"tax_exempt"`
	Notes         string              `json:"notes"`
}

func (in LineInput) item() models.LineItem {
	return models.LineItem{
		Description:   in.Description,
		SKU:           in.SKU,
		Quantity:      in.Quantity,
		UnitOfMeasure: in.UnitOfMeasure,
		UnitPrice:     in.UnitPrice,
		Discount:      in.Discount,
		DiscountType:  in.DiscountType,
		TaxCode:       in.TaxCode,
		TaxRate:       in.TaxRate,
		TaxExempt:     in.TaxExempt,
		Notes:         in.Notes,
	}
}

func items(in []LineInput) []models.LineItem {
	out := make([]models.LineItem, len(in))
	for i := range in {
		out[i] = in[i].item()
	}
	return out
}

// Draft is the content of a new document.
type Draft struct {
	CounterpartyRef string
	Currency        string
	IssueDate       *time.Time
	DueDate         *time.Time
	PaymentTerms    string
	Notes           string
	HeaderDiscount  decimal.Decimal
	Shipping        decimal.Decimal
	LineItems       []LineInput
}

// Patch changes a draft document. Nil fields are left alone; a non-nil
// LineItems replaces every line. ClearIssueDate and ClearDueDate unset a date
// and win over a value given in the same patch.
type Patch struct {
	CounterpartyRef *string
	Currency        *string
	IssueDate       *time.Time
	DueDate         *time.Time
	ClearIssueDate  bool
	ClearDueDate    bool
	PaymentTerms    *string
	Notes           *string
	HeaderDiscount  *decimal.Decimal
	Shipping        *decimal.Decimal
	LineItems       *[]LineInput

	// ExpectedVersion rejects the update when the stored version differs.
	ExpectedVersion *uint
}

func (p Patch) apply(doc *models.Document) {
	if p.CounterpartyRef != nil {
		doc.CounterpartyRef = *p.CounterpartyRef
	}
	if p.Currency != nil {
		doc.Currency = *p.Currency
	}
	if p.IssueDate != nil {
		doc.IssueDate = datePtr(p.IssueDate)
	}
	if p.DueDate != nil {
		doc.DueDate = datePtr(p.DueDate)
	}
	if p.ClearIssueDate {
		doc.IssueDate = nil
	}
	if p.ClearDueDate {
		doc.DueDate = nil
	}
	if p.PaymentTerms != nil {
		doc.PaymentTerms = *p.PaymentTerms
	}
	if p.Notes != nil {
		doc.Notes = *p.Notes
	}
	if p.HeaderDiscount != nil {
		doc.HeaderDiscount = *p.HeaderDiscount
	}
	if p.Shipping != nil {
		doc.Shipping = *p.Shipping
	}
	if p.LineItems != nil {
		doc.LineItems = items(*p.LineItems)
	}
}

// Create numbers, prices and stores a new DRAFT document.
func (e *Engine) Create(ctx context.Context, tenantID uint, kind models.Kind, d Draft, actor uint) (*models.Document, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("engine: create: unknown document kind %q", kind)
	}

	doc := &models.Document{
		TenantID:        tenantID,
		Kind:            kind,
		CounterpartyRef: d.CounterpartyRef,
		Currency:        d.Currency,
		IssueDate:       datePtr(d.IssueDate),
		DueDate:         datePtr(d.DueDate),
		PaymentTerms:    d.PaymentTerms,
		Notes:           d.Notes,
		HeaderDiscount:  d.HeaderDiscount,
		Shipping:        d.Shipping,
		LineItems:       items(d.LineItems),
	}
	if err := pricing.ApplyDocument(doc); err != nil {
		return nil, err
	}

	err := e.numbers.Serialize(tenantID, kind, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return e.insert(ctx, tx, doc, actor, "Created", e.clock())
		})
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("tenant_id", tenantID).
		Str("kind", string(kind)).
		Uint("document_id", doc.ID).
		Str("number", doc.Number).
		Msg("document created")
	return doc, nil
}

// insert assigns the next number and stores a priced document with its
// creation history and audit rows. Callers hold the numbering lock for the
// document's tenant and kind.
func (e *Engine) insert(ctx context.Context, tx *gorm.DB, doc *models.Document, actor uint, remarks string, at time.Time) error {
	number, err := e.numbers.Next(ctx, numbering.GormStore{DB: tx}, doc.TenantID, doc.Kind, at)
	if err != nil {
		return err
	}
	doc.Number = number
	doc.Version = 1
	doc.CreatedAt = at
	doc.UpdatedAt = at
	history := workflow.Initial(doc, actor, remarks, at)

	if err := tx.Create(doc).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return &docerr.NumberingConflictError{TenantID: doc.TenantID, Kind: doc.Kind, Number: number, Err: err}
		}
		return err
	}
	history.DocumentID = doc.ID

	return logs{
		history: []models.StatusHistoryLog{history},
		audit:   audit.Diff(nil, doc, auditEntry(models.AuditCreate, actor, remarks, at)),
	}.write(tx)
}

// Update edits a DRAFT document. Totals are recomputed and every changed
// header field is audited. Status never changes here.
func (e *Engine) Update(ctx context.Context, tenantID uint, kind models.Kind, id uint, p Patch, actor uint) (*models.Document, error) {
	var doc *models.Document
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := load(tx, tenantID, kind, id, true)
		if err != nil {
			return err
		}
		if p.ExpectedVersion != nil && *p.ExpectedVersion != cur.Version {
			return &docerr.StaleVersionError{ID: id, Expected: *p.ExpectedVersion, Actual: cur.Version}
		}
		if cur.Status != models.StatusDraft {
			return &docerr.DocumentLockedError{ID: id, Status: cur.Status}
		}

		before := audit.Snapshot(cur)
		p.apply(cur)
		if err := pricing.ApplyDocument(cur); err != nil {
			return err
		}

		at := e.clock()
		if err := saveHeader(tx, cur, at); err != nil {
			return err
		}
		if p.LineItems != nil {
			if err := replaceLines(tx, cur); err != nil {
				return err
			}
		}

		doc = cur
		return logs{
			audit: audit.Diff(before, cur, auditEntry(models.AuditUpdate, actor, "Updated", at)),
		}.write(tx)
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("tenant_id", tenantID).
		Str("kind", string(kind)).
		Uint("document_id", id).
		Uint("version", doc.Version).
		Msg("document updated")
	return doc, nil
}

func replaceLines(tx *gorm.DB, doc *models.Document) error {
	if err := tx.Where("document_id = ?", doc.ID).Delete(&models.LineItem{}).Error; err != nil {
		return err
	}
	if len(doc.LineItems) == 0 {
		return nil
	}
	for i := range doc.LineItems {
		doc.LineItems[i].ID = 0
		doc.LineItems[i].DocumentID = doc.ID
	}
	return tx.Create(&doc.LineItems).Error
}

// Delete removes a document and its line items after recording a DELETE
// audit row. Status history, approval and audit rows are kept.
func (e *Engine) Delete(ctx context.Context, tenantID uint, kind models.Kind, id uint, actor uint) error {
	var number string
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := load(tx, tenantID, kind, id, true)
		if err != nil {
			return err
		}
		if !e.policy.AllowDeleteApproved &&
			(cur.Status == models.StatusApproved || cur.Status == models.StatusConverted) {
			return &docerr.DeletionForbiddenError{ID: id, Status: cur.Status}
		}

		row := audit.Deletion(cur, auditEntry(models.AuditDelete, actor, "Deleted", e.clock()))
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&models.LineItem{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ? AND version = ?", id, cur.Version).Delete(&models.Document{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return &docerr.StaleVersionError{ID: id, Expected: cur.Version}
		}
		number = cur.Number
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info().
		Uint("tenant_id", tenantID).
		Str("kind", string(kind)).
		Uint("document_id", id).
		Str("number", number).
		Msg("document deleted")
	return nil
}

// LogExportAction records that the document was rendered as a PDF or a
// spreadsheet. The document itself is not modified.
func (e *Engine) LogExportAction(ctx context.Context, tenantID uint, kind models.Kind, id uint, actor uint, action models.AuditAction) (*models.Document, error) {
	if action != models.AuditExportPDF && action != models.AuditExportExcel {
		return nil, fmt.Errorf("engine: log export: %q is not an export action", action)
	}

	var doc *models.Document
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := load(tx, tenantID, kind, id, false)
		if err != nil {
			return err
		}
		row := audit.Export(cur, auditEntry(action, actor, "", e.clock()))
		if err := tx.Create(&row).Error; err != nil {
			return err
		}
		doc = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Uint("tenant_id", tenantID).
		Str("kind", string(kind)).
		Uint("document_id", id).
		Str("action", string(action)).
		Msg("document exported")
	return doc, nil
}
