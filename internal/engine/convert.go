package engine

import (
	"context"
	"time"

	"gorm.io/gorm"

	"sme-docengine/internal/docerr"
	"sme-docengine/internal/models"
	"sme-docengine/internal/pricing"
	"sme-docengine/internal/workflow"
)

// ConvertToInvoice creates a DRAFT invoice from an APPROVED quote or purchase
// order and marks the source CONVERTED, all in one transaction. The invoice
// gets fresh line items and totals and starts its own history.
func (e *Engine) ConvertToInvoice(ctx context.Context, tenantID uint, kind models.Kind, id, actor uint) (source, invoice *models.Document, err error) {
	if kind != models.KindQuote && kind != models.KindPurchaseOrder {
		return nil, nil, &docerr.UnsupportedConversionError{Kind: kind}
	}

	err = e.numbers.Serialize(tenantID, models.KindInvoice, func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			src, err := load(tx, tenantID, kind, id, true)
			if err != nil {
				return err
			}
			if _, err := workflow.Target(src.Status, workflow.ActionConvert); err != nil {
				return err
			}

			at := e.clock()
			inv := invoiceFrom(src, at)
			if err := pricing.ApplyDocument(inv); err != nil {
				return err
			}
			if err := e.insert(ctx, tx, inv, actor, "Converted from "+src.Number, at); err != nil {
				return err
			}
			if err := transition(tx, src, workflow.ActionConvert, actor, "Converted to "+inv.Number, at); err != nil {
				return err
			}

			source, invoice = src, inv
			return nil
		})
	})
	if err != nil {
		return nil, nil, err
	}

	e.log.Info().
		Uint("tenant_id", tenantID).
		Str("kind", string(kind)).
		Uint("document_id", source.ID).
		Str("number", source.Number).
		Str("invoice", invoice.Number).
		Msg("document converted")
	return source, invoice, nil
}

// invoiceFrom copies the commercial content of src. Line items are copied by
// value with their computed amounts cleared; the issue date is the conversion
// date.
func invoiceFrom(src *models.Document, at time.Time) *models.Document {
	issued := dateOnly(at)
	sourceID := src.ID
	inv := &models.Document{
		TenantID:        src.TenantID,
		Kind:            models.KindInvoice,
		CounterpartyRef: src.CounterpartyRef,
		Currency:        src.Currency,
		IssueDate:       &issued,
		DueDate:         datePtr(src.DueDate),
		PaymentTerms:    src.PaymentTerms,
		Notes:           src.Notes,
		HeaderDiscount:  src.HeaderDiscount,
		Shipping:        src.Shipping,
		SourceKind:      src.Kind,
		SourceID:        &sourceID,
		LineItems:       make([]models.LineItem, len(src.LineItems)),
	}
	for i, li := range src.LineItems {
		inv.LineItems[i] = models.LineItem{
			Description:   li.Description,
			SKU:           li.SKU,
			Quantity:      li.Quantity,
			UnitOfMeasure: li.UnitOfMeasure,
			UnitPrice:     li.UnitPrice,
			Discount:      li.Discount,
			DiscountType:  li.DiscountType,
			TaxCode:       li.TaxCode,
			TaxRate:       li.TaxRate,
			TaxExempt:     li.TaxExempt,
			Notes:         li.Notes,
		}
	}
	return inv
}
