// Package audit turns two versions of a document into field-level audit rows.
//
// The compared fields are a fixed table rather than whatever the struct
// happens to contain, so adding a column to Document never changes what gets
// audited until it is listed here.
package audit

import (
	"time"

	"github.com/shockerli/cvt"
	"github.com/shopspring/decimal"

	"sme-docengine/internal/models"
)

const dateLayout = "2006-01-02"

// Field is one audited column. Value returns nil when the field is unset.
type Field struct {
	Name  string
	Value func(d *models.Document) any
}

func str(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func date(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// Fields is the audited field set: header, status and totals.
var Fields = []Field{
	{"documentNumber", func(d *models.Document) any { return str(d.Number) }},
	{"counterpartyRef", func(d *models.Document) any { return str(d.CounterpartyRef) }},
	{"currency", func(d *models.Document) any { return str(d.Currency) }},
	{"issueDate", func(d *models.Document) any { return date(d.IssueDate) }},
	{"dueDate", func(d *models.Document) any { return date(d.DueDate) }},
	{"paymentTerms", func(d *models.Document) any { return str(d.PaymentTerms) }},
	{"notes", func(d *models.Document) any { return str(d.Notes) }},
	{"headerDiscount", func(d *models.Document) any { return d.HeaderDiscount }},
	{"shipping", func(d *models.Document) any { return d.Shipping }},
	{"status", func(d *models.Document) any { return str(string(d.Status)) }},
	{"subtotal", func(d *models.Document) any { return d.Subtotal }},
	{"totalTax", func(d *models.Document) any { return d.TotalTax }},
	{"totalDiscount", func(d *models.Document) any { return d.TotalDiscount }},
	{"grandTotal", func(d *models.Document) any { return d.GrandTotal }},
	{"sourceKind", func(d *models.Document) any { return str(string(d.SourceKind)) }},
	{"sourceId", func(d *models.Document) any {
		if d.SourceID == nil {
			return nil
		}
		return *d.SourceID
	}},
}

// Entry carries what every row of one mutation shares.
type Entry struct {
	Action  models.AuditAction
	Actor   uint
	Remarks string
	At      time.Time
}

// Diff compares before and after field by field. With before == nil every set
// field of after is reported with a nil old value.
func Diff(before, after *models.Document, e Entry) []models.AuditTrailLog {
	var logs []models.AuditTrailLog
	for _, f := range Fields {
		newValue := f.Value(after)
		var oldValue any
		if before != nil {
			oldValue = f.Value(before)
			if equal(oldValue, newValue) {
				continue
			}
		} else if newValue == nil {
			continue
		}
		logs = append(logs, row(after, f.Name, stringify(oldValue), stringify(newValue), e))
	}
	return logs
}

// Deletion is the single row recorded before a document is removed.
func Deletion(doc *models.Document, e Entry) models.AuditTrailLog {
	return row(doc, "document", stringify(doc.Number), nil, e)
}

// Export records that a renderer produced a PDF or spreadsheet of doc.
func Export(doc *models.Document, e Entry) models.AuditTrailLog {
	return row(doc, "export", nil, stringify(doc.Number), e)
}

// Snapshot copies the audited header of doc, without line items, so later
// edits to doc do not leak into the copy.
func Snapshot(doc *models.Document) *models.Document {
	c := *doc
	c.LineItems = nil
	if doc.IssueDate != nil {
		t := *doc.IssueDate
		c.IssueDate = &t
	}
	if doc.DueDate != nil {
		t := *doc.DueDate
		c.DueDate = &t
	}
	if doc.SourceID != nil {
		id := *doc.SourceID
		c.SourceID = &id
	}
	return &c
}

func row(doc *models.Document, field string, oldValue, newValue *string, e Entry) models.AuditTrailLog {
	return models.AuditTrailLog{
		TenantID:     doc.TenantID,
		DocumentID:   doc.ID,
		DocumentKind: doc.Kind,
		Action:       e.Action,
		FieldName:    field,
		OldValue:     oldValue,
		NewValue:     newValue,
		ChangedBy:    e.Actor,
		Remarks:      e.Remarks,
		CreatedAt:    e.At,
	}
}

func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case decimal.Decimal:
		bv, ok := b.(decimal.Decimal)
		return ok && av.Equal(bv)
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Format(dateLayout) == bv.Format(dateLayout)
	}
	return a == b
}

func stringify(v any) *string {
	if v == nil {
		return nil
	}

	var s string
	switch tv := v.(type) {
	case decimal.Decimal:
		s = tv.StringFixed(4)
	case time.Time:
		s = tv.Format(dateLayout)
	default:
		out, err := cvt.StringE(v)
		if err != nil {
			return nil
		}
		s = out
	}
	return &s
}
