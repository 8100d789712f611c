// Package pricing computes line item and document totals.
//
// All amounts are rounded half-up to four decimal places at every intermediate
// step, so a total computed here always matches the persisted columns.
package pricing

import (
	"github.com/shopspring/decimal"

	"sme-docengine/internal/docerr"
	"sme-docengine/internal/models"
)

// Scale is the number of decimal places every computed amount is rounded to.
const Scale = 4

// DefaultTaxCode is assigned to lines that do not name one.
const DefaultTaxCode = "GST"

var hundred = decimal.NewFromInt(100)

// LineAmounts holds the computed figures of one line.
type LineAmounts struct {
	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Taxable  decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// Totals holds the document-level aggregation.
type Totals struct {
	Subtotal      decimal.Decimal
	TotalTax      decimal.Decimal
	TotalDiscount decimal.Decimal
	GrandTotal    decimal.Decimal
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// CalculateLine validates one line and returns its amounts. line is the 1-based
// position used in error messages.
func CalculateLine(line int, item *models.LineItem) (LineAmounts, error) {
	if err := validateLine(line, item); err != nil {
		return LineAmounts{}, err
	}

	var out LineAmounts
	out.Subtotal = round(item.Quantity.Mul(item.UnitPrice))

	if discountType(item) == models.DiscountPercent {
		out.Discount = round(out.Subtotal.Mul(item.Discount).Div(hundred))
	} else {
		out.Discount = item.Discount
	}
	if out.Discount.GreaterThan(out.Subtotal) {
		return LineAmounts{}, &docerr.InvalidLineItemError{
			Line:   line,
			Field:  "discount",
			Value:  item.Discount.String(),
			Reason: "discount exceeds line subtotal",
		}
	}

	out.Taxable = out.Subtotal.Sub(out.Discount)
	if item.TaxExempt {
		out.Tax = decimal.Zero
	} else {
		out.Tax = round(out.Taxable.Mul(item.TaxRate))
	}
	out.Total = out.Taxable.Add(out.Tax)

	return out, nil
}

// ApplyLine computes the line and stores the results on it.
func ApplyLine(line int, item *models.LineItem) error {
	amounts, err := CalculateLine(line, item)
	if err != nil {
		return err
	}
	item.DiscountType = discountType(item)
	if item.TaxCode == "" {
		item.TaxCode = DefaultTaxCode
	}
	item.LineSubtotal = amounts.Subtotal
	item.LineDiscount = amounts.Discount
	item.LineTaxAmount = amounts.Tax
	item.LineTotal = amounts.Total
	return nil
}

// ApplyDocument recomputes every line and the document totals in place. It
// must run before each persistence of a document.
func ApplyDocument(doc *models.Document) error {
	if doc.HeaderDiscount.IsNegative() {
		return &docerr.InvalidLineItemError{Field: "headerDiscount", Value: doc.HeaderDiscount.String(), Reason: "must not be negative"}
	}
	if doc.Shipping.IsNegative() {
		return &docerr.InvalidLineItemError{Field: "shipping", Value: doc.Shipping.String(), Reason: "must not be negative"}
	}

	lines := make([]LineAmounts, len(doc.LineItems))
	for i := range doc.LineItems {
		if err := ApplyLine(i+1, &doc.LineItems[i]); err != nil {
			return err
		}
		doc.LineItems[i].Position = i + 1
		lines[i] = LineAmounts{
			Subtotal: doc.LineItems[i].LineSubtotal,
			Discount: doc.LineItems[i].LineDiscount,
			Tax:      doc.LineItems[i].LineTaxAmount,
		}
	}

	totals := Aggregate(lines, doc.HeaderDiscount, doc.Shipping)
	doc.Subtotal = totals.Subtotal
	doc.TotalTax = totals.TotalTax
	doc.TotalDiscount = totals.TotalDiscount
	doc.GrandTotal = totals.GrandTotal
	return nil
}

// Aggregate sums line amounts and applies the header discount and shipping:
// grandTotal = subtotal - totalDiscount + totalTax + shipping.
func Aggregate(lines []LineAmounts, headerDiscount, shipping decimal.Decimal) Totals {
	t := Totals{
		Subtotal:      decimal.Zero,
		TotalTax:      decimal.Zero,
		TotalDiscount: decimal.Zero,
	}
	for _, l := range lines {
		t.Subtotal = t.Subtotal.Add(l.Subtotal)
		t.TotalTax = t.TotalTax.Add(l.Tax)
		t.TotalDiscount = t.TotalDiscount.Add(l.Discount)
	}
	t.TotalDiscount = t.TotalDiscount.Add(headerDiscount)
	t.GrandTotal = t.Subtotal.Sub(t.TotalDiscount).Add(t.TotalTax).Add(shipping)
	return t
}

func discountType(item *models.LineItem) models.DiscountType {
	if item.DiscountType == "" {
		return models.DiscountPercent
	}
	return item.DiscountType
}

func validateLine(line int, item *models.LineItem) error {
	invalid := func(field string, value interface{}, reason string) error {
		return &docerr.InvalidLineItemError{Line: line, Field: field, Value: value, Reason: reason}
	}

	if item.Quantity.IsNegative() {
		return invalid("quantity", item.Quantity.String(), "must not be negative")
	}
	if item.UnitPrice.IsNegative() {
		return invalid("unitPrice", item.UnitPrice.String(), "must not be negative")
	}
	if item.TaxRate.IsNegative() {
		return invalid("taxRate", item.TaxRate.String(), "must not be negative")
	}

	switch discountType(item) {
	case models.DiscountPercent:
		if item.Discount.IsNegative() || item.Discount.GreaterThan(hundred) {
			return invalid("discount", item.Discount.String(), "percent discount must be within [0, 100]")
		}
	case models.DiscountAmount:
		if item.Discount.IsNegative() {
			return invalid("discount", item.Discount.String(), "must not be negative")
		}
	default:
		return invalid("discountType", item.DiscountType, "must be PERCENT or AMOUNT")
	}
	return nil
}
