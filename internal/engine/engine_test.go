package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"sme-docengine/internal/database"
	"sme-docengine/internal/docerr"
	"sme-docengine/internal/models"
	"sme-docengine/internal/numbering"
)

const (
	tenant  = uint(1)
	creator = uint(10)
	manager = uint(20)
)

var testNow = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *gorm.DB) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := database.Open(database.Options{
		Driver:   "sqlite",
		DSN:      fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		LogLevel: "silent",
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(db, opts...), db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleDraft() Draft {
	issued := time.Date(2026, 10, 15, 0, 0, 0, 0, time.UTC)
	due := time.Date(2026, 11, 14, 0, 0, 0, 0, time.UTC)
	return Draft{
		CounterpartyRef: "ACME Pte Ltd",
		Currency:        "SGD",
		IssueDate:       &issued,
		DueDate:         &due,
		PaymentTerms:    "Net 30",
		LineItems: []LineInput{{
			Description:   "Consulting",
			SKU:           "SRV-001",
			Quantity:      dec("2"),
			UnitOfMeasure: "hour",
			UnitPrice:     dec("100"),
			Discount:      dec("10"),
			DiscountType:  models.DiscountPercent,
			TaxRate:       dec("0.09"),
		}},
	}
}

func assertDecimal(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Errorf("%s = %s, want %s", name, got, want)
	}
}

func TestQuoteToInvoiceScenario(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	quote, err := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if quote.Number != "QTN-202610-001" || quote.Status != models.StatusDraft || quote.Version != 1 {
		t.Errorf("created quote = %s %s v%d", quote.Number, quote.Status, quote.Version)
	}
	line := quote.LineItems[0]
	assertDecimal(t, "lineSubtotal", line.LineSubtotal, "200.0000")
	assertDecimal(t, "lineDiscount", line.LineDiscount, "20.0000")
	assertDecimal(t, "lineTaxAmount", line.LineTaxAmount, "16.2000")
	assertDecimal(t, "lineTotal", line.LineTotal, "196.2000")
	assertDecimal(t, "grandTotal", quote.GrandTotal, "196.2000")
	if line.TaxCode != "GST" {
		t.Errorf("tax code = %q, want GST", line.TaxCode)
	}

	if _, err := e.Submit(ctx, tenant, models.KindQuote, quote.ID, creator, "ready"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if _, err := e.Approve(ctx, tenant, models.KindQuote, quote.ID, manager, "ok"); err != nil {
		t.Fatalf("Approve() error = %v", err)
	}

	source, invoice, err := e.ConvertToInvoice(ctx, tenant, models.KindQuote, quote.ID, manager)
	if err != nil {
		t.Fatalf("ConvertToInvoice() error = %v", err)
	}
	if source.Status != models.StatusConverted {
		t.Errorf("source status = %s", source.Status)
	}
	if invoice.Number != "INV-202610-001" || invoice.Status != models.StatusDraft {
		t.Errorf("invoice = %s %s", invoice.Number, invoice.Status)
	}
	if invoice.SourceKind != models.KindQuote || invoice.SourceID == nil || *invoice.SourceID != quote.ID {
		t.Errorf("invoice source = %s %v", invoice.SourceKind, invoice.SourceID)
	}

	stored, err := e.Get(ctx, tenant, models.KindInvoice, invoice.ID)
	if err != nil {
		t.Fatalf("Get(invoice) error = %v", err)
	}
	if len(stored.LineItems) != 1 || stored.LineItems[0].ID == line.ID {
		t.Fatalf("invoice lines = %+v", stored.LineItems)
	}
	assertDecimal(t, "invoice lineTotal", stored.LineItems[0].LineTotal, "196.2000")
	assertDecimal(t, "invoice grandTotal", stored.GrandTotal, "196.2000")
	if stored.LineItems[0].UnitOfMeasure != "hour" {
		t.Errorf("unit of measure = %q", stored.LineItems[0].UnitOfMeasure)
	}

	reloaded, _ := e.Get(ctx, tenant, models.KindQuote, quote.ID)
	if reloaded.Status != models.StatusConverted || len(reloaded.LineItems) != 1 {
		t.Errorf("quote after convert = %s with %d lines", reloaded.Status, len(reloaded.LineItems))
	}

	// the invoice starts its own history
	history, _ := e.StatusHistory(ctx, tenant, models.KindInvoice, invoice.ID)
	if len(history) != 1 || history[0].OldStatus != nil || history[0].NewStatus != models.StatusDraft {
		t.Errorf("invoice history = %+v", history)
	}
	approvals, _ := e.ApprovalLogs(ctx, tenant, models.KindInvoice, invoice.ID)
	if len(approvals) != 0 {
		t.Errorf("invoice inherited %d approval rows", len(approvals))
	}
}

func TestSubmitApproveLogs(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	doc, err := e.Create(ctx, tenant, models.KindPurchaseOrder, sampleDraft(), creator)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Approve(ctx, tenant, models.KindPurchaseOrder, doc.ID, manager, "")
	if !errors.Is(err, docerr.ErrInvalidTransition) {
		t.Fatalf("Approve(DRAFT) error = %v, want ErrInvalidTransition", err)
	}
	var te *docerr.InvalidTransitionError
	if !errors.As(err, &te) || te.Current != models.StatusDraft || te.Requested != models.StatusApproved {
		t.Errorf("transition error = %+v", te)
	}

	if _, err := e.Submit(ctx, tenant, models.KindPurchaseOrder, doc.ID, creator, ""); err != nil {
		t.Fatal(err)
	}
	approved, err := e.Approve(ctx, tenant, models.KindPurchaseOrder, doc.ID, manager, "")
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != models.StatusApproved || approved.Version != 3 {
		t.Errorf("approved = %s v%d", approved.Status, approved.Version)
	}

	history, err := e.StatusHistory(ctx, tenant, models.KindPurchaseOrder, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	var transitions int
	for _, h := range history {
		if h.OldStatus != nil {
			transitions++
		}
	}
	if len(history) != 3 || transitions != 2 {
		t.Errorf("history = %d rows, %d transitions; want creation + 2", len(history), transitions)
	}

	approvals, err := e.ApprovalLogs(ctx, tenant, models.KindPurchaseOrder, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(approvals) != 2 ||
		approvals[0].Action != models.ApprovalSubmitted ||
		approvals[1].Action != models.ApprovalApproved ||
		approvals[1].ApproverID != manager {
		t.Errorf("approvals = %+v", approvals)
	}
}

func TestRejectAndResubmit(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	doc, _ := e.Create(ctx, tenant, models.KindInvoice, sampleDraft(), creator)
	steps := []struct {
		run  func() (*models.Document, error)
		want models.Status
	}{
		{func() (*models.Document, error) { return e.Submit(ctx, tenant, models.KindInvoice, doc.ID, creator, "") }, models.StatusPendingApproval},
		{func() (*models.Document, error) { return e.Reject(ctx, tenant, models.KindInvoice, doc.ID, manager, "wrong price") }, models.StatusRejected},
		{func() (*models.Document, error) { return e.Submit(ctx, tenant, models.KindInvoice, doc.ID, creator, "fixed") }, models.StatusPendingApproval},
	}
	for i, s := range steps {
		got, err := s.run()
		if err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got.Status != s.want {
			t.Errorf("step %d: status = %s, want %s", i, got.Status, s.want)
		}
	}
}

func TestUpdateNotesOnly(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	before, _ := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)

	notes := "deliver before noon"
	updated, err := e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{Notes: &notes}, creator)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Notes != notes || updated.Version != 2 {
		t.Errorf("updated = %q v%d", updated.Notes, updated.Version)
	}

	after, _ := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)
	added := after[len(before):]
	if len(added) != 1 || added[0].FieldName != "notes" || added[0].Action != models.AuditUpdate {
		t.Fatalf("audit rows for notes update = %+v", added)
	}

	if _, err := e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{}, creator); err != nil {
		t.Fatalf("empty Update() error = %v", err)
	}
	final, _ := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)
	if len(final) != len(after) {
		t.Errorf("empty update added %d audit rows", len(final)-len(after))
	}
}

func TestUpdateRecomputesTotals(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	lines := []LineInput{
		{Description: "Widget", Quantity: dec("3"), UnitPrice: dec("19.99"), Discount: dec("5"), DiscountType: models.DiscountAmount, TaxRate: dec("0.07")},
		{Description: "Manual", Quantity: dec("1"), UnitPrice: dec("40"), TaxExempt: true, TaxRate: dec("0.07")},
	}
	shipping := dec("12.5")
	header := dec("2")

	updated, err := e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{LineItems: &lines, Shipping: &shipping, HeaderDiscount: &header}, creator)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	stored, _ := e.Get(ctx, tenant, models.KindQuote, doc.ID)
	if len(stored.LineItems) != 2 || stored.LineItems[0].Position != 1 || stored.LineItems[1].Position != 2 {
		t.Fatalf("stored lines = %+v", stored.LineItems)
	}
	// 59.97 - 5 = 54.97, tax 3.8479; 40 exempt
	assertDecimal(t, "subtotal", updated.Subtotal, "99.97")
	assertDecimal(t, "totalDiscount", updated.TotalDiscount, "7")
	assertDecimal(t, "totalTax", updated.TotalTax, "3.8479")
	assertDecimal(t, "grandTotal", updated.GrandTotal, "109.3179")
	want := updated.Subtotal.Sub(updated.TotalDiscount).Add(updated.TotalTax).Add(updated.Shipping)
	assertDecimal(t, "stored grandTotal", stored.GrandTotal, want.String())
}

func TestUpdateGuards(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	notes := "x"

	stale := uint(7)
	_, err := e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{Notes: &notes, ExpectedVersion: &stale}, creator)
	if !errors.Is(err, docerr.ErrStaleVersion) {
		t.Errorf("stale version error = %v", err)
	}

	bad := []LineInput{{Description: "x", Quantity: dec("-1"), UnitPrice: dec("1")}}
	_, err = e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{LineItems: &bad}, creator)
	var le *docerr.InvalidLineItemError
	if !errors.As(err, &le) || le.Line != 1 || le.Field != "quantity" {
		t.Errorf("invalid line error = %v", err)
	}

	_, err = e.Update(ctx, tenant, models.KindQuote, 9999, Patch{Notes: &notes}, creator)
	if !errors.Is(err, docerr.ErrNotFound) {
		t.Errorf("unknown id error = %v", err)
	}

	_, err = e.Update(ctx, tenant+1, models.KindQuote, doc.ID, Patch{Notes: &notes}, creator)
	if !errors.Is(err, docerr.ErrNotFound) {
		t.Errorf("other tenant error = %v", err)
	}

	if _, err := e.Submit(ctx, tenant, models.KindQuote, doc.ID, creator, ""); err != nil {
		t.Fatal(err)
	}
	_, err = e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{Notes: &notes}, creator)
	if !errors.Is(err, docerr.ErrDocumentLocked) {
		t.Errorf("pending update error = %v", err)
	}

	stored, _ := e.Get(ctx, tenant, models.KindQuote, doc.ID)
	if stored.Notes != "" || stored.Version != 2 {
		t.Errorf("failed updates changed the document: %q v%d", stored.Notes, stored.Version)
	}
}

func TestCreateRejectsInvalidLines(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)

	d := sampleDraft()
	d.LineItems[0].Discount = dec("150")
	_, err := e.Create(ctx, tenant, models.KindQuote, d, creator)
	if !errors.Is(err, docerr.ErrInvalidLineItem) {
		t.Fatalf("Create() error = %v", err)
	}

	var count int64
	db.Model(&models.Document{}).Count(&count)
	if count != 0 {
		t.Errorf("%d documents stored after a rejected create", count)
	}
}

func TestConcurrentCreatesGetDistinctNumbers(t *testing.T) {
	const n = 20
	ctx := context.Background()

	// two engines on one database, as with several handlers in one process
	shared := numbering.NewAuthority()
	first, db := newTestEngine(t, WithAuthority(shared))
	second := New(db, WithAuthority(shared), WithClock(func() time.Time { return testNow }))
	engines := []*Engine{first, second}

	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(e *Engine) {
			defer wg.Done()
			doc, err := e.Create(ctx, tenant, models.KindInvoice, sampleDraft(), creator)
			if err != nil {
				errs <- err
				return
			}
			numbers <- doc.Number
		}(engines[i%2])
	}
	wg.Wait()
	close(numbers)
	close(errs)

	for err := range errs {
		t.Fatalf("Create() error = %v", err)
	}
	seen := map[string]bool{}
	for num := range numbers {
		if seen[num] {
			t.Fatalf("duplicate number %s", num)
		}
		seen[num] = true
	}
	for i := 1; i <= n; i++ {
		if want := fmt.Sprintf("INV-202610-%03d", i); !seen[want] {
			t.Errorf("missing %s", want)
		}
	}
}

func TestNumberingRestartsEachMonth(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC)
	e, _ := newTestEngine(t, WithClock(func() time.Time { return now }))

	first, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	second, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	now = now.Add(2 * time.Hour)
	third, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	other, _ := e.Create(ctx, tenant+1, models.KindQuote, sampleDraft(), creator)

	got := []string{first.Number, second.Number, third.Number, other.Number}
	want := []string{"QTN-202610-001", "QTN-202610-002", "QTN-202611-001", "QTN-202611-001"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("number %d = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestDeleteDraft(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)

	doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	if err := e.Delete(ctx, tenant, models.KindQuote, doc.ID, creator); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if _, err := e.Get(ctx, tenant, models.KindQuote, doc.ID); !errors.Is(err, docerr.ErrNotFound) {
		t.Errorf("Get after delete error = %v", err)
	}
	var lines int64
	db.Model(&models.LineItem{}).Where("document_id = ?", doc.ID).Count(&lines)
	if lines != 0 {
		t.Errorf("%d line items left", lines)
	}

	trail, _ := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)
	last := trail[len(trail)-1]
	if last.Action != models.AuditDelete || last.OldValue == nil || *last.OldValue != doc.Number {
		t.Errorf("last audit row = %+v", last)
	}
}

func TestDeletePolicy(t *testing.T) {
	ctx := context.Background()
	approve := func(e *Engine) *models.Document {
		doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
		e.Submit(ctx, tenant, models.KindQuote, doc.ID, creator, "")
		e.Approve(ctx, tenant, models.KindQuote, doc.ID, manager, "")
		return doc
	}

	t.Run("forbidden by default", func(t *testing.T) {
		e, _ := newTestEngine(t)
		doc := approve(e)
		err := e.Delete(ctx, tenant, models.KindQuote, doc.ID, manager)
		if !errors.Is(err, docerr.ErrDeletionForbidden) {
			t.Errorf("Delete(APPROVED) error = %v", err)
		}
		trail, _ := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)
		for _, row := range trail {
			if row.Action == models.AuditDelete {
				t.Error("rejected delete left a DELETE audit row")
			}
		}
	})

	t.Run("allowed by policy", func(t *testing.T) {
		e, _ := newTestEngine(t, WithPolicy(Policy{AllowDeleteApproved: true}))
		doc := approve(e)
		if err := e.Delete(ctx, tenant, models.KindQuote, doc.ID, manager); err != nil {
			t.Errorf("Delete(APPROVED) error = %v", err)
		}
	})
}

func TestConvertGuards(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)

	invoice, _ := e.Create(ctx, tenant, models.KindInvoice, sampleDraft(), creator)
	_, _, err := e.ConvertToInvoice(ctx, tenant, models.KindInvoice, invoice.ID, manager)
	if !errors.Is(err, docerr.ErrUnsupportedConversion) {
		t.Errorf("convert invoice error = %v", err)
	}

	quote, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	_, _, err = e.ConvertToInvoice(ctx, tenant, models.KindQuote, quote.ID, manager)
	if !errors.Is(err, docerr.ErrInvalidTransition) {
		t.Errorf("convert draft error = %v", err)
	}

	var invoices int64
	db.Model(&models.Document{}).Where("kind = ?", models.KindInvoice).Count(&invoices)
	if invoices != 1 {
		t.Errorf("%d invoices after rejected conversions, want 1", invoices)
	}
}

func TestLogExportAction(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)

	if _, err := e.LogExportAction(ctx, tenant, models.KindQuote, doc.ID, creator, models.AuditExportExcel); err != nil {
		t.Fatalf("LogExportAction() error = %v", err)
	}
	if _, err := e.LogExportAction(ctx, tenant, models.KindQuote, doc.ID, creator, models.AuditUpdate); err == nil {
		t.Error("LogExportAction accepted a non-export action")
	}

	trail, _ := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)
	last := trail[len(trail)-1]
	if last.Action != models.AuditExportExcel {
		t.Errorf("last audit row = %+v", last)
	}
	stored, _ := e.Get(ctx, tenant, models.KindQuote, doc.ID)
	if stored.Version != 1 {
		t.Errorf("export bumped version to %d", stored.Version)
	}
}

func TestListAndSummary(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)

	for i := 0; i < 3; i++ {
		if _, err := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator); err != nil {
			t.Fatal(err)
		}
	}
	e.Create(ctx, tenant+1, models.KindQuote, sampleDraft(), creator)

	docs, err := e.List(ctx, tenant, models.KindQuote)
	if err != nil || len(docs) != 3 {
		t.Fatalf("List() = %d docs, %v", len(docs), err)
	}
	if docs[0].Number != "QTN-202610-003" || len(docs[0].LineItems) != 1 {
		t.Errorf("first listed = %s with %d lines", docs[0].Number, len(docs[0].LineItems))
	}

	rows, err := e.Summary(ctx, tenant, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Summary() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Kind != models.KindQuote || rows[0].Status != models.StatusDraft || rows[0].Count != 3 {
		t.Fatalf("summary = %+v", rows)
	}
	if !rows[0].GrandTotal.Round(2).Equal(dec("588.6")) {
		t.Errorf("summary grand total = %s", rows[0].GrandTotal)
	}
}

func TestCreateSurfacesNumberingConflict(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)

	// Rows written out of order, bypassing the authority: the newest row holds
	// 001, so the next number collides with the existing 002.
	for _, number := range []string{"QTN-202610-002", "QTN-202610-001"} {
		seed := models.Document{TenantID: tenant, Kind: models.KindQuote, Number: number, Status: models.StatusDraft, Version: 1}
		if err := db.Create(&seed).Error; err != nil {
			t.Fatalf("seed %s: %v", number, err)
		}
	}

	_, err := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	if !errors.Is(err, docerr.ErrNumberingConflict) {
		t.Fatalf("Create() error = %v, want numbering conflict", err)
	}
	var ce *docerr.NumberingConflictError
	if !errors.As(err, &ce) || ce.Number != "QTN-202610-002" || ce.Kind != models.KindQuote {
		t.Errorf("conflict = %+v", ce)
	}

	var docs, history int64
	db.Model(&models.Document{}).Count(&docs)
	db.Model(&models.StatusHistoryLog{}).Count(&history)
	if docs != 2 || history != 0 {
		t.Errorf("after conflict: %d documents, %d history rows", docs, history)
	}
}

func TestLogFailureRollsBackMutation(t *testing.T) {
	ctx := context.Background()
	e, db := newTestEngine(t)

	doc, err := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)
	if err != nil {
		t.Fatal(err)
	}

	auditDown := errors.New("audit store down")
	err = db.Callback().Create().Before("gorm:create").Register("test:fail_audit", func(tx *gorm.DB) {
		if tx.Statement.Table == "audit_trail_logs" {
			tx.AddError(auditDown)
		}
	})
	if err != nil {
		t.Fatal(err)
	}

	notes := "changed"
	if _, err := e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{Notes: &notes}, creator); !errors.Is(err, auditDown) {
		t.Errorf("Update() error = %v", err)
	}
	if _, err := e.Submit(ctx, tenant, models.KindQuote, doc.ID, creator, ""); !errors.Is(err, auditDown) {
		t.Errorf("Submit() error = %v", err)
	}
	stored, err := e.Get(ctx, tenant, models.KindQuote, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Notes != "" || stored.Version != 1 || stored.Status != models.StatusDraft {
		t.Errorf("stored = %q v%d %s", stored.Notes, stored.Version, stored.Status)
	}

	if _, err := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator); !errors.Is(err, auditDown) {
		t.Errorf("Create() error = %v", err)
	}
	var docs, history, approvals int64
	db.Model(&models.Document{}).Count(&docs)
	db.Model(&models.StatusHistoryLog{}).Count(&history)
	db.Model(&models.ApprovalLog{}).Count(&approvals)
	if docs != 1 || history != 1 || approvals != 0 {
		t.Errorf("after failures: %d documents, %d history rows, %d approvals", docs, history, approvals)
	}
}

func TestLogReadsRequireKnownDocument(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)

	approvals, err := e.ApprovalLogs(ctx, tenant, models.KindQuote, doc.ID)
	if err != nil || len(approvals) != 0 {
		t.Errorf("ApprovalLogs(draft) = %v, %v", approvals, err)
	}

	tests := []struct {
		name   string
		tenant uint
		kind   models.Kind
		id     uint
	}{
		{"unknown id", tenant, models.KindQuote, 9999},
		{"other tenant", tenant + 1, models.KindQuote, doc.ID},
		{"other kind", tenant, models.KindInvoice, doc.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.StatusHistory(ctx, tt.tenant, tt.kind, tt.id); !errors.Is(err, docerr.ErrNotFound) {
				t.Errorf("StatusHistory() error = %v", err)
			}
			if _, err := e.ApprovalLogs(ctx, tt.tenant, tt.kind, tt.id); !errors.Is(err, docerr.ErrNotFound) {
				t.Errorf("ApprovalLogs() error = %v", err)
			}
			if _, err := e.AuditTrail(ctx, tt.tenant, tt.kind, tt.id); !errors.Is(err, docerr.ErrNotFound) {
				t.Errorf("AuditTrail() error = %v", err)
			}
		})
	}

	if err := e.Delete(ctx, tenant, models.KindQuote, doc.ID, creator); err != nil {
		t.Fatal(err)
	}
	trail, err := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)
	if err != nil || len(trail) == 0 {
		t.Errorf("AuditTrail(deleted) = %d rows, %v", len(trail), err)
	}
}

func TestUpdateClearsDates(t *testing.T) {
	ctx := context.Background()
	e, _ := newTestEngine(t)
	doc, _ := e.Create(ctx, tenant, models.KindQuote, sampleDraft(), creator)

	updated, err := e.Update(ctx, tenant, models.KindQuote, doc.ID, Patch{ClearDueDate: true}, creator)
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	stored, _ := e.Get(ctx, tenant, models.KindQuote, doc.ID)
	if updated.DueDate != nil || stored.DueDate != nil || stored.IssueDate == nil {
		t.Errorf("dates = %v / %v", stored.IssueDate, stored.DueDate)
	}

	trail, _ := e.AuditTrail(ctx, tenant, models.KindQuote, doc.ID)
	last := trail[len(trail)-1]
	if last.Action != models.AuditUpdate || last.FieldName != "dueDate" || last.OldValue == nil || last.NewValue != nil {
		t.Errorf("last audit row = %+v", last)
	}
}
