package engine

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"sme-docengine/internal/audit"
	"sme-docengine/internal/docerr"
	"sme-docengine/internal/models"
	"sme-docengine/internal/workflow"
)

// Submit moves a DRAFT or REJECTED document to PENDING_APPROVAL.
func (e *Engine) Submit(ctx context.Context, tenantID uint, kind models.Kind, id, actor uint, remarks string) (*models.Document, error) {
	return e.step(ctx, tenantID, kind, id, workflow.ActionSubmit, actor, remarks)
}

// Approve moves a PENDING_APPROVAL document to APPROVED.
func (e *Engine) Approve(ctx context.Context, tenantID uint, kind models.Kind, id, actor uint, remarks string) (*models.Document, error) {
	return e.step(ctx, tenantID, kind, id, workflow.ActionApprove, actor, remarks)
}

// Reject moves a PENDING_APPROVAL document to REJECTED.
func (e *Engine) Reject(ctx context.Context, tenantID uint, kind models.Kind, id, actor uint, remarks string) (*models.Document, error) {
	return e.step(ctx, tenantID, kind, id, workflow.ActionReject, actor, remarks)
}

// step applies one approval action. CONVERT goes through ConvertToInvoice
// since it also creates the invoice.
func (e *Engine) step(ctx context.Context, tenantID uint, kind models.Kind, id uint, action workflow.Action, actor uint, remarks string) (*models.Document, error) {
	var doc *models.Document
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cur, err := load(tx, tenantID, kind, id, true)
		if err != nil {
			return err
		}
		if err := transition(tx, cur, action, actor, remarks, e.clock()); err != nil {
			return err
		}
		doc = cur
		return nil
	})
	if err != nil {
		if errors.Is(err, docerr.ErrInvalidTransition) {
			e.log.Warn().
				Err(err).
				Uint("tenant_id", tenantID).
				Str("kind", string(kind)).
				Uint("document_id", id).
				Msg("transition rejected")
		}
		return nil, err
	}

	e.log.Info().
		Uint("tenant_id", tenantID).
		Str("kind", string(kind)).
		Uint("document_id", id).
		Str("action", string(action)).
		Str("status", string(doc.Status)).
		Msg("status changed")
	return doc, nil
}

// transition writes the new status of doc together with its history,
// approval and audit rows.
func transition(tx *gorm.DB, doc *models.Document, action workflow.Action, actor uint, remarks string, at time.Time) error {
	before := audit.Snapshot(doc)
	t, err := workflow.Apply(doc, action, actor, remarks, at)
	if err != nil {
		return err
	}
	if err := saveHeader(tx, doc, at); err != nil {
		return err
	}

	l := logs{
		history: []models.StatusHistoryLog{t.History},
		audit:   audit.Diff(before, doc, auditEntry(action.AuditAction(), actor, remarks, at)),
	}
	if t.Approval != nil {
		l.approval = []models.ApprovalLog{*t.Approval}
	}
	return l.write(tx)
}
