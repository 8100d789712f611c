// Package workflow is the status state machine shared by quotes, purchase
// orders and invoices:
//
//	DRAFT -> PENDING_APPROVAL -> APPROVED -> CONVERTED
//	                          \-> REJECTED -> PENDING_APPROVAL
//
// CONVERTED is terminal. Apply is the only place a document status changes
// after creation.
package workflow

import (
	"time"

	"sme-docengine/internal/docerr"
	"sme-docengine/internal/models"
)

// Action is a requested lifecycle step.
type Action string

const (
	ActionSubmit  Action = "SUBMIT"
	ActionApprove Action = "APPROVE"
	ActionReject  Action = "REJECT"
	ActionConvert Action = "CONVERT"
)

type rule struct {
	from []models.Status
	to   models.Status
}

var rules = map[Action]rule{
	ActionSubmit:  {from: []models.Status{models.StatusDraft, models.StatusRejected}, to: models.StatusPendingApproval},
	ActionApprove: {from: []models.Status{models.StatusPendingApproval}, to: models.StatusApproved},
	ActionReject:  {from: []models.Status{models.StatusPendingApproval}, to: models.StatusRejected},
	ActionConvert: {from: []models.Status{models.StatusApproved}, to: models.StatusConverted},
}

// Transition is the outcome of Apply: the rows to append alongside the status write.
type Transition struct {
	From     models.Status
	To       models.Status
	History  models.StatusHistoryLog
	Approval *models.ApprovalLog // nil for CONVERT
}

// Target returns the status action leads to from current.
func Target(current models.Status, action Action) (models.Status, error) {
	r, ok := rules[action]
	if !ok {
		return "", &docerr.InvalidTransitionError{Action: string(action), Current: current}
	}
	for _, s := range r.from {
		if s == current {
			return r.to, nil
		}
	}
	return "", &docerr.InvalidTransitionError{Action: string(action), Current: current, Requested: r.to}
}

// Allowed lists the actions a document of kind can take from current, in a
// stable order. Invoices are never converted.
func Allowed(kind models.Kind, current models.Status) []Action {
	out := []Action{}
	for _, a := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionConvert} {
		if a == ActionConvert && kind == models.KindInvoice {
			continue
		}
		if _, err := Target(current, a); err == nil {
			out = append(out, a)
		}
	}
	return out
}

// Apply validates action against doc's status, writes the new status onto doc
// and returns the log rows describing the step.
func Apply(doc *models.Document, action Action, actor uint, remarks string, at time.Time) (Transition, error) {
	from := doc.Status
	to, err := Target(from, action)
	if err != nil {
		return Transition{}, err
	}
	doc.Status = to

	t := Transition{
		From: from,
		To:   to,
		History: models.StatusHistoryLog{
			TenantID:     doc.TenantID,
			DocumentID:   doc.ID,
			DocumentKind: doc.Kind,
			OldStatus:    &from,
			NewStatus:    to,
			ChangedBy:    actor,
			Remarks:      remarks,
			CreatedAt:    at,
		},
	}
	if approval, ok := action.approvalAction(); ok {
		t.Approval = &models.ApprovalLog{
			TenantID:     doc.TenantID,
			DocumentID:   doc.ID,
			DocumentKind: doc.Kind,
			ApproverID:   actor,
			Action:       approval,
			Remarks:      remarks,
			CreatedAt:    at,
		}
	}
	return t, nil
}

// Initial forces doc into DRAFT and returns the creation history row (no old status).
func Initial(doc *models.Document, actor uint, remarks string, at time.Time) models.StatusHistoryLog {
	doc.Status = models.StatusDraft
	return models.StatusHistoryLog{
		TenantID:     doc.TenantID,
		DocumentID:   doc.ID,
		DocumentKind: doc.Kind,
		NewStatus:    models.StatusDraft,
		ChangedBy:    actor,
		Remarks:      remarks,
		CreatedAt:    at,
	}
}

// AuditAction maps the step to the audit trail action name.
func (a Action) AuditAction() models.AuditAction {
	switch a {
	case ActionSubmit:
		return models.AuditSubmitForApproval
	case ActionApprove:
		return models.AuditApprove
	case ActionReject:
		return models.AuditReject
	default:
		return models.AuditConvert
	}
}

func (a Action) approvalAction() (models.ApprovalAction, bool) {
	switch a {
	case ActionSubmit:
		return models.ApprovalSubmitted, true
	case ActionApprove:
		return models.ApprovalApproved, true
	case ActionReject:
		return models.ApprovalRejected, true
	}
	return "", false
}
