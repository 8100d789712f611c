package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"sme-docengine/internal/auth"
	"sme-docengine/internal/docerr"
	"sme-docengine/internal/engine"
	"sme-docengine/internal/logger"
	"sme-docengine/internal/middleware"
	"sme-docengine/internal/models"
	"sme-docengine/internal/workflow"
)

const dateLayout = "2006-01-02"

// Kinds maps the URL segment of each document collection to its kind.
var Kinds = map[string]models.Kind{
	"quotes":          models.KindQuote,
	"purchase-orders": models.KindPurchaseOrder,
	"invoices":        models.KindInvoice,
}

// DocumentRequest is the body of create and update calls. On update, omitted
// fields are left unchanged, an empty issue_date or due_date clears it and
// line_items, when present, replaces all lines.
type DocumentRequest struct {
	CounterpartyRef *string             `json:"counterparty_ref"`
	Currency        *string             `json:"currency"`
	IssueDate       *string             `json:"issue_date"` // YYYY-MM-DD
	DueDate         *string             `json:"due_date"`
	PaymentTerms    *string             `json:"payment_terms"`
	Notes           *string             `json:"notes"`
	HeaderDiscount  *decimal.Decimal    `json:"header_discount"`
	Shipping        *decimal.Decimal    `json:"shipping"`
	LineItems       *[]engine.LineInput `json:"line_items"`
	Version         *uint               `json:"version"`
}

// documentView is a document plus the lifecycle actions it can take next.
type documentView struct {
	*models.Document
	AllowedActions []workflow.Action `json:"allowed_actions"`
}

type remarksRequest struct {
	Remarks string `json:"remarks"`
}

type exportRequest struct {
	Format string `json:"format" binding:"required"`
}

// DocumentHandler serves one document kind.
type DocumentHandler struct {
	engine *engine.Engine
	kind   models.Kind
}

func NewDocumentHandler(e *engine.Engine, kind models.Kind) *DocumentHandler {
	return &DocumentHandler{engine: e, kind: kind}
}

// RegisterDocumentRoutes mounts the quote, purchase order and invoice
// collections on api. Approve and reject need an admin or manager.
func RegisterDocumentRoutes(api *gin.RouterGroup, e *engine.Engine) {
	approvers := middleware.RequireRole(auth.RoleAdmin, auth.RoleManager)

	for segment, kind := range Kinds {
		h := NewDocumentHandler(e, kind)
		g := api.Group("/" + segment)

		g.GET("", h.List)
		g.POST("", h.Create)
		g.GET("/:id", h.Get)
		g.PUT("/:id", h.Update)
		g.DELETE("/:id", h.Delete)

		g.POST("/:id/submit", h.Submit)
		g.POST("/:id/approve", approvers, h.Approve)
		g.POST("/:id/reject", approvers, h.Reject)
		if kind != models.KindInvoice {
			g.POST("/:id/convert", h.Convert)
		}
		g.POST("/:id/export", h.Export)

		g.GET("/:id/approval-logs", h.ApprovalLogs)
		g.GET("/:id/status-history", h.StatusHistory)
		g.GET("/:id/audit-trail", h.AuditTrail)
	}
}

// --- GET: /api/{kind} ---
func (h *DocumentHandler) List(c *gin.Context) {
	docs, err := h.engine.List(c.Request.Context(), tenantID(c), h.kind)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, docs)
}

// --- GET: /api/{kind}/:id ---
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	doc, err := h.engine.Get(c.Request.Context(), tenantID(c), h.kind, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, documentView{
		Document:       doc,
		AllowedActions: workflow.Allowed(doc.Kind, doc.Status),
	})
}

// --- POST: /api/{kind} ---
func (h *DocumentHandler) Create(c *gin.Context) {
	// 1. Parse JSON Input
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	draft, err := req.draft()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. Number, price and store it
	doc, err := h.engine.Create(c.Request.Context(), tenantID(c), h.kind, draft, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

// --- PUT: /api/{kind}/:id ---
func (h *DocumentHandler) Update(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	var req DocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}
	patch, err := req.patch()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	doc, err := h.engine.Update(c.Request.Context(), tenantID(c), h.kind, id, patch, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// --- DELETE: /api/{kind}/:id ---
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	if err := h.engine.Delete(c.Request.Context(), tenantID(c), h.kind, id, actorID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Document deleted"})
}

func (h *DocumentHandler) Submit(c *gin.Context) {
	h.step(c, h.engine.Submit)
}

func (h *DocumentHandler) Approve(c *gin.Context) {
	h.step(c, h.engine.Approve)
}

func (h *DocumentHandler) Reject(c *gin.Context) {
	h.step(c, h.engine.Reject)
}

type stepFunc func(ctx context.Context, tenantID uint, kind models.Kind, id, actor uint, remarks string) (*models.Document, error)

func (h *DocumentHandler) step(c *gin.Context, fn stepFunc) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	// remarks are optional, so an empty body is fine
	var req remarksRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
			return
		}
	}

	doc, err := fn(c.Request.Context(), tenantID(c), h.kind, id, actorID(c), req.Remarks)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// --- POST: /api/{kind}/:id/convert ---
func (h *DocumentHandler) Convert(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	source, invoice, err := h.engine.ConvertToInvoice(c.Request.Context(), tenantID(c), h.kind, id, actorID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"source": source, "invoice": invoice})
}

// --- POST: /api/{kind}/:id/export ---
// Records the export and returns the document for the renderer.
func (h *DocumentHandler) Export(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	var req exportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid input"})
		return
	}

	var action models.AuditAction
	switch strings.ToLower(req.Format) {
	case "pdf":
		action = models.AuditExportPDF
	case "excel", "xlsx":
		action = models.AuditExportExcel
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "format must be pdf or excel"})
		return
	}

	doc, err := h.engine.LogExportAction(c.Request.Context(), tenantID(c), h.kind, id, actorID(c), action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *DocumentHandler) ApprovalLogs(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	rows, err := h.engine.ApprovalLogs(c.Request.Context(), tenantID(c), h.kind, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *DocumentHandler) StatusHistory(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	rows, err := h.engine.StatusHistory(c.Request.Context(), tenantID(c), h.kind, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *DocumentHandler) AuditTrail(c *gin.Context) {
	id, ok := documentID(c)
	if !ok {
		return
	}
	rows, err := h.engine.AuditTrail(c.Request.Context(), tenantID(c), h.kind, id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (r DocumentRequest) draft() (engine.Draft, error) {
	var d engine.Draft
	var err error
	if d.IssueDate, err = parseDate("issue_date", r.IssueDate); err != nil {
		return d, err
	}
	if d.DueDate, err = parseDate("due_date", r.DueDate); err != nil {
		return d, err
	}
	d.CounterpartyRef = deref(r.CounterpartyRef)
	d.Currency = deref(r.Currency)
	d.PaymentTerms = deref(r.PaymentTerms)
	d.Notes = deref(r.Notes)
	if r.HeaderDiscount != nil {
		d.HeaderDiscount = *r.HeaderDiscount
	}
	if r.Shipping != nil {
		d.Shipping = *r.Shipping
	}
	if r.LineItems != nil {
		d.LineItems = *r.LineItems
	}
	return d, nil
}

func (r DocumentRequest) patch() (engine.Patch, error) {
	p := engine.Patch{
		CounterpartyRef: r.CounterpartyRef,
		Currency:        r.Currency,
		PaymentTerms:    r.PaymentTerms,
		Notes:           r.Notes,
		HeaderDiscount:  r.HeaderDiscount,
		Shipping:        r.Shipping,
		LineItems:       r.LineItems,
		ExpectedVersion: r.Version,
	}
	var err error
	if p.IssueDate, err = parseDate("issue_date", r.IssueDate); err != nil {
		return p, err
	}
	if p.DueDate, err = parseDate("due_date", r.DueDate); err != nil {
		return p, err
	}
	p.ClearIssueDate = r.IssueDate != nil && *r.IssueDate == ""
	p.ClearDueDate = r.DueDate != nil && *r.DueDate == ""
	return p, nil
}

func parseDate(field string, s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, *s)
	if err != nil {
		return nil, fmt.Errorf("%s must be YYYY-MM-DD", field)
	}
	return &t, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func documentID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document ID"})
		return 0, false
	}
	return uint(id), true
}

func tenantID(c *gin.Context) uint {
	return c.GetUint(middleware.TenantIDKey)
}

func actorID(c *gin.Context) uint {
	return c.GetUint(middleware.UserIDKey)
}

// respondError maps engine failures to a status code and a stable error code.
func respondError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, docerr.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, docerr.ErrInvalidTransition):
		status, code = http.StatusConflict, "INVALID_TRANSITION"
	case errors.Is(err, docerr.ErrInvalidLineItem):
		status, code = http.StatusUnprocessableEntity, "INVALID_LINE_ITEM"
	case errors.Is(err, docerr.ErrNumberingConflict):
		status, code = http.StatusConflict, "NUMBERING_CONFLICT"
	case errors.Is(err, docerr.ErrStaleVersion):
		status, code = http.StatusConflict, "STALE_VERSION"
	case errors.Is(err, docerr.ErrDocumentLocked):
		status, code = http.StatusConflict, "DOCUMENT_LOCKED"
	case errors.Is(err, docerr.ErrDeletionForbidden):
		status, code = http.StatusConflict, "DELETION_FORBIDDEN"
	case errors.Is(err, docerr.ErrUnsupportedConversion):
		status, code = http.StatusUnprocessableEntity, "UNSUPPORTED_CONVERSION"
	}

	if status == http.StatusInternalServerError {
		log := logger.WithRequestID(c.GetString(middleware.RequestKey))
		log.Error().Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": "Internal server error", "code": code})
		return
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}
