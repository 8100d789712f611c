package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"sme-docengine/internal/database"
	"sme-docengine/internal/engine"
)

// ReportData defines the shape of the summary response
type ReportData struct {
	From       string                `json:"from"`
	To         string                `json:"to"`
	TotalCount int64                 `json:"total_count"`
	Rows       []database.SummaryRow `json:"rows"`
	// Grand total per kind, ignoring status
	ByKind map[string]decimal.Decimal `json:"by_kind"`
}

type ReportHandler struct {
	engine *engine.Engine
	now    func() time.Time
}

func NewReportHandler(e *engine.Engine) *ReportHandler {
	return &ReportHandler{engine: e, now: time.Now}
}

// --- GET: /api/reports/summary?from=YYYY-MM-DD&to=YYYY-MM-DD ---
// Defaults to the current month.
func (h *ReportHandler) GetSummary(c *gin.Context) {
	// 1. Resolve the date range
	now := h.now().UTC()
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, -1)

	if s := c.Query("from"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		from = t
	}
	if s := c.Query("to"); s != "" {
		t, err := time.Parse(dateLayout, s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}
		to = t
	}
	if to.Before(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to is before from"})
		return
	}

	// 2. Aggregate
	rows, err := h.engine.Summary(c.Request.Context(), tenantID(c), from, to)
	if err != nil {
		respondError(c, err)
		return
	}

	// 3. Roll up per kind
	data := ReportData{
		From:   from.Format(dateLayout),
		To:     to.Format(dateLayout),
		Rows:   rows,
		ByKind: make(map[string]decimal.Decimal),
	}
	for _, r := range rows {
		data.TotalCount += r.Count
		data.ByKind[string(r.Kind)] = data.ByKind[string(r.Kind)].Add(r.GrandTotal)
	}
	if data.Rows == nil {
		data.Rows = []database.SummaryRow{}
	}

	c.JSON(http.StatusOK, data)
}
