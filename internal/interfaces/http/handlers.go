package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lodgetix/invoicing/internal/application/port"
	"github.com/lodgetix/invoicing/internal/application/service"
	"github.com/lodgetix/invoicing/internal/domain/entity"
	"github.com/lodgetix/invoicing/internal/domain/mapping"
	"github.com/lodgetix/invoicing/internal/matching"
	"github.com/lodgetix/invoicing/internal/sequence"
)

// InvoiceExporter renders a stored invoice to a workbook on disk and
// returns the path written.
type InvoiceExporter interface {
	WriteInvoice(invoice *entity.Invoice) (string, error)
}

// Handlers contains all HTTP request handlers.
type Handlers struct {
	invoices     *service.InvoiceService
	reconcile    *service.ReconcileService
	payments     port.PaymentRepository
	invoiceStore port.InvoiceRepository
	matcher      *matching.Matcher
	allocator    *sequence.Allocator
	exporter     InvoiceExporter
	logger       *zap.Logger
}

// NewHandlers creates a Handlers instance.
func NewHandlers(
	invoices *service.InvoiceService,
	reconcile *service.ReconcileService,
	payments port.PaymentRepository,
	invoiceStore port.InvoiceRepository,
	matcher *matching.Matcher,
	allocator *sequence.Allocator,
	exporter InvoiceExporter,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		invoices:     invoices,
		reconcile:    reconcile,
		payments:     payments,
		invoiceStore: invoiceStore,
		matcher:      matcher,
		allocator:    allocator,
		exporter:     exporter,
		logger:       logger,
	}
}

// Response is the standard JSON envelope.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// MatchRequest selects the payment to match.
type MatchRequest struct {
	PaymentID string `json:"paymentId" binding:"required"`
}

// MatchResponse reports one match attempt.
type MatchResponse struct {
	PaymentID      string   `json:"paymentId"`
	RegistrationID string   `json:"registrationId,omitempty"`
	Method         string   `json:"method"`
	Confidence     int      `json:"confidence"`
	Issues         []string `json:"issues"`
}

// InvoiceRequest drives a preview or generate build.
type InvoiceRequest struct {
	PaymentID        string          `json:"paymentId" binding:"required"`
	Mapping          *mapping.Config `json:"mapping,omitempty"`
	UseGlobalCounter bool            `json:"useGlobalCounter,omitempty"`
}

// InvoiceResponse wraps the built invoice with its match outcome.
type InvoiceResponse struct {
	Invoice *entity.Invoice `json:"invoice"`
	Match   MatchResponse   `json:"match"`
}

// ReconcileRequest controls one batch run.
type ReconcileRequest struct {
	WithReport bool `json:"withReport,omitempty"`
}

// ExportResponse reports where an exported workbook was written.
type ExportResponse struct {
	InvoiceNumber string `json:"invoiceNumber"`
	Path          string `json:"path"`
}

// CounterResponse reports a counter's current value without
// incrementing it.
type CounterResponse struct {
	Key      string `json:"key"`
	Sequence int64  `json:"sequenceValue"`
}

// HealthCheck handles GET /health.
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "healthy",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// MatchPayment handles POST /api/v1/match.
func (h *Handlers) MatchPayment(c *gin.Context) {
	var req MatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "paymentId is required"})
		return
	}

	payment, err := h.payments.GetByID(c.Request.Context(), req.PaymentID)
	if err != nil {
		h.logger.Error("Failed to load payment", zap.String("payment_id", req.PaymentID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load payment"})
		return
	}
	if payment == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "payment not found"})
		return
	}

	result := h.matcher.Match(c.Request.Context(), payment)
	c.JSON(http.StatusOK, Response{Success: true, Data: toMatchResponse(result)})
}

// Reconcile handles POST /api/v1/reconcile.
func (h *Handlers) Reconcile(c *gin.Context) {
	var req ReconcileRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
			return
		}
	}

	summary, err := h.reconcile.Run(c.Request.Context(), req.WithReport)
	if err != nil {
		h.logger.Error("Reconcile run failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "reconcile run failed"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: summary})
}

// PreviewInvoice handles POST /api/v1/invoices/preview. No invoice
// number is allocated and nothing is persisted.
func (h *Handlers) PreviewInvoice(c *gin.Context) {
	h.buildInvoice(c, false)
}

// GenerateInvoice handles POST /api/v1/invoices. The invoice is
// numbered and stored, and the match outcome recorded on the payment.
func (h *Handlers) GenerateInvoice(c *gin.Context) {
	h.buildInvoice(c, true)
}

func (h *Handlers) buildInvoice(c *gin.Context, persist bool) {
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "paymentId is required"})
		return
	}

	invoice, result, err := h.invoices.Build(c.Request.Context(), req.PaymentID, req.Mapping, service.BuildOptions{
		UseGlobalCounter: req.UseGlobalCounter,
		Persist:          persist,
	})
	if err != nil {
		h.logger.Error("Invoice build failed",
			zap.String("payment_id", req.PaymentID),
			zap.Bool("persist", persist),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: err.Error()})
		return
	}

	status := http.StatusOK
	if persist {
		status = http.StatusCreated
	}
	c.JSON(status, Response{
		Success: true,
		Data: InvoiceResponse{
			Invoice: invoice,
			Match:   toMatchResponse(result),
		},
	})
}

// ExportInvoice handles POST /api/v1/invoices/:number/export. The
// stored invoice is rendered to an Excel workbook on disk.
func (h *Handlers) ExportInvoice(c *gin.Context) {
	number := c.Param("number")

	invoice, err := h.invoiceStore.GetByNumber(c.Request.Context(), number)
	if err != nil {
		h.logger.Error("Failed to load invoice", zap.String("invoice_number", number), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to load invoice"})
		return
	}
	if invoice == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "invoice not found"})
		return
	}

	path, err := h.exporter.WriteInvoice(invoice)
	if err != nil {
		h.logger.Error("Invoice export failed", zap.String("invoice_number", number), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "invoice export failed"})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    ExportResponse{InvoiceNumber: number, Path: path},
	})
}

// GetCounter handles GET /api/v1/counters/:key.
func (h *Handlers) GetCounter(c *gin.Context) {
	key := c.Param("key")

	sequence, err := h.allocator.Peek(c.Request.Context(), key)
	if err != nil {
		h.logger.Error("Failed to read counter", zap.String("key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to read counter"})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    CounterResponse{Key: key, Sequence: sequence},
	})
}

func toMatchResponse(result *entity.MatchResult) MatchResponse {
	resp := MatchResponse{
		PaymentID:  result.Payment.ID,
		Method:     string(result.Method),
		Confidence: result.Confidence,
		Issues:     result.Issues,
	}
	if resp.Issues == nil {
		resp.Issues = []string{}
	}
	if result.Registration != nil {
		resp.RegistrationID = result.Registration.ID
	}
	return resp
}
