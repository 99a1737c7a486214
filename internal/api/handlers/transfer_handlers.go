package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/courier-service/courier_service/internal/domain/entities"
	"github.com/courier-service/courier_service/internal/domain/services/transfer"
)

// TransferHandlers exposes the transfer orchestrator over HTTP
type TransferHandlers struct {
	transferService *transfer.Service
	logger          *zap.Logger
}

// NewTransferHandlers creates a new TransferHandlers instance
func NewTransferHandlers(transferService *transfer.Service, logger *zap.Logger) *TransferHandlers {
	return &TransferHandlers{
		transferService: transferService,
		logger:          logger,
	}
}

type startTransferRequest struct {
	Amount             string `json:"amount" binding:"required"`
	SourceChain        string `json:"source_chain" binding:"required"`
	DestinationChain   string `json:"destination_chain" binding:"required"`
	DestinationAddress string `json:"destination_address" binding:"required"`
}

type resumeTransferRequest struct {
	Leg1TxID     string `json:"leg1_tx_id" binding:"required"`
	SourceDomain uint32 `json:"source_domain"`
}

// StartTransfer handles POST /api/v1/transfers. With Accept:
// text/event-stream the action log is streamed live until the attempt
// settles; otherwise the accepted attempt is returned immediately.
func (h *TransferHandlers) StartTransfer(c *gin.Context) {
	var req startTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request payload",
			map[string]interface{}{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_AMOUNT", "Amount must be a decimal string", nil)
		return
	}

	attempt, events, err := h.transferService.StartTransfer(c.Request.Context(), &entities.TransferRequest{
		Amount:             amount,
		SourceChain:        req.SourceChain,
		DestinationChain:   req.DestinationChain,
		DestinationAddress: req.DestinationAddress,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	h.logger.Info("transfer accepted",
		zap.String("attempt_id", attempt.ID.String()),
		zap.String("source_chain", attempt.SourceChain),
		zap.String("destination_chain", attempt.DestinationChain))

	if wantsEventStream(c) {
		h.streamEvents(c, attempt, events)
		return
	}
	SendAccepted(c, attempt)
}

// ResumeTransfer handles POST /api/v1/transfers/resume. It re-runs the
// attestation and mint legs of a stranded attempt; the burn is never
// repeated.
func (h *TransferHandlers) ResumeTransfer(c *gin.Context) {
	var req resumeTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request payload",
			map[string]interface{}{"error": err.Error()})
		return
	}

	attempt, events, err := h.transferService.ResumeFromLeg1(c.Request.Context(), req.Leg1TxID, req.SourceDomain)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	if wantsEventStream(c) {
		h.streamEvents(c, attempt, events)
		return
	}
	SendAccepted(c, attempt)
}

// GetTransfer handles GET /api/v1/transfers/:id
func (h *TransferHandlers) GetTransfer(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid transfer id", nil)
		return
	}
	attempt, err := h.transferService.GetAttempt(c.Request.Context(), attemptID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	SendSuccess(c, attempt)
}

// ListTransfers handles GET /api/v1/transfers
func (h *TransferHandlers) ListTransfers(c *gin.Context) {
	limit, offset := parsePagination(c, 50, 100)
	attempts, err := h.transferService.ListAttempts(c.Request.Context(), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	SendSuccess(c, gin.H{"items": attempts, "limit": limit, "offset": offset})
}

// GetActionLog handles GET /api/v1/transfers/:id/log
func (h *TransferHandlers) GetActionLog(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid transfer id", nil)
		return
	}
	events, err := h.transferService.GetActionLog(c.Request.Context(), attemptID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	SendSuccess(c, gin.H{"items": events})
}

// RefundTransfer handles POST /api/v1/transfers/:id/refund
func (h *TransferHandlers) RefundTransfer(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid transfer id", nil)
		return
	}
	result, err := h.transferService.RefundEphemeralAccounts(c.Request.Context(), attemptID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	SendSuccess(c, result)
}

// ExportRecovery handles POST /api/v1/transfers/:id/recovery. The
// response carries live secret keys; it is produced only on explicit
// request and never cached or persisted.
func (h *TransferHandlers) ExportRecovery(c *gin.Context) {
	attemptID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_ID", "Invalid transfer id", nil)
		return
	}
	export, err := h.transferService.ExportRecovery(c.Request.Context(), attemptID)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	SendSuccess(c, export)
}

func wantsEventStream(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "text/event-stream")
}

// streamEvents relays the live action log as server-sent events until the
// attempt reaches a terminal state or the client disconnects. The run
// itself continues server-side after a disconnect.
func (h *TransferHandlers) streamEvents(c *gin.Context, attempt *entities.TransferAttempt, events <-chan entities.ActionLogEvent) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	c.SSEvent("attempt", attempt)
	c.Writer.Flush()

	clientGone := c.Request.Context().Done()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("log", event)
			return true
		case <-clientGone:
			return false
		}
	})
}
