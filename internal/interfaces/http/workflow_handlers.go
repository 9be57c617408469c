package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
)

// RemarksRequest is the body of transitions that only carry remarks
type RemarksRequest struct {
	Remarks string `json:"remarks"`
}

// ReturnToHEIRequest optionally opens a compliance record
type ReturnToHEIRequest struct {
	Remarks                string  `json:"remarks"`
	DocumentsForCompliance *string `json:"documents_for_compliance"`
}

// OperationsResponse lists the transitions the caller may fire now
type OperationsResponse struct {
	LiquidationID string             `json:"liquidation_id"`
	Operations    []domainwf.Trigger `json:"operations"`
}

type transitionFunc func(ctx context.Context, id string, actor entity.Actor, remarks string) (*entity.Liquidation, error)

// Submit handles POST /api/liquidations/:id/submit
func (h *Handlers) Submit(c *gin.Context) {
	h.remarksTransition(c, h.services.Workflow.SubmitForReview)
}

// EndorseToCOA handles POST /api/liquidations/:id/endorse-to-coa
func (h *Handlers) EndorseToCOA(c *gin.Context) {
	h.remarksTransition(c, h.services.Workflow.EndorseToCOA)
}

// ReturnToRC handles POST /api/liquidations/:id/return-to-rc
func (h *Handlers) ReturnToRC(c *gin.Context) {
	h.remarksTransition(c, h.services.Workflow.ReturnToRC)
}

// EndorseToAccounting handles POST /api/liquidations/:id/endorse-to-accounting
func (h *Handlers) EndorseToAccounting(c *gin.Context) {
	var req entity.TransmittalFields
	if !h.bindJSON(c, &req) {
		return
	}

	liquidation, err := h.services.Workflow.EndorseToAccounting(c.Request.Context(), c.Param("id"), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, liquidation)
}

// ReturnToHEI handles POST /api/liquidations/:id/return-to-hei
func (h *Handlers) ReturnToHEI(c *gin.Context) {
	var req ReturnToHEIRequest
	if !h.bindJSON(c, &req) {
		return
	}

	liquidation, err := h.services.Workflow.ReturnToHEI(c.Request.Context(), c.Param("id"), actorFrom(c), req.Remarks, req.DocumentsForCompliance)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, liquidation)
}

// PermittedOperations handles GET /api/liquidations/:id/operations
func (h *Handlers) PermittedOperations(c *gin.Context) {
	triggers, err := h.services.Workflow.PermittedOperations(c.Request.Context(), c.Param("id"), actorFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	if triggers == nil {
		triggers = []domainwf.Trigger{}
	}
	ok(c, http.StatusOK, OperationsResponse{
		LiquidationID: c.Param("id"),
		Operations:    triggers,
	})
}

func (h *Handlers) remarksTransition(c *gin.Context, fn transitionFunc) {
	var req RemarksRequest
	if !h.bindJSON(c, &req) {
		return
	}

	liquidation, err := fn(c.Request.Context(), c.Param("id"), actorFrom(c), req.Remarks)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, liquidation)
}
