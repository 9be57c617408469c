package http

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/garyjia/hei-liquidation/internal/application/service"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
)

// ListLiquidationsRequest represents query parameters for listing liquidations
type ListLiquidationsRequest struct {
	Status string `form:"status"`
	HEIID  int64  `form:"hei_id"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// FinancialRequest is a partial financial update; omitted fields are kept
type FinancialRequest struct {
	AmountReceived   *decimal.Decimal `json:"amount_received"`
	AmountDisbursed  *decimal.Decimal `json:"amount_disbursed"`
	AmountLiquidated *decimal.Decimal `json:"amount_liquidated"`
	AmountRefunded   *decimal.Decimal `json:"amount_refunded"`
	NumberOfGrantees *int             `json:"number_of_grantees"`
	DateFundReleased *time.Time       `json:"date_fund_released"`
	FundSource       *string          `json:"fund_source"`
	Purpose          *string          `json:"purpose"`
}

// RelocateRequest moves the active transmittal's folders
type RelocateRequest struct {
	DocumentLocationID int64  `json:"document_location_id"`
	Remarks            string `json:"remarks"`
}

// CreateLiquidation handles POST /api/liquidations
func (h *Handlers) CreateLiquidation(c *gin.Context) {
	var req service.CreateLiquidationInput
	if !h.bindJSON(c, &req) {
		return
	}

	liquidation, err := h.services.Liquidations.CreateLiquidation(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, liquidation)
}

// ListLiquidations handles GET /api/liquidations
func (h *Handlers) ListLiquidations(c *gin.Context) {
	var req ListLiquidationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.fail(c, apperr.Validation("query", "invalid query parameters"))
		return
	}

	liquidations, err := h.services.Liquidations.ListLiquidations(c.Request.Context(), entity.LiquidationFilter{
		Status: domainwf.State(req.Status),
		HEIID:  req.HEIID,
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	if liquidations == nil {
		liquidations = []*entity.Liquidation{}
	}
	ok(c, http.StatusOK, liquidations)
}

// GetLiquidation handles GET /api/liquidations/:id
func (h *Handlers) GetLiquidation(c *gin.Context) {
	liquidation, err := h.services.Liquidations.GetLiquidation(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, liquidation)
}

// DeleteLiquidation handles DELETE /api/liquidations/:id
func (h *Handlers) DeleteLiquidation(c *gin.Context) {
	if err := h.services.Liquidations.SoftDeleteLiquidation(c.Request.Context(), c.Param("id"), actorFrom(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// UpdateFinancial handles PUT /api/liquidations/:id/financial
func (h *Handlers) UpdateFinancial(c *gin.Context) {
	var req FinancialRequest
	if !h.bindJSON(c, &req) {
		return
	}

	financial, err := h.services.Liquidations.UpsertFinancial(c.Request.Context(), c.Param("id"), actorFrom(c), entity.FinancialFields{
		AmountReceived:   req.AmountReceived,
		AmountDisbursed:  req.AmountDisbursed,
		AmountLiquidated: req.AmountLiquidated,
		AmountRefunded:   req.AmountRefunded,
		NumberOfGrantees: req.NumberOfGrantees,
		DateFundReleased: req.DateFundReleased,
		FundSource:       req.FundSource,
		Purpose:          req.Purpose,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, financial)
}

// AddBeneficiary handles POST /api/liquidations/:id/beneficiaries
func (h *Handlers) AddBeneficiary(c *gin.Context) {
	var req entity.Beneficiary
	if !h.bindJSON(c, &req) {
		return
	}

	beneficiary, err := h.services.Liquidations.AddBeneficiary(c.Request.Context(), c.Param("id"), actorFrom(c), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, beneficiary)
}

// ListBeneficiaries handles GET /api/liquidations/:id/beneficiaries
func (h *Handlers) ListBeneficiaries(c *gin.Context) {
	beneficiaries, err := h.services.Liquidations.ListBeneficiaries(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if beneficiaries == nil {
		beneficiaries = []*entity.Beneficiary{}
	}
	ok(c, http.StatusOK, beneficiaries)
}

// AttachDocument handles POST /api/liquidations/:id/documents as multipart
// with a "file" part and an optional "document_requirement_id" field
func (h *Handlers) AttachDocument(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.fail(c, apperr.Validation("file", "a file part is required"))
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, Response{
			Success: false,
			Error:   "file exceeds upload limit",
			Code:    string(apperr.KindValidation),
		})
		return
	}

	requirementID, err := optionalInt(c.PostForm("document_requirement_id"))
	if err != nil {
		h.fail(c, apperr.Validation("document_requirement_id", "must be an integer"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.fail(c, err)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes))
	if err != nil {
		h.fail(c, err)
		return
	}

	document, err := h.services.Liquidations.AttachDocument(c.Request.Context(), c.Param("id"), actorFrom(c), service.AttachDocumentInput{
		FileName:              fileHeader.Filename,
		ContentType:           fileHeader.Header.Get("Content-Type"),
		DocumentRequirementID: requirementID,
		SizeBytes:             int64(len(content)),
		Content:               content,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusCreated, document)
}

// ListDocuments handles GET /api/liquidations/:id/documents
func (h *Handlers) ListDocuments(c *gin.Context) {
	documents, err := h.services.Liquidations.ListDocuments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if documents == nil {
		documents = []*entity.Document{}
	}
	ok(c, http.StatusOK, documents)
}

// History handles GET /api/liquidations/:id/history
func (h *Handlers) History(c *gin.Context) {
	reviews, err := h.services.Liquidations.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if reviews == nil {
		reviews = []*entity.Review{}
	}
	ok(c, http.StatusOK, reviews)
}

// Activity handles GET /api/liquidations/:id/activity
func (h *Handlers) Activity(c *gin.Context) {
	ctx := c.Request.Context()
	if _, err := h.services.Liquidations.GetLiquidation(ctx, c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	entries, err := h.services.Activity.ListActivity(ctx, entity.ActivityEntityLiquidation, c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if entries == nil {
		entries = []*entity.ActivityLog{}
	}
	ok(c, http.StatusOK, entries)
}

// ActiveTransmittal handles GET /api/liquidations/:id/transmittal
func (h *Handlers) ActiveTransmittal(c *gin.Context) {
	transmittal, err := h.services.Liquidations.ActiveTransmittal(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, transmittal)
}

// RelocateTransmittal handles POST /api/liquidations/:id/transmittal/relocate
func (h *Handlers) RelocateTransmittal(c *gin.Context) {
	var req RelocateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	transmittal, err := h.services.Liquidations.RelocateTransmittal(c.Request.Context(), c.Param("id"), actorFrom(c), req.DocumentLocationID, req.Remarks)
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, transmittal)
}

// ActiveCompliance handles GET /api/liquidations/:id/compliance
func (h *Handlers) ActiveCompliance(c *gin.Context) {
	compliance, err := h.services.Liquidations.ActiveCompliance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, compliance)
}

// ListNotifications handles GET /api/notifications
func (h *Handlers) ListNotifications(c *gin.Context) {
	unread, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	notifications, err := h.services.Notifications.ListNotifications(c.Request.Context(), actorFrom(c).ID, unread, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	if notifications == nil {
		notifications = []*entity.Notification{}
	}
	ok(c, http.StatusOK, notifications)
}

// MarkNotificationRead handles POST /api/notifications/:id/read
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	id, valid := pathInt(c, "id")
	if !valid {
		return
	}

	if err := h.services.Notifications.MarkRead(c.Request.Context(), actorFrom(c).ID, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
