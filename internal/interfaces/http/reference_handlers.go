package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// saveReference binds a reference row, saves it and echoes it back with its id
func saveReference[T any](h *Handlers, c *gin.Context, save func(ctx context.Context, actor entity.Actor, row *T) error) {
	var row T
	if !h.bindJSON(c, &row) {
		return
	}
	if err := save(c.Request.Context(), actorFrom(c), &row); err != nil {
		h.fail(c, err)
		return
	}
	ok(c, http.StatusOK, row)
}

// SaveRegion handles POST /api/reference/regions
func (h *Handlers) SaveRegion(c *gin.Context) {
	saveReference(h, c, h.services.References.SaveRegion)
}

// SaveHEI handles POST /api/reference/heis
func (h *Handlers) SaveHEI(c *gin.Context) {
	saveReference(h, c, h.services.References.SaveHEI)
}

// SaveProgram handles POST /api/reference/programs
func (h *Handlers) SaveProgram(c *gin.Context) {
	saveReference(h, c, h.services.References.SaveProgram)
}

// SaveAcademicYear handles POST /api/reference/academic-years
func (h *Handlers) SaveAcademicYear(c *gin.Context) {
	saveReference(h, c, h.services.References.SaveAcademicYear)
}

// SaveSemester handles POST /api/reference/semesters
func (h *Handlers) SaveSemester(c *gin.Context) {
	saveReference(h, c, h.services.References.SaveSemester)
}

// SaveComplianceStatus handles POST /api/reference/compliance-statuses
func (h *Handlers) SaveComplianceStatus(c *gin.Context) {
	saveReference(h, c, h.services.References.SaveComplianceStatus)
}

// SaveDocumentRequirement handles POST /api/reference/document-requirements
func (h *Handlers) SaveDocumentRequirement(c *gin.Context) {
	saveReference(h, c, h.services.References.SaveDocumentRequirement)
}

// ListDocumentRequirements handles GET /api/reference/document-requirements
func (h *Handlers) ListDocumentRequirements(c *gin.Context) {
	programID, err := optionalInt(c.Query("program_id"))
	if err != nil {
		h.fail(c, apperr.Validation("program_id", "must be an integer"))
		return
	}

	requirements, err := h.services.References.ListDocumentRequirements(c.Request.Context(), programID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if requirements == nil {
		requirements = []*entity.DocumentRequirement{}
	}
	ok(c, http.StatusOK, requirements)
}

// referenceKinds maps URL segments to reference tables
var referenceKinds = map[string]entity.ReferenceKind{
	"regions":               entity.ReferenceRegion,
	"heis":                  entity.ReferenceHEI,
	"programs":              entity.ReferenceProgram,
	"academic-years":        entity.ReferenceAcademicYear,
	"semesters":             entity.ReferenceSemester,
	"compliance-statuses":   entity.ReferenceComplianceStatus,
	"document-requirements": entity.ReferenceDocumentRequirement,
}

// DeleteReference handles DELETE /api/reference/:kind/:id
func (h *Handlers) DeleteReference(c *gin.Context) {
	kind, known := referenceKinds[c.Param("kind")]
	if !known {
		h.fail(c, apperr.NotFound("reference table", c.Param("kind")))
		return
	}
	id, valid := pathInt(c, "id")
	if !valid {
		return
	}

	if err := h.services.References.Delete(c.Request.Context(), actorFrom(c), kind, id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
