package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// SLAHandler serves SLA views.
type SLAHandler struct {
	sla *service.SLAService
	now func() time.Time
}

// NewSLAHandler constructs handler. now defaults to the wall clock.
func NewSLAHandler(sla *service.SLAService, now func() time.Time) *SLAHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SLAHandler{sla: sla, now: now}
}

// IncidentSLA GET /incidents/:id/sla?at=.
func (h *SLAHandler) IncidentSLA(c *fiber.Ctx) error {
	ref, err := h.referenceTime(c)
	if err != nil {
		return err
	}
	view, err := h.sla.GetIncidentSla(c.UserContext(), c.Params("id"), ref)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentSLAResponse(view)})
}

// GlobalMetrics GET /sla/metrics?at=.
func (h *SLAHandler) GlobalMetrics(c *fiber.Ctx) error {
	ref, err := h.referenceTime(c)
	if err != nil {
		return err
	}
	metrics, err := h.sla.GetGlobalMetrics(c.UserContext(), ref)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSLAMetricsResponse(metrics)})
}

func (h *SLAHandler) referenceTime(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("at")
	if raw == "" {
		return h.now(), nil
	}
	ref, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("at must be RFC3339", map[string]any{"at": raw})
	}
	return ref, nil
}
