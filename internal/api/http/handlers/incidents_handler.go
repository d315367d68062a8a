package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
	"github.com/spec-kit/incident-service/internal/auth"
	"github.com/spec-kit/incident-service/internal/domain"
	"github.com/spec-kit/incident-service/internal/service"
	apperrors "github.com/spec-kit/incident-service/pkg/util/errorutil"
)

// IncidentsHandler exposes the incident lifecycle, assignment and escalation endpoints.
type IncidentsHandler struct {
	incidents   *service.IncidentService
	assignments *service.AssignmentService
	escalations *service.EscalationService
}

// NewIncidentsHandler constructs handler.
func NewIncidentsHandler(incidents *service.IncidentService, assignments *service.AssignmentService, escalations *service.EscalationService) *IncidentsHandler {
	return &IncidentsHandler{incidents: incidents, assignments: assignments, escalations: escalations}
}

// CreateIncident POST /incidents.
func (h *IncidentsHandler) CreateIncident(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIncidentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	incident, err := h.incidents.CreateIncident(c.UserContext(), service.CreateIncidentInput{
		ReporterID:  principal.SubjectID,
		Title:       req.Title,
		Description: req.Description,
		Priority:    domain.IncidentPriority(strings.ToUpper(strings.TrimSpace(string(req.Priority)))),
		Category:    domain.Category(req.Category),
		ServiceID:   req.ServiceID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// GetIncident GET /incidents/:id.
func (h *IncidentsHandler) GetIncident(c *fiber.Ctx) error {
	incident, err := h.incidents.GetIncident(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// Assign POST /incidents/:id/assign. SPOC only.
func (h *IncidentsHandler) Assign(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	technicianID, err := parseAssignRequest(c)
	if err != nil {
		return err
	}
	assignment, err := h.assignments.AssignManually(c.UserContext(), c.Params("id"), technicianID, principal.Technician)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// Reassign POST /incidents/:id/reassign. SPOC only.
func (h *IncidentsHandler) Reassign(c *fiber.Ctx) error {
	technicianID, err := parseAssignRequest(c)
	if err != nil {
		return err
	}
	assignment, err := h.assignments.Reassign(c.UserContext(), c.Params("id"), technicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// Take POST /incidents/:id/take.
func (h *IncidentsHandler) Take(c *fiber.Ctx) error {
	principal, _ := auth.PrincipalFromContext(c)
	assignment, err := h.assignments.TakeUnassigned(c.UserContext(), c.Params("id"), principal.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssignmentResponse(assignment)})
}

// Start POST /incidents/:id/start.
func (h *IncidentsHandler) Start(c *fiber.Ctx) error {
	return h.transition(c, h.incidents.StartWork)
}

// Resolve POST /incidents/:id/resolve.
func (h *IncidentsHandler) Resolve(c *fiber.Ctx) error {
	return h.transition(c, h.incidents.Resolve)
}

// Close POST /incidents/:id/close.
func (h *IncidentsHandler) Close(c *fiber.Ctx) error {
	return h.transition(c, h.incidents.Close)
}

type transitionFunc func(ctx context.Context, incidentID, technicianID string) (*domain.Incident, error)

func (h *IncidentsHandler) transition(c *fiber.Ctx, fn transitionFunc) error {
	principal, _ := auth.PrincipalFromContext(c)
	incident, err := fn(c.UserContext(), c.Params("id"), principal.SubjectID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// Escalate POST /incidents/:id/escalate.
func (h *IncidentsHandler) Escalate(c *fiber.Ctx) error {
	var req dto.EscalateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return apperrors.NewValidationError("invalid payload", nil)
		}
	}
	if strings.TrimSpace(req.Reason) == "" {
		return apperrors.NewValidationError("reason required", map[string]any{"reason": "required"})
	}
	incident, err := h.escalations.Escalate(c.UserContext(), c.Params("id"), strings.TrimSpace(req.Reason), req.Automatic)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIncidentResponse(incident)})
}

// ListEscalations GET /incidents/:id/escalations.
func (h *IncidentsHandler) ListEscalations(c *fiber.Ctx) error {
	records, err := h.incidents.ListEscalations(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationResponses(records)})
}

func parseAssignRequest(c *fiber.Ctx) (string, error) {
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return "", apperrors.NewValidationError("invalid payload", nil)
	}
	technicianID := strings.TrimSpace(req.TechnicianID)
	if technicianID == "" {
		return "", apperrors.NewValidationError("technician_id required", map[string]any{"technician_id": "required"})
	}
	return technicianID, nil
}
