package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/incident-service/internal/api/dto"
)

// SweepRunner runs a single guarded escalation sweep.
type SweepRunner interface {
	RunOnce(ctx context.Context) (escalated int, ran bool, err error)
}

// SweepsHandler lets coordinators trigger a sweep on demand.
type SweepsHandler struct {
	runner SweepRunner
}

func NewSweepsHandler(runner SweepRunner) *SweepsHandler {
	return &SweepsHandler{runner: runner}
}

// Run POST /sweeps.
func (h *SweepsHandler) Run(c *fiber.Ctx) error {
	escalated, ran, err := h.runner.RunOnce(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SweepResponse{Ran: ran, Escalated: escalated}})
}
