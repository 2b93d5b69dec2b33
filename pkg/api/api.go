// Package api implements the REST API for rolling and formatting dice
// notation, browsing roll history and managing presets.
package api

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/dicenotation/pkg/dice"
	"github.com/lemonberrylabs/dicenotation/pkg/preset"
	"github.com/lemonberrylabs/dicenotation/pkg/roll"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
)

// DefaultListLimit is the number of rolls GET /v1/rolls returns without ?limit.
const DefaultListLimit = 50

// Server is the REST API server.
type Server struct {
	app *fiber.App
	svc *roll.Service
}

// New creates a new API server.
func New(svc *roll.Service) *Server {
	srv := &Server{svc: svc}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
	})

	app.Get("/healthz", srv.health)

	// Rolls API
	app.Post("/v1/rolls", srv.createRoll)
	app.Get("/v1/rolls", srv.listRolls)
	app.Get("/v1/rolls/:id", srv.getRoll)
	app.Post("/v1/format", srv.format)

	// Presets API
	app.Post("/v1/presets", srv.putPreset)
	app.Get("/v1/presets", srv.listPresets)
	app.Get("/v1/presets/:name", srv.getPreset)
	app.Delete("/v1/presets/:name", srv.deletePreset)
	app.Post("/v1/presets/:name\\:roll", srv.rollPreset)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on the given address.
func (s *Server) Listen(addr string) error {
	return s.app.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App returns the underlying Fiber app (useful for testing).
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "SERVING"})
}

// errorResponse writes the standard error envelope.
func errorResponse(c *fiber.Ctx, code int, status, message string) error {
	return c.Status(code).JSON(fiber.Map{
		"error": fiber.Map{
			"code":    code,
			"message": message,
			"status":  status,
		},
	})
}

// writeError maps a service error onto the error envelope.
func writeError(c *fiber.Ctx, err error) error {
	var pe *preset.ParseError
	switch {
	case dice.IsInvalidExpression(err), errors.As(err, &pe):
		return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
	case dice.IsEvaluationError(err):
		return errorResponse(c, fiber.StatusUnprocessableEntity, "FAILED_PRECONDITION", err.Error())
	case errors.Is(err, store.ErrNotFound):
		return errorResponse(c, fiber.StatusNotFound, "NOT_FOUND", err.Error())
	default:
		log.Printf("api: %s %s: %v", c.Method(), c.Path(), err)
		return errorResponse(c, fiber.StatusInternalServerError, "INTERNAL", err.Error())
	}
}

// --- Roll Handlers ---

type rollRequest struct {
	Notation string `json:"notation"`
	Seed     *int64 `json:"seed"`
}

func (s *Server) createRoll(c *fiber.Ctx) error {
	var req rollRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Notation == "" {
		return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "notation is required")
	}

	r, err := s.svc.Roll(c.UserContext(), roll.Request{Notation: req.Notation, Seed: req.Seed})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusOK).JSON(r)
}

func (s *Server) listRolls(c *fiber.Ctx) error {
	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid limit %q", raw))
		}
		limit = n
	}

	rolls, err := s.svc.History(c.UserContext(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"rolls": rolls,
	})
}

func (s *Server) getRoll(c *fiber.Ctx) error {
	r, err := s.svc.GetRoll(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(r)
}

type formatRequest struct {
	Notation string `json:"notation"`
}

func (s *Server) format(c *fiber.Ctx) error {
	var req formatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}
	if req.Notation == "" {
		return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", "notation is required")
	}

	canonical, err := s.svc.Format(c.UserContext(), req.Notation)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"notation":  req.Notation,
		"canonical": canonical,
	})
}

// --- Preset Handlers ---

type presetRequest struct {
	Name        string `json:"name"`
	Notation    string `json:"notation"`
	Description string `json:"description"`
}

func (s *Server) putPreset(c *fiber.Ctx) error {
	var req presetRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
	}

	p, err := s.svc.SavePreset(c.UserContext(), preset.Preset{
		Name:        req.Name,
		Notation:    req.Notation,
		Description: req.Description,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(p)
}

func (s *Server) listPresets(c *fiber.Ctx) error {
	presets, err := s.svc.Repository().ListPresets(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{
		"presets": presets,
	})
}

func (s *Server) getPreset(c *fiber.Ctx) error {
	p, err := s.svc.Repository().GetPreset(c.UserContext(), c.Params("name"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(p)
}

func (s *Server) deletePreset(c *fiber.Ctx) error {
	if err := s.svc.Repository().DeletePreset(c.UserContext(), c.Params("name")); err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{})
}

type rollPresetRequest struct {
	Seed *int64 `json:"seed"`
}

func (s *Server) rollPreset(c *fiber.Ctx) error {
	var req rollPresetRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err))
		}
	}

	r, err := s.svc.RollPreset(c.UserContext(), c.Params("name"), req.Seed)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(r)
}
