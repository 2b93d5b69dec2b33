// Package web provides the embedded web UI for the dice roller.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/lemonberrylabs/dicenotation/pkg/roll"
	"github.com/lemonberrylabs/dicenotation/pkg/rolllog"
	"github.com/lemonberrylabs/dicenotation/pkg/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// recentRolls is how many rolls the dashboard shows.
const recentRolls = 20

// Handler serves the web UI pages.
type Handler struct {
	svc     *roll.Service
	funcMap template.FuncMap
}

// pageData wraps all page-specific data with common fields.
type pageData struct {
	NavActive string
	Data      interface{}
}

// New creates a new web UI handler.
func New(svc *roll.Service) *Handler {
	return &Handler{
		svc: svc,
		funcMap: template.FuncMap{
			"timeAgo":    timeAgo,
			"formatTime": formatTime,
			"truncate":   truncate,
			"dieClass":   dieClass,
			"diceList":   rolllog.Format,
			"shortID":    shortID,
		},
	}
}

func (h *Handler) render(c *fiber.Ctx, page string, navActive string, data interface{}) error {
	// Each page is parsed with the layout alone so define blocks don't
	// collide across pages.
	tmpl := template.Must(
		template.New("").Funcs(h.funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+page),
	)

	pd := pageData{
		NavActive: navActive,
		Data:      data,
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, page, pd); err != nil {
		return c.Status(500).SendString(fmt.Sprintf("template error: %v", err))
	}

	c.Set("Content-Type", "text/html; charset=utf-8")
	return c.Send(buf.Bytes())
}

// Register adds web UI routes to the Fiber app.
func (h *Handler) Register(app *fiber.App) {
	app.Get("/ui", h.dashboard)
	app.Post("/ui/roll", h.submitRoll)
	app.Get("/ui/rolls/:id", h.rollDetail)
	app.Get("/ui/presets", h.presetList)
	app.Post("/ui/presets/:name/roll", h.submitPresetRoll)

	// Redirect root to UI
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/ui")
	})
}

// --- Page Data Types ---

type dashboardContent struct {
	Notation string
	Error    string
	Rolls    []*store.Roll
	Presets  []*store.Preset
}

type rollDetailContent struct {
	Roll *store.Roll
}

type presetListContent struct {
	Presets []*store.Preset
	Error   string
}

type notFoundContent struct {
	Message string
}

// --- Page Handlers ---

func (h *Handler) dashboard(c *fiber.Ctx) error {
	content, err := h.dashboardContent(c.UserContext())
	if err != nil {
		return err
	}
	content.Notation = c.Query("notation")
	return h.render(c, "dashboard.html", "dashboard", content)
}

func (h *Handler) dashboardContent(ctx context.Context) (dashboardContent, error) {
	rolls, err := h.svc.History(ctx, recentRolls)
	if err != nil {
		return dashboardContent{}, err
	}
	presets, err := h.svc.Repository().ListPresets(ctx)
	if err != nil {
		return dashboardContent{}, err
	}
	return dashboardContent{Rolls: rolls, Presets: presets}, nil
}

func (h *Handler) submitRoll(c *fiber.Ctx) error {
	notation := strings.TrimSpace(c.FormValue("notation"))
	req := roll.Request{Notation: notation}

	var formErr string
	if s := strings.TrimSpace(c.FormValue("seed")); s != "" {
		seed, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			formErr = fmt.Sprintf("invalid seed %q", s)
		} else {
			req.Seed = &seed
		}
	}

	if formErr == "" {
		r, err := h.svc.Roll(c.UserContext(), req)
		if err == nil {
			return c.Redirect("/ui/rolls/"+r.ID, fiber.StatusSeeOther)
		}
		formErr = err.Error()
	}

	content, err := h.dashboardContent(c.UserContext())
	if err != nil {
		return err
	}
	content.Notation = notation
	content.Error = formErr
	c.Status(fiber.StatusBadRequest)
	return h.render(c, "dashboard.html", "dashboard", content)
}

func (h *Handler) rollDetail(c *fiber.Ctx) error {
	id := c.Params("id")
	r, err := h.svc.GetRoll(c.UserContext(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.Status(fiber.StatusNotFound)
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Roll '%s' not found", id),
		})
	}
	if err != nil {
		return err
	}
	return h.render(c, "roll_detail.html", "dashboard", rollDetailContent{Roll: r})
}

func (h *Handler) presetList(c *fiber.Ctx) error {
	presets, err := h.svc.Repository().ListPresets(c.UserContext())
	if err != nil {
		return err
	}
	return h.render(c, "preset_list.html", "presets", presetListContent{Presets: presets})
}

func (h *Handler) submitPresetRoll(c *fiber.Ctx) error {
	name := c.Params("name")
	r, err := h.svc.RollPreset(c.UserContext(), name, nil)
	if errors.Is(err, store.ErrNotFound) {
		c.Status(fiber.StatusNotFound)
		return h.render(c, "not_found.html", "", notFoundContent{
			Message: fmt.Sprintf("Preset '%s' not found", name),
		})
	}
	if err != nil {
		presets, lerr := h.svc.Repository().ListPresets(c.UserContext())
		if lerr != nil {
			return lerr
		}
		c.Status(fiber.StatusBadRequest)
		return h.render(c, "preset_list.html", "presets", presetListContent{Presets: presets, Error: err.Error()})
	}
	return c.Redirect("/ui/rolls/"+r.ID, fiber.StatusSeeOther)
}

// --- Template Helpers ---

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return id
}

func timeAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04:05")
}

// dieClass highlights natural minimums and maximums.
func dieClass(e rolllog.Entry) string {
	switch e.Result {
	case e.Sides:
		return "die-max"
	case 1:
		return "die-min"
	default:
		return ""
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
