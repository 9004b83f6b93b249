package web

import (
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/service"
	"github.com/navikt/roomboard/internal/session"
	"github.com/sirupsen/logrus"
)

// AdminHandler manages admin dashboard requests
type AdminHandler struct {
	board     BoardServicer
	templates *template.Template
	log       logrus.FieldLogger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(board BoardServicer, loc *time.Location, log logrus.FieldLogger) (*AdminHandler, error) {
	if loc == nil {
		loc = time.UTC
	}

	tmpl, err := template.New("").Funcs(templateFuncs(loc, "")).
		ParseFS(templateFS, "templates/admin/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse admin templates: %w", err)
	}

	return &AdminHandler{
		board:     board,
		templates: tmpl,
		log:       log,
	}, nil
}

// SetupAdminRoutes registers admin routes on the given mux. Only admins get through.
func (h *AdminHandler) SetupAdminRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /admin", session.RequireRole(models.RoleAdmin, h.handleAdminDashboard))
}

// handleAdminDashboard renders the main admin dashboard
func (h *AdminHandler) handleAdminDashboard(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())

	dashboard, err := h.board.Dashboard(r.Context(), s.Actor, s.Credential)
	if err != nil {
		h.log.WithError(err).Error("Error getting admin dashboard")
		http.Error(w, service.PublicMessage(err), service.HTTPStatus(err))
		return
	}

	viewModel := struct {
		Dashboard *service.Dashboard
		Generated models.Timestamp
	}{
		Dashboard: dashboard,
		Generated: models.NewTimestamp(dashboard.GeneratedAt),
	}

	if err := h.templates.ExecuteTemplate(w, "dashboard.html", viewModel); err != nil {
		// Headers may already be written
		h.log.WithError(err).Error("Error rendering admin template")
	}
}
