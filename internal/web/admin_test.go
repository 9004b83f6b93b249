package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/navikt/roomboard/internal/bookingapi"
	"github.com/navikt/roomboard/internal/logger"
	"github.com/navikt/roomboard/internal/models"
	"github.com/navikt/roomboard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdminMux(t *testing.T, board BoardServicer) *http.ServeMux {
	t.Helper()
	h, err := NewAdminHandler(board, bangkok, logger.Discard())
	require.NoError(t, err)

	mux := http.NewServeMux()
	h.SetupAdminRoutes(mux)
	return mux
}

func TestAdminDashboard(t *testing.T) {
	generated := time.Date(2025, 3, 14, 3, 0, 0, 0, time.UTC)
	board := new(MockBoardService)
	board.On("Dashboard", testAdmin, bookingapi.Credential("admin-token")).Return(&service.Dashboard{
		Board: models.BoardStats{TotalRooms: 3, OpenRooms: 2, ClosedRooms: 1, OccupiedRooms: 1, ActiveBookings: 1},
		Users: models.AdminStats{TotalUsers: 42, LoginCount: 310},
		Logs: []models.BookingLog{
			{ID: "l1", Action: models.BookingActionCancelled, UserName: "Somchai", Timestamp: models.NewTimestamp(generated),
				Details: &models.BookingLogDetails{Room: "Lab1"}},
		},
		Rooms:       testRooms(),
		GeneratedAt: generated,
	}, nil)

	rec := httptest.NewRecorder()
	newTestAdminMux(t, board).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), testAdmin, "admin-token"))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "<strong>42</strong>")
	assert.Contains(t, body, "<strong>310</strong>")
	assert.Contains(t, body, "Cancelled")
	assert.Contains(t, body, "Lab1")
	assert.Contains(t, body, "2025-03-14 10:00")
	board.AssertExpectations(t)
}

func TestAdminDashboardRequiresAdmin(t *testing.T) {
	board := new(MockBoardService)
	mux := newTestAdminMux(t, board)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), testUser, "token"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	board.AssertNotCalled(t, "Dashboard")
}

func TestAdminDashboardUpstreamError(t *testing.T) {
	board := new(MockBoardService)
	board.On("Dashboard", testAdmin, bookingapi.Credential("admin-token")).
		Return(nil, fmt.Errorf("failed: %w", &bookingapi.APIError{StatusCode: http.StatusTooManyRequests}))

	rec := httptest.NewRecorder()
	newTestAdminMux(t, board).ServeHTTP(rec, withSession(httptest.NewRequest(http.MethodGet, "/admin", nil), testAdmin, "admin-token"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}
