// Package v1 exposes the preference sync core to the dashboard UI over a
// thin REST surface. Session mechanics live in front of this router; the
// acting user arrives resolved in a header.
package v1

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/daybreakhq/daybreak/internal/errors"
	"github.com/daybreakhq/daybreak/internal/profile"
	"github.com/daybreakhq/daybreak/server/service/preference"
	"github.com/daybreakhq/daybreak/server/timezone"
	"github.com/daybreakhq/daybreak/store"
)

// UserHeader carries the resolved user identifier, set by the auth layer
// in front of this router.
const UserHeader = "X-Daybreak-User"

// APIV1Service wires the preference repository and update coordinator
// into the REST surface consumed by the dashboard.
type APIV1Service struct {
	Profile     *profile.Profile
	Store       *store.Store
	Repository  *preference.Repository
	Coordinator *preference.Coordinator
}

// NewAPIV1Service creates the v1 API service.
func NewAPIV1Service(profile *profile.Profile, st *store.Store, repo *preference.Repository, coordinator *preference.Coordinator) *APIV1Service {
	return &APIV1Service{
		Profile:     profile,
		Store:       st,
		Repository:  repo,
		Coordinator: coordinator,
	}
}

// RegisterRoutes registers the v1 routes on the echo server.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	group := echoServer.Group("/api/v1")
	group.GET("/preferences", s.getPreferences)
	group.PATCH("/preferences", s.updatePreferences)
	group.POST("/preferences/test-call", s.testCall)
}

// preferenceResponse is a preference record annotated with the
// server-computed next firing of the daily call.
type preferenceResponse struct {
	*store.PreferenceRecord
	NextCallAt *time.Time `json:"nextCallAt,omitempty"`
}

// buildPreferenceResponse annotates a record with the next scheduled call.
// NextCallAt is omitted when calls are disabled, when every weekday is
// masked out, or when the record does not resolve to a schedule.
func buildPreferenceResponse(record *store.PreferenceRecord) preferenceResponse {
	resp := preferenceResponse{PreferenceRecord: record}
	if !record.Enabled {
		return resp
	}
	loc, err := timezone.ParseTimezone(record.Timezone)
	if err != nil {
		return resp
	}
	next, err := timezone.NextScheduledCall(timezone.NowInTimezone(loc), record.Time, loc, record.Weekdays)
	if err != nil || next.IsZero() {
		return resp
	}
	resp.NextCallAt = &next
	return resp
}

// getPreferences always answers 200 with a usable record; the read path
// never surfaces an error state to the UI.
func (s *APIV1Service) getPreferences(c echo.Context) error {
	userID, err := s.resolveUser(c)
	if err != nil {
		return err
	}
	record := s.Repository.GetPreferences(c.Request().Context(), userID)
	return c.JSON(http.StatusOK, buildPreferenceResponse(record))
}

func (s *APIV1Service) updatePreferences(c echo.Context) error {
	userID, err := s.resolveUser(c)
	if err != nil {
		return err
	}

	delta := &store.PreferenceDelta{}
	if err := c.Bind(delta); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed delta payload")
	}

	record, err := s.Coordinator.Mutate(c.Request().Context(), userID, delta)
	if err != nil {
		return echo.NewHTTPError(statusForError(err), err.Error())
	}
	return c.JSON(http.StatusOK, buildPreferenceResponse(record))
}

type testCallResponse struct {
	Success     bool   `json:"success"`
	ReferenceID string `json:"callReferenceId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// testCall reports failure in the body rather than the status line; the
// operation itself always resolves.
func (s *APIV1Service) testCall(c echo.Context) error {
	userID, err := s.resolveUser(c)
	if err != nil {
		return err
	}

	result := s.Coordinator.TestCall(c.Request().Context(), userID)
	resp := testCallResponse{
		Success:     result.Success,
		ReferenceID: result.ReferenceID,
	}
	if result.Err != nil {
		resp.Error = result.Err.Error()
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) resolveUser(c echo.Context) (string, error) {
	userID := c.Request().Header.Get(UserHeader)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing user header")
	}
	return userID, nil
}

func statusForError(err error) int {
	switch errors.GetCodeFromError(err, errors.ErrCodeTransport) {
	case errors.ErrCodeValidation:
		return http.StatusBadRequest
	case errors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
