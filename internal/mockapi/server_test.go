package mockapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalink/health-client/internal/domain"
	"vitalink/health-client/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	*Server
	http   *httptest.Server
	userID uuid.UUID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := NewServer("test-secret", 15*time.Minute, time.Hour, logging.Nop())
	userID, err := s.SeedUser("demo@vitalink.test", "demo1234")
	require.NoError(t, err)
	ts := httptest.NewServer(s.Engine())
	t.Cleanup(ts.Close)
	return &testServer{Server: s, http: ts, userID: userID}
}

func (ts *testServer) login(t *testing.T, username, password string) (access, refresh string, status int) {
	t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	resp, err := http.PostForm(ts.http.URL+"/api/v1/auth/login", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", resp.StatusCode
	}
	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	return pair.AccessToken, pair.RefreshToken, resp.StatusCode
}

func (ts *testServer) request(t *testing.T, method, path, access string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.http.URL+"/api/v1"+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func detail(t *testing.T, body []byte) string {
	t.Helper()
	var envelope struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(body, &envelope))
	return envelope.Detail
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	access, refresh, status := ts.login(t, "demo@vitalink.test", "demo1234")
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refresh)
	assert.NotEqual(t, access, refresh)

	_, _, status = ts.login(t, "demo@vitalink.test", "wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	_, _, status = ts.login(t, "nobody@vitalink.test", "demo1234")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestRefreshRotation(t *testing.T) {
	ts := newTestServer(t)
	_, refresh, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	// First use succeeds and yields a new pair.
	resp, body := ts.request(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var pair struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	require.NoError(t, json.Unmarshal(body, &pair))
	assert.NotEqual(t, refresh, pair.RefreshToken)

	// Replaying the consumed token fails.
	resp, body = ts.request(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid refresh token", detail(t, body))

	// The rotated token still works.
	resp, _ = ts.request(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": pair.RefreshToken})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	resp, _ := ts.request(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": access})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.request(t, http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Authorization header is missing", detail(t, body))

	resp, _ = ts.request(t, http.MethodGet, "/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestMe(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	resp, body := ts.request(t, http.MethodGet, "/auth/me", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var me struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
	}
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, ts.userID, me.ID)
	assert.Equal(t, "demo@vitalink.test", me.Email)
}

func TestCreateMetric(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	resp, body := ts.request(t, http.MethodPost, "/health-metrics/", access, map[string]any{
		"user_id":     ts.userID,
		"date":        "2024-03-10",
		"metric_type": "sleep",
		"value":       map[string]any{"duration_hours": 7.5},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var record domain.MetricRecord
	require.NoError(t, json.Unmarshal(body, &record))
	assert.Equal(t, "manual", record.Source)
	assert.Equal(t, domain.NewDate(2024, 3, 10), record.Date)

	// Other user's id is forbidden.
	resp, _ = ts.request(t, http.MethodPost, "/health-metrics/", access, map[string]any{
		"user_id":     uuid.New(),
		"metric_type": "sleep",
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Unknown type is unprocessable.
	resp, body = ts.request(t, http.MethodPost, "/health-metrics/", access, map[string]any{
		"user_id":     ts.userID,
		"metric_type": "bogus",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, detail(t, body), "Invalid metric type")
}

func TestListMetricsFilters(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	for day := 1; day <= 5; day++ {
		ts.SeedMetric(domain.MetricRecord{
			UserID:  ts.userID,
			Date:    domain.NewDate(2024, 3, day),
			Type:    domain.MetricSleep,
			Payload: map[string]any{"duration_hours": 7.0},
		})
	}
	ts.SeedMetric(domain.MetricRecord{
		UserID: ts.userID,
		Date:   domain.NewDate(2024, 3, 3),
		Type:   domain.MetricActivity,
	})

	list := func(query string) []domain.MetricRecord {
		resp, body := ts.request(t, http.MethodGet,
			fmt.Sprintf("/health-metrics/user/%s%s", ts.userID, query), access, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var records []domain.MetricRecord
		require.NoError(t, json.Unmarshal(body, &records))
		return records
	}

	assert.Len(t, list(""), 6)
	assert.Len(t, list("?metric_type=sleep"), 5)

	// Date bounds are inclusive on both ends.
	ranged := list("?start_date=2024-03-02&end_date=2024-03-04")
	assert.Len(t, ranged, 4)

	assert.Len(t, list("?metric_type=sleep&skip=2&limit=2"), 2)

	// Negative paging values are treated as zero, never a server error.
	assert.Len(t, list("?skip=-1&limit=-5"), 6)
	assert.Len(t, list("?skip=-3"), 6)

	// Another user's metrics are off limits.
	resp, _ := ts.request(t, http.MethodGet, "/health-metrics/user/"+uuid.NewString(), access, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestTemplateCatalog(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	resp, body := ts.request(t, http.MethodGet, "/protocols/templates", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var templates []domain.ProtocolTemplate
	require.NoError(t, json.Unmarshal(body, &templates))
	require.NotEmpty(t, templates)

	resp, body = ts.request(t, http.MethodGet, "/protocols/templates?category=sleep", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &templates))
	for _, template := range templates {
		assert.Equal(t, "sleep", template.Category)
	}

	resp, body = ts.request(t, http.MethodGet, "/protocols/templates/sleep_optimization", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var template domain.ProtocolTemplate
	require.NoError(t, json.Unmarshal(body, &template))
	assert.Equal(t, "sleep_optimization", template.ID)
	require.NotNil(t, template.DurationDays)
	assert.Equal(t, 21, *template.DurationDays)

	resp, body = ts.request(t, http.MethodGet, "/protocols/templates/no_such_template", access, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Protocol template not found", detail(t, body))
}

func TestEnrollmentLifecycle(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	days := 21
	templateID := "sleep_optimization"
	resp, body := ts.request(t, http.MethodPost, "/user-protocols/enroll", access, map[string]any{
		"name":          "Sleep Optimization",
		"start_date":    "2024-03-01",
		"template_id":   templateID,
		"duration_days": days,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enrollment domain.ProtocolEnrollment
	require.NoError(t, json.Unmarshal(body, &enrollment))
	assert.Equal(t, domain.StatusActive, enrollment.Status)
	require.NotNil(t, enrollment.TemplateID)
	assert.Equal(t, templateID, *enrollment.TemplateID)

	// Shows up in the active set.
	resp, body = ts.request(t, http.MethodGet, "/user-protocols/active", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var active []domain.ProtocolEnrollment
	require.NoError(t, json.Unmarshal(body, &active))
	require.Len(t, active, 1)

	// Complete it; the end date is stamped.
	resp, body = ts.request(t, http.MethodPut, "/user-protocols/"+enrollment.ID.String()+"/status", access,
		map[string]string{"status": "completed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &enrollment))
	assert.Equal(t, domain.StatusCompleted, enrollment.Status)
	require.NotNil(t, enrollment.EndDate)

	// A second transition off the terminal state is rejected.
	resp, body = ts.request(t, http.MethodPut, "/user-protocols/"+enrollment.ID.String()+"/status", access,
		map[string]string{"status": "abandoned"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid status", detail(t, body))

	// Gone from the active set, still listed under its status.
	resp, body = ts.request(t, http.MethodGet, "/user-protocols/active", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(body, &active))
	assert.Empty(t, active)

	resp, body = ts.request(t, http.MethodGet, "/user-protocols/?status=completed", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var completed []domain.ProtocolEnrollment
	require.NoError(t, json.Unmarshal(body, &completed))
	assert.Len(t, completed, 1)
}

func TestCreateAndEnroll(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	resp, body := ts.request(t, http.MethodPost, "/user-protocols/create-and-enroll", access, map[string]any{
		"name":          "My Morning Routine",
		"duration_days": 14,
		"start_date":    "2024-03-01",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enrollment domain.ProtocolEnrollment
	require.NoError(t, json.Unmarshal(body, &enrollment))
	assert.Nil(t, enrollment.TemplateID)
	require.NotNil(t, enrollment.DurationDays)
	assert.Equal(t, 14, *enrollment.DurationDays)
}

func TestConcurrentEnrollmentReadsDuringStatusUpdate(t *testing.T) {
	ts := newTestServer(t)
	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")

	resp, body := ts.request(t, http.MethodPost, "/user-protocols/enroll", access, map[string]any{
		"name": "Sleep Optimization",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enrollment domain.ProtocolEnrollment
	require.NoError(t, json.Unmarshal(body, &enrollment))
	path := "/user-protocols/" + enrollment.ID.String()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := ts.request(t, http.MethodGet, path, access, nil)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		resp, _ := ts.request(t, http.MethodPut, path+"/status", access, map[string]string{"status": "completed"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}()
	wg.Wait()
}

func TestEnrollmentOwnership(t *testing.T) {
	ts := newTestServer(t)
	otherID, err := ts.SeedUser("other@vitalink.test", "other1234")
	require.NoError(t, err)
	_ = otherID

	access, _, _ := ts.login(t, "demo@vitalink.test", "demo1234")
	otherAccess, _, _ := ts.login(t, "other@vitalink.test", "other1234")

	resp, body := ts.request(t, http.MethodPost, "/user-protocols/enroll", access, map[string]any{
		"name": "Mine",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var enrollment domain.ProtocolEnrollment
	require.NoError(t, json.Unmarshal(body, &enrollment))

	resp, _ = ts.request(t, http.MethodGet, "/user-protocols/"+enrollment.ID.String(), otherAccess, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.request(t, http.MethodDelete, "/user-protocols/"+enrollment.ID.String(), otherAccess, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = ts.request(t, http.MethodDelete, "/user-protocols/"+enrollment.ID.String(), access, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = ts.request(t, http.MethodGet, "/user-protocols/"+enrollment.ID.String(), access, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExpiredAccessToken(t *testing.T) {
	s := NewServer("test-secret", time.Minute, time.Hour, logging.Nop())
	s.accessTTL = -time.Minute // issued tokens are already expired
	_, err := s.SeedUser("demo@vitalink.test", "demo1234")
	require.NoError(t, err)
	ts := httptest.NewServer(s.Engine())
	defer ts.Close()

	form := url.Values{"username": {"demo@vitalink.test"}, "password": {"demo1234"}}
	resp, err := http.PostForm(ts.URL+"/api/v1/auth/login", form)
	require.NoError(t, err)
	var pair struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	resp.Body.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/auth/me", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var envelope struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	assert.True(t, strings.Contains(envelope.Detail, "expired") || strings.Contains(envelope.Detail, "Token"))
}
