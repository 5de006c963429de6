package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ststudios/whitelist/db"
	"github.com/ststudios/whitelist/discord"
	"github.com/ststudios/whitelist/server/sessions"
	"github.com/ststudios/whitelist/types"
	"github.com/ststudios/whitelist/whitelist"
)

type stubSink struct {
	delivered bool
	calls     int
}

func (s *stubSink) Notify(ctx context.Context, app types.Application) bool {
	s.calls++
	return s.delivered
}

type testService struct {
	svc   *Service
	store *db.MemoryStore
	sink  *stubSink
	mgr   *sessions.MemoryManager
}

func newTestService(t *testing.T) *testService {
	t.Helper()
	viper.Set("robloxApiKey", "roblox-secret")

	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	entry := logrus.NewEntry(logger)

	store := db.NewMemoryStore()
	sink := &stubSink{delivered: true}
	workflow := whitelist.NewWorkflow(store, sink, entry)
	mgr := sessions.NewMemoryManager()

	svc := NewService(workflow, mgr, nil, discord.NewClient("test-token", entry), Options{}, entry)
	return &testService{svc: svc, store: store, sink: sink, mgr: mgr}
}

func (ts *testService) login(t *testing.T, userID string, isAdmin bool) *http.Cookie {
	t.Helper()
	id, err := ts.mgr.Create(sessions.Session{
		UserID:   userID,
		Username: "user-" + userID,
		IsAdmin:  isAdmin,
	})
	require.NoError(t, err)
	return &http.Cookie{Name: sessions.CookieName, Value: id}
}

func (ts *testService) do(t *testing.T, method, target string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(raw)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, target, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.svc.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func validForm() map[string]interface{} {
	return map[string]interface{}{
		"roblox":      "PlayerOne",
		"idade":       21,
		"experiencia": strings.Repeat("Já joguei muitos servidores de roleplay. ", 5),
	}
}

func TestSubmitFormRequiresLogin(t *testing.T) {
	ts := newTestService(t)
	rec := ts.do(t, http.MethodPost, "/form", validForm(), nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitFormCreatesApplication(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)

	rec := ts.do(t, http.MethodPost, "/form", validForm(), cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.Contains(t, body["message"], "enviado com sucesso")
	require.NotEmpty(t, body["formId"])

	stored, err := ts.store.FindByApplicantID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusPending, stored.Status)
	assert.Equal(t, "PlayerOne", stored.GameHandle)
}

func TestSubmitFormValidation(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)

	form := validForm()
	form["idade"] = 10
	rec := ts.do(t, http.MethodPost, "/form", form, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "Idade")
}

func TestSubmitFormConflictWhilePending(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/form", validForm(), cookie).Code)
	rec := ts.do(t, http.MethodPost, "/form", validForm(), cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestResubmitAfterRejection(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)
	admin := ts.login(t, "admin-1", true)

	first := decodeBody(t, ts.do(t, http.MethodPost, "/form", validForm(), cookie))
	formID := first["formId"].(string)

	rec := ts.do(t, http.MethodPost, "/admin/action", map[string]interface{}{
		"id":     formID,
		"action": "reject",
		"motivo": "Precisa detalhar mais a experiência.",
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/form", validForm(), cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "reenviado")
	assert.Equal(t, formID, body["formId"])
}

func TestFormData(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)

	body := decodeBody(t, ts.do(t, http.MethodGet, "/form/data", nil, cookie))
	assert.Equal(t, false, body["hasForm"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/form", validForm(), cookie).Code)

	body = decodeBody(t, ts.do(t, http.MethodGet, "/form/data", nil, cookie))
	assert.Equal(t, true, body["hasForm"])
	form := body["form"].(map[string]interface{})
	assert.Equal(t, "pending", form["status"])
}

func TestMeReportsFormSummary(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)

	body := decodeBody(t, ts.do(t, http.MethodGet, "/me", nil, cookie))
	assert.Equal(t, "user-1", body["id"])
	assert.Equal(t, false, body["hasForm"])

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/form", validForm(), cookie).Code)

	body = decodeBody(t, ts.do(t, http.MethodGet, "/me", nil, cookie))
	assert.Equal(t, true, body["hasForm"])
	assert.Equal(t, "pending", body["formStatus"])
	assert.Equal(t, "PlayerOne", body["robloxName"])
}

func TestAdminEndpointsRejectNonAdmins(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)

	rec := ts.do(t, http.MethodGet, "/admin/forms", nil, cookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, decodeBody(t, rec)["error"], "Apenas administradores")
}

func TestAdminListForms(t *testing.T) {
	ts := newTestService(t)
	user := ts.login(t, "user-1", false)
	admin := ts.login(t, "admin-1", true)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/form", validForm(), user).Code)

	rec := ts.do(t, http.MethodGet, "/admin/forms", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	var apps []types.Application
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&apps))
	require.Len(t, apps, 1)
	assert.Equal(t, "user-1", apps[0].ApplicantID)
}

func TestAdminListFormsBadLimit(t *testing.T) {
	ts := newTestService(t)
	admin := ts.login(t, "admin-1", true)
	rec := ts.do(t, http.MethodGet, "/admin/forms?limit=zero", nil, admin)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminActionApprove(t *testing.T) {
	ts := newTestService(t)
	user := ts.login(t, "user-1", false)
	admin := ts.login(t, "admin-1", true)

	submitted := decodeBody(t, ts.do(t, http.MethodPost, "/form", validForm(), user))
	formID := submitted["formId"].(string)

	rec := ts.do(t, http.MethodPost, "/admin/action", map[string]interface{}{
		"id":     formID,
		"action": "approve",
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["delivered"])
	assert.Contains(t, body["message"], "aprovado")
	assert.Equal(t, 1, ts.sink.calls)

	stored, err := ts.store.FindByID(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusApproved, stored.Status)
}

func TestAdminActionCommitsWhenDMFails(t *testing.T) {
	ts := newTestService(t)
	ts.sink.delivered = false
	user := ts.login(t, "user-1", false)
	admin := ts.login(t, "admin-1", true)

	submitted := decodeBody(t, ts.do(t, http.MethodPost, "/form", validForm(), user))
	formID := submitted["formId"].(string)

	rec := ts.do(t, http.MethodPost, "/admin/action", map[string]interface{}{
		"id":     formID,
		"action": "reject",
		"motivo": "Experiência insuficiente para o servidor.",
	}, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["delivered"])

	stored, err := ts.store.FindByID(context.Background(), formID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusRejected, stored.Status)
}

func TestAdminActionUnknownForm(t *testing.T) {
	ts := newTestService(t)
	admin := ts.login(t, "admin-1", true)

	rec := ts.do(t, http.MethodPost, "/admin/action", map[string]interface{}{
		"id":     "999",
		"action": "approve",
	}, admin)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStats(t *testing.T) {
	ts := newTestService(t)
	user := ts.login(t, "user-1", false)
	admin := ts.login(t, "admin-1", true)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/form", validForm(), user).Code)

	rec := ts.do(t, http.MethodGet, "/admin/stats", nil, admin)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats []types.StatusCount
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&stats))
	require.Len(t, stats, 3)
	for _, row := range stats {
		if row.Status == types.StatusPending {
			assert.Equal(t, int64(1), row.Count)
		}
	}
}

func TestRobloxWhitelistRequiresAPIKey(t *testing.T) {
	ts := newTestService(t)
	rec := ts.do(t, http.MethodGet, "/api/roblox/whitelist?userId=user-1", nil, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRobloxWhitelistLookup(t *testing.T) {
	ts := newTestService(t)
	user := ts.login(t, "user-1", false)
	admin := ts.login(t, "admin-1", true)

	submitted := decodeBody(t, ts.do(t, http.MethodPost, "/form", validForm(), user))
	formID := submitted["formId"].(string)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/admin/action", map[string]interface{}{
		"id":     formID,
		"action": "approve",
	}, admin).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/roblox/whitelist?userId=user-1", nil)
	req.Header.Set("Authorization", "roblox-secret")
	rec := httptest.NewRecorder()
	ts.svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["whitelisted"])
	assert.Equal(t, "PlayerOne", body["roblox"])

	req = httptest.NewRequest(http.MethodGet, "/api/roblox/whitelist?userId=ghost", nil)
	req.Header.Set("Authorization", "roblox-secret")
	rec = httptest.NewRecorder()
	ts.svc.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["whitelisted"])
}

func TestHealth(t *testing.T) {
	ts := newTestService(t)
	rec := ts.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "online", decodeBody(t, rec)["status"])
}

func TestSystemStatus(t *testing.T) {
	ts := newTestService(t)
	rec := ts.do(t, http.MethodGet, "/api/status", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["online"])
	assert.Equal(t, float64(0), body["totalForms"])
}

func TestLogout(t *testing.T) {
	ts := newTestService(t)
	cookie := ts.login(t, "user-1", false)

	rec := ts.do(t, http.MethodPost, "/logout", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
