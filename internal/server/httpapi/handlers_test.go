package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/usersvc/internal/common"
	"github.com/dmitrijs2005/usersvc/internal/logging"
	"github.com/dmitrijs2005/usersvc/internal/server/auth"
	"github.com/dmitrijs2005/usersvc/internal/server/models"
	"github.com/dmitrijs2005/usersvc/internal/server/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubUsers struct {
	created   models.NewUser
	createRes *services.CreateResult
	createErr error
	found     *models.User
	findErr   error
	calls     int
}

func (s *stubUsers) Create(_ context.Context, nu models.NewUser) (*services.CreateResult, error) {
	s.calls++
	s.created = nu
	return s.createRes, s.createErr
}

func (s *stubUsers) FindOne(_ context.Context, id int64) (*models.User, error) {
	s.calls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.found, nil
}

type stubAvatars struct {
	res       *services.AvatarResult
	getErr    error
	deleted   bool
	deleteErr error
	lastID    int64
	hadDL     bool
}

func (s *stubAvatars) GetOrPopulate(ctx context.Context, userID int64) (*services.AvatarResult, error) {
	s.lastID = userID
	_, s.hadDL = ctx.Deadline()
	return s.res, s.getErr
}

func (s *stubAvatars) Delete(_ context.Context, userID int64) (bool, error) {
	s.lastID = userID
	return s.deleted, s.deleteErr
}

func newTestServer(t *testing.T, secret string, us *stubUsers, as *stubAvatars) *Server {
	t.Helper()
	return NewServer(Options{RequestTimeout: time.Second, SecretKey: secret}, logging.Discard(), us, as)
}

func do(t *testing.T, s *Server, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func johnDoe() *models.User {
	return &models.User{ID: 1, UserFields: models.UserFields{
		Email: "test@example.com", FirstName: "John", LastName: "Doe", Avatar: "https://example.com/avatar.png",
	}}
}

const johnDoeBody = `{"email":"test@example.com","first_name":"John","last_name":"Doe","avatar":"https://example.com/avatar.png"}`

func TestHealthz(t *testing.T) {
	s := newTestServer(t, "", &stubUsers{}, &stubAvatars{})
	rr := do(t, s, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(headerRequestID))
}

func TestRequestID_IsEchoed(t *testing.T) {
	s := newTestServer(t, "", &stubUsers{}, &stubAvatars{})
	rr := do(t, s, http.MethodGet, "/healthz", "", map[string]string{headerRequestID: "req-42"})
	assert.Equal(t, "req-42", rr.Header().Get(headerRequestID))
}

func TestCreateUser_Created(t *testing.T) {
	us := &stubUsers{createRes: &services.CreateResult{
		User: johnDoe(),
		SideEffects: []services.SideEffectOutcome{
			{Name: services.SideEffectWelcomeEmail},
			{Name: services.SideEffectUserCreated},
		},
	}}
	s := newTestServer(t, "", us, &stubAvatars{})

	rr := do(t, s, http.MethodPost, "/api/users", johnDoeBody, nil)

	require.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"id":1,"email":"test@example.com","first_name":"John","last_name":"Doe",
		"avatar":"https://example.com/avatar.png","partial":false}`, rr.Body.String())
	assert.Equal(t, "John", us.created.FirstName)
}

func TestCreateUser_PartialSuccess(t *testing.T) {
	us := &stubUsers{createRes: &services.CreateResult{
		User: johnDoe(),
		SideEffects: []services.SideEffectOutcome{
			{Name: services.SideEffectWelcomeEmail, Err: errors.New("smtp down")},
			{Name: services.SideEffectUserCreated},
		},
	}}
	s := newTestServer(t, "", us, &stubAvatars{})

	rr := do(t, s, http.MethodPost, "/api/users", johnDoeBody, nil)

	require.Equal(t, http.StatusCreated, rr.Code)
	out := decode(t, rr)
	assert.Equal(t, true, out["partial"])
	assert.Equal(t, []any{services.SideEffectWelcomeEmail}, out["failed_side_effects"])
}

func TestCreateUser_BadInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"malformed json", `{"email":`},
		{"invalid email", `{"email":"nope","first_name":"John","last_name":"Doe","avatar":"https://example.com/a.png"}`},
		{"missing avatar", `{"email":"a@b.io","first_name":"John","last_name":"Doe"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			us := &stubUsers{}
			s := newTestServer(t, "", us, &stubAvatars{})

			rr := do(t, s, http.MethodPost, "/api/users", tt.body, nil)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Zero(t, us.calls)
			out := decode(t, rr)
			assert.Equal(t, "validation_error", out["error"].(map[string]any)["code"])
		})
	}
}

func TestCreateUser_ServiceErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"upstream", fmt.Errorf("%w: 500", common.ErrUpstreamUnavailable), http.StatusServiceUnavailable},
		{"duplicate", fmt.Errorf("%w: %w", common.ErrStorageFault, common.ErrAlreadyExists), http.StatusConflict},
		{"storage", fmt.Errorf("%w: disk", common.ErrStorageFault), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "", &stubUsers{createErr: tt.err}, &stubAvatars{})
			rr := do(t, s, http.MethodPost, "/api/users", johnDoeBody, nil)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}

func TestCreateUser_BearerGuard(t *testing.T) {
	secret := "s3cr3t"
	us := &stubUsers{createRes: &services.CreateResult{User: johnDoe()}}
	s := newTestServer(t, secret, us, &stubAvatars{})

	rr := do(t, s, http.MethodPost, "/api/users", johnDoeBody, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = do(t, s, http.MethodPost, "/api/users", johnDoeBody, map[string]string{"Authorization": "Bearer garbage"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, us.calls)

	tok, err := auth.GenerateToken("ops", []byte(secret), time.Minute)
	require.NoError(t, err)
	rr = do(t, s, http.MethodPost, "/api/users", johnDoeBody, map[string]string{"Authorization": "Bearer " + tok})
	assert.Equal(t, http.StatusCreated, rr.Code)
}

func TestGetUser(t *testing.T) {
	s := newTestServer(t, "", &stubUsers{found: johnDoe()}, &stubAvatars{})
	rr := do(t, s, http.MethodGet, "/api/users/1", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "test@example.com", decode(t, rr)["email"])

	s = newTestServer(t, "", &stubUsers{findErr: common.ErrNotFound}, &stubAvatars{})
	rr = do(t, s, http.MethodGet, "/api/users/2", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserIDParam_Rejected(t *testing.T) {
	for _, id := range []string{"abc", "0", "-3", "1.5", "99999999999999999999"} {
		t.Run(id, func(t *testing.T) {
			as := &stubAvatars{}
			s := newTestServer(t, "", &stubUsers{}, as)
			rr := do(t, s, http.MethodGet, "/api/users/"+id+"/avatar", "", nil)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			assert.Zero(t, as.lastID)
		})
	}
}

func TestGetAvatar(t *testing.T) {
	as := &stubAvatars{res: &services.AvatarResult{
		Image:  "bW9ja0ltYWdlRGF0YQ==",
		Status: services.CacheMiss,
		Digest: "abc123",
	}}
	s := newTestServer(t, "", &stubUsers{}, as)

	rr := do(t, s, http.MethodGet, "/api/users/7/avatar", "", nil)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"image":"bW9ja0ltYWdlRGF0YQ==","cache":"miss"}`, rr.Body.String())
	assert.Equal(t, "miss", rr.Header().Get("X-Cache"))
	assert.Equal(t, `"abc123"`, rr.Header().Get("ETag"))
	assert.Equal(t, int64(7), as.lastID)
	assert.True(t, as.hadDL)
}

func TestGetAvatar_Errors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"remote user absent", common.ErrNotFound, http.StatusNotFound, "not_found"},
		{"upstream", common.ErrUpstreamUnavailable, http.StatusServiceUnavailable, "upstream_unavailable"},
		{"consistency", common.ErrConsistencyFault, http.StatusInternalServerError, "consistency_fault"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, "", &stubUsers{}, &stubAvatars{getErr: tt.err})
			rr := do(t, s, http.MethodGet, "/api/users/1/avatar", "", nil)
			assert.Equal(t, tt.status, rr.Code)
			assert.Equal(t, tt.code, decode(t, rr)["error"].(map[string]any)["code"])
		})
	}
}

func TestDeleteAvatar(t *testing.T) {
	s := newTestServer(t, "", &stubUsers{}, &stubAvatars{deleted: true})
	rr := do(t, s, http.MethodDelete, "/api/users/1/avatar", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"success":true,"message":"Avatar successfully deleted."}`, rr.Body.String())

	s = newTestServer(t, "", &stubUsers{}, &stubAvatars{deleted: false})
	rr = do(t, s, http.MethodDelete, "/api/users/1/avatar", "", nil)
	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.JSONEq(t, `{"success":false}`, rr.Body.String())

	s = newTestServer(t, "", &stubUsers{}, &stubAvatars{deleteErr: common.ErrStorageFault})
	rr = do(t, s, http.MethodDelete, "/api/users/1/avatar", "", nil)
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestDeleteAvatar_RequiresTokenWhenSecretSet(t *testing.T) {
	as := &stubAvatars{deleted: true, res: &services.AvatarResult{Image: "eA==", Status: services.CacheHit}}
	s := newTestServer(t, "k", &stubUsers{}, as)

	rr := do(t, s, http.MethodDelete, "/api/users/1/avatar", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, as.lastID)

	rr = do(t, s, http.MethodGet, "/api/users/1/avatar", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{common.ErrValidation, http.StatusBadRequest},
		{common.ErrNotFound, http.StatusNotFound},
		{common.ErrAlreadyExists, http.StatusConflict},
		{common.ErrUnauthorized, http.StatusUnauthorized},
		{common.ErrInvalidToken, http.StatusUnauthorized},
		{common.ErrUpstreamUnavailable, http.StatusServiceUnavailable},
		{common.ErrConsistencyFault, http.StatusInternalServerError},
		{common.ErrStorageFault, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := statusFor(fmt.Errorf("wrapped: %w", tt.err))
		assert.Equal(t, tt.status, got, tt.err.Error())
	}
}
