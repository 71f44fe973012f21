package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pbaille/learnlog/internal/api"
	"github.com/pbaille/learnlog/internal/domain"
	"github.com/pbaille/learnlog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outbox records the codes the server would have emailed
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) SendOTP(ctx context.Context, email, code string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.codes == nil {
		o.codes = make(map[string]string)
	}
	o.codes[email] = code
	return nil
}

func (o *outbox) code(email string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[email]
}

func newApp(t *testing.T, opts ...api.Option) (http.Handler, *outbox) {
	t.Helper()

	s, err := store.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	box := &outbox{}
	opts = append([]api.Option{api.WithOTPSender(box)}, opts...)
	return api.New(s, ":0", nil, opts...).Handler(), box
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// signup registers email and verifies it, returning the bearer token
func signup(t *testing.T, h http.Handler, box *outbox, email string) string {
	t.Helper()
	rr := doJSON(t, h, "POST", "/api/auth/signup", "", api.SignupRequest{Email: email, Password: "secret123", Name: "Ada"})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[api.AuthResponse](t, rr)
	require.Empty(t, res.Token)
	require.Equal(t, api.OTPSentMessage, res.Message)

	rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: res.User.ID, EnteredOTP: box.code(email)})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	verified := decode[api.VerifyOTPResponse](t, rr)
	require.True(t, verified.Result)
	return verified.Token
}

func TestAuthFlow(t *testing.T) {
	h, box := newApp(t)
	token := signup(t, h, box, "ada@example.com")
	require.NotEmpty(t, token)

	rr := doJSON(t, h, "POST", "/api/auth/signup", "", api.SignupRequest{Email: "ada@example.com", Password: "secret123"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, "POST", "/api/auth/login", "", api.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = doJSON(t, h, "POST", "/api/auth/login", "", api.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[api.AuthResponse](t, rr)
	assert.Equal(t, "ada@example.com", login.User.Email)
	assert.True(t, login.User.Verified)
	assert.NotEmpty(t, login.Token)

	rr = doJSON(t, h, "GET", "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, "POST", "/api/auth/logout", login.Token, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	rr = doJSON(t, h, "GET", "/api/auth/me", login.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRequiresToken(t *testing.T) {
	h, _ := newApp(t)

	rr := doJSON(t, h, "GET", "/api/resources", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "authentication required", decode[map[string]string](t, rr)["message"])

	rr = doJSON(t, h, "GET", "/api/resources", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCompletionFlow(t *testing.T) {
	h, box := newApp(t)
	token := signup(t, h, box, "ada@example.com")

	rr := doJSON(t, h, "POST", "/api/categories", token, api.CreateCategoryRequest{Name: "Go"})
	require.Equal(t, http.StatusCreated, rr.Code)
	cat := decode[domain.Category](t, rr)

	rr = doJSON(t, h, "POST", "/api/categories", token, api.CreateCategoryRequest{Name: "Go"})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, "POST", "/api/resources", token, domain.ResourceInput{
		Title: "Go blog", Type: "article", Category: cat.ID, EstimatedTime: 20,
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	res := decode[domain.Resource](t, rr)
	assert.Equal(t, domain.TypeArticle, res.Type)

	rr = doJSON(t, h, "POST", "/api/resources/"+res.ID+"/mark-complete", token, domain.CompleteRequest{ActualTimeSpent: 0})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, "POST", "/api/resources/"+res.ID+"/mark-complete", token, domain.CompleteRequest{ActualTimeSpent: 60})
	require.Equal(t, http.StatusOK, rr.Code)
	done := decode[domain.Resource](t, rr)
	assert.True(t, done.IsCompleted)
	require.NotNil(t, done.ActualTimeSpent)
	assert.Equal(t, 60, *done.ActualTimeSpent)

	rr = doJSON(t, h, "POST", "/api/resources/"+res.ID+"/mark-complete", token, domain.CompleteRequest{ActualTimeSpent: 60})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = doJSON(t, h, "GET", "/api/resources/summary", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decode[domain.Summary](t, rr)
	assert.Equal(t, 1, sum.CompletedResources)
	assert.Equal(t, 60, sum.TotalTimeSpent)

	rr = doJSON(t, h, "GET", "/api/categories", token, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	cats := decode[struct {
		Categories []domain.Category `json:"categories"`
	}](t, rr)
	require.Len(t, cats.Categories, 1)
}

func TestResourceValidationAndNotFound(t *testing.T) {
	h, box := newApp(t)
	token := signup(t, h, box, "ada@example.com")

	rr := doJSON(t, h, "POST", "/api/resources", token, domain.ResourceInput{Title: "", Type: domain.TypeBook, Category: "c"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, "POST", "/api/resources", token, domain.ResourceInput{Title: "x", Type: domain.TypeBook, Category: "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, h, "GET", "/api/resources/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, h, "DELETE", "/api/resources/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCORSPreflight(t *testing.T) {
	h, _ := newApp(t)
	rr := doJSON(t, h, "OPTIONS", "/api/resources", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnverifiedLoginGetsChallenge(t *testing.T) {
	h, box := newApp(t)

	rr := doJSON(t, h, "POST", "/api/auth/signup", "", api.SignupRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusCreated, rr.Code)
	first := box.code("ada@example.com")
	require.Len(t, first, 6)

	rr = doJSON(t, h, "POST", "/api/auth/login", "", api.LoginRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rr.Code)
	login := decode[api.AuthResponse](t, rr)
	assert.Empty(t, login.Token)
	assert.Equal(t, api.OTPSentMessage, login.Message)
	assert.Equal(t, "ada@example.com", login.Email)
	assert.False(t, login.User.Verified)

	// signing up again before verifying re-sends instead of conflicting
	rr = doJSON(t, h, "POST", "/api/auth/signup", "", api.SignupRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, api.OTPSentMessage, decode[api.AuthResponse](t, rr).Message)
}

func TestVerifyOTP(t *testing.T) {
	h, box := newApp(t)

	rr := doJSON(t, h, "POST", "/api/auth/signup", "", api.SignupRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusCreated, rr.Code)
	userID := decode[api.AuthResponse](t, rr).User.ID
	old := box.code("ada@example.com")

	wrong := "000000"
	if old == wrong {
		wrong = "111111"
	}
	rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: wrong})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[api.VerifyOTPResponse](t, rr).Result)

	rr = doJSON(t, h, "POST", "/api/auth/generate-otp", "", api.GenerateOTPRequest{UserID: userID})
	require.Equal(t, http.StatusOK, rr.Code)
	fresh := box.code("ada@example.com")

	if old != fresh {
		rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: old})
		require.Equal(t, http.StatusOK, rr.Code)
		assert.False(t, decode[api.VerifyOTPResponse](t, rr).Result, "resend replaces the previous code")
	}

	rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: fresh})
	require.Equal(t, http.StatusOK, rr.Code)
	ok := decode[api.VerifyOTPResponse](t, rr)
	assert.True(t, ok.Result)
	require.NotEmpty(t, ok.Token)
	assert.True(t, ok.User.Verified)

	rr = doJSON(t, h, "GET", "/api/auth/me", ok.Token, nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: fresh})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = doJSON(t, h, "POST", "/api/auth/generate-otp", "", api.GenerateOTPRequest{UserID: userID})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	rr = doJSON(t, h, "POST", "/api/auth/generate-otp", "", api.GenerateOTPRequest{UserID: "missing"})
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestVerifyOTPAttemptLimit(t *testing.T) {
	h, box := newApp(t)

	rr := doJSON(t, h, "POST", "/api/auth/signup", "", api.SignupRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusCreated, rr.Code)
	userID := decode[api.AuthResponse](t, rr).User.ID
	code := box.code("ada@example.com")

	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}
	for range 4 {
		rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: wrong})
		require.Equal(t, http.StatusOK, rr.Code)
	}
	rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: wrong})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// the code is gone after too many guesses
	rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: code})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestExpiredOTP(t *testing.T) {
	h, box := newApp(t, api.WithOTPTTL(-time.Second))

	rr := doJSON(t, h, "POST", "/api/auth/signup", "", api.SignupRequest{Email: "ada@example.com", Password: "secret123"})
	require.Equal(t, http.StatusCreated, rr.Code)
	userID := decode[api.AuthResponse](t, rr).User.ID

	rr = doJSON(t, h, "POST", "/api/auth/verify-otp", "", api.VerifyOTPRequest{UserID: userID, EnteredOTP: box.code("ada@example.com")})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "OTP expired, request a new one", decode[map[string]string](t, rr)["message"])
}
