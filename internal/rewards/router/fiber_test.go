package router

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/SakuraBurst/rewards/internal/rewards/config"
	"github.com/SakuraBurst/rewards/internal/rewards/controller"
	"github.com/SakuraBurst/rewards/internal/rewards/flow"
	"github.com/SakuraBurst/rewards/internal/rewards/selectors"
	"github.com/SakuraBurst/rewards/internal/rewards/session"
	"github.com/SakuraBurst/rewards/internal/rewards/types"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	testSecret = "test-secret"
	testActor  = types.Actor{ID: uuid.New(), Email: "ada@example.com"}
	sticker    = &types.Reward{ID: uuid.New(), Name: "Sticker", PointsRequired: 500, IsActive: true}
)

type fakeController struct {
	balance  int
	canClaim bool
	redeem   *types.RedeemResult
	redeemEr error
	shares   []types.StackShare
}

func (f *fakeController) SignUp(_ context.Context, user *types.UserRequest) (uuid.UUID, error) {
	if user.Email == "taken@example.com" {
		return uuid.Nil, &controller.RemoteError{Message: "An account with this email already exists"}
	}
	return uuid.New(), nil
}

func (f *fakeController) Authorize(_ context.Context, user *types.UserRequest) (string, *types.Actor, error) {
	if user.Password != "hunter22" {
		return "", nil, controller.ErrInvalidCredentials
	}
	token, err := session.Issue(testActor, []byte(testSecret), time.Hour, time.Now())
	return token, &testActor, err
}

func (f *fakeController) SessionTTL() time.Duration { return time.Hour }
func (f *fakeController) Now() time.Time            { return time.Now() }

func (f *fakeController) Summary(_ context.Context, _ uuid.UUID) (*controller.Summary, error) {
	return &controller.Summary{PointsBalance: f.balance, StreakLabel: "0 days"}, nil
}

func (f *fakeController) Catalog(_ context.Context, _ uuid.UUID, filter selectors.Filter) (*controller.Catalog, error) {
	return &controller.Catalog{Filter: filter, PointsBalance: f.balance}, nil
}

func (f *fakeController) Reward(_ context.Context, id uuid.UUID) (*types.Reward, error) {
	if id != sticker.ID {
		return nil, controller.ErrRewardNotExist
	}
	return sticker, nil
}

func (f *fakeController) UserPoints(_ context.Context, userID uuid.UUID) (*types.UserPoints, error) {
	return &types.UserPoints{UserID: userID, PointsBalance: f.balance}, nil
}

func (f *fakeController) Close() error { return nil }

func (f *fakeController) RedeemReward(context.Context, uuid.UUID, uuid.UUID, types.RedemptionData) (*types.RedeemResult, error) {
	return f.redeem, f.redeemEr
}

func (f *fakeController) CanClaimToday(context.Context, uuid.UUID) (bool, error) {
	return f.canClaim, nil
}

func (f *fakeController) UserStreak(context.Context, uuid.UUID) (*types.UserStreak, error) {
	return &types.UserStreak{}, nil
}

func (f *fakeController) ClaimDailyPoints(context.Context, uuid.UUID) (*types.ClaimResult, error) {
	return &types.ClaimResult{Success: true}, nil
}

func (f *fakeController) SubmitStackShare(_ context.Context, _ uuid.UUID, share types.StackShare) (*types.ShareResult, error) {
	f.shares = append(f.shares, share)
	return &types.ShareResult{Success: true}, nil
}

func newTestRouter(t *testing.T, c *fakeController) *HttpRouter {
	t.Helper()
	webRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(webRoot, "index.html"), []byte("<html>rewards</html>"), 0o644))
	cfg := &config.Config{Env: "local", JWTSecret: testSecret, WebRoot: webRoot}
	registry := flow.NewRegistry(c, clockwork.NewRealClock(), time.Minute, zap.NewNop())
	return CreateRouter(c, registry, cfg, zap.NewNop())
}

func token(t *testing.T) string {
	t.Helper()
	tok, err := session.Issue(testActor, []byte(testSecret), time.Hour, time.Now())
	require.NoError(t, err)
	return tok
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func do(t *testing.T, r *HttpRouter, method, path, body string) (*http.Response, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token(t))
	resp, err := r.Test(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env envelope
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp, env
}

func TestProtectedRequiresToken(t *testing.T) {
	r := newTestRouter(t, &fakeController{})
	resp, err := r.Test(httptest.NewRequest(http.MethodGet, "/api/v1/rewards/summary", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestSessionCookieAuthorizesApi(t *testing.T) {
	r := newTestRouter(t, &fakeController{balance: 42})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/rewards/summary", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token(t)})
	resp, err := r.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginSetsCookie(t *testing.T) {
	r := newTestRouter(t, &fakeController{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"email":"ada@example.com","password":"hunter22"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/login", strings.NewReader(`{"email":"ada@example.com","password":"nope"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err = r.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSignUp(t *testing.T) {
	r := newTestRouter(t, &fakeController{})
	resp, _ := do(t, r, http.MethodPost, "/api/v1/signup", `{"email":"new@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env := do(t, r, http.MethodPost, "/api/v1/signup", `{"email":"taken@example.com","password":"pw"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "An account with this email already exists", env.Message)

	resp, _ = do(t, r, http.MethodPost, "/api/v1/signup", `{"email":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCatalogFilterValidation(t *testing.T) {
	r := newTestRouter(t, &fakeController{})
	resp, _ := do(t, r, http.MethodGet, "/api/v1/rewards/catalog?filter=locked", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, r, http.MethodGet, "/api/v1/rewards/catalog?filter=bogus", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRedeemFlowOverHttp(t *testing.T) {
	c := &fakeController{balance: 700, redeem: &types.RedeemResult{Success: true, PointsSpent: func() *int { v := 500; return &v }()}}
	r := newTestRouter(t, c)

	resp, _ := do(t, r, http.MethodPost, "/api/v1/rewards/redeem/confirm", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = do(t, r, http.MethodPost, "/api/v1/rewards/redeem/select", `{"reward_id":"`+uuid.NewString()+`"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = do(t, r, http.MethodPost, "/api/v1/rewards/redeem/select", `{"reward_id":"`+sticker.ID.String()+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := do(t, r, http.MethodPost, "/api/v1/rewards/redeem/confirm", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap flow.RedemptionSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, flow.RedemptionSuccess, snap.State)
	assert.Equal(t, "-500", snap.SpentLabel)

	resp, _ = do(t, r, http.MethodPost, "/api/v1/rewards/redeem/dismiss", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRedeemRemoteFailureIs422(t *testing.T) {
	c := &fakeController{balance: 700, redeemEr: &controller.RemoteError{Message: "Insufficient points"}}
	r := newTestRouter(t, c)
	resp, _ := do(t, r, http.MethodPost, "/api/v1/rewards/redeem/select", `{"reward_id":"`+sticker.ID.String()+`"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := do(t, r, http.MethodPost, "/api/v1/rewards/redeem/confirm", "")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "Insufficient points", env.Message)
}

func TestSelectUnaffordableIsConflict(t *testing.T) {
	r := newTestRouter(t, &fakeController{balance: 10})
	resp, _ := do(t, r, http.MethodPost, "/api/v1/rewards/redeem/select", `{"reward_id":"`+sticker.ID.String()+`"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestClaimAlreadyClaimed(t *testing.T) {
	r := newTestRouter(t, &fakeController{canClaim: false})
	resp, _ := do(t, r, http.MethodGet, "/api/v1/rewards/claim", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = do(t, r, http.MethodPost, "/api/v1/rewards/claim", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestShareOverHttp(t *testing.T) {
	c := &fakeController{}
	r := newTestRouter(t, c)

	resp, env := do(t, r, http.MethodPost, "/api/v1/rewards/share/start", `{"stack_content":" ","platform":"twitter"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, flow.EmptyStackMessage, env.Message)

	resp, _ = do(t, r, http.MethodPost, "/api/v1/rewards/share/start", `{"stack_content":"Go","platform":"myspace"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, r, http.MethodPost, "/api/v1/rewards/share/start", `{"stack_content":"Go","platform":"facebook"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = do(t, r, http.MethodPost, "/api/v1/rewards/share/submit", `{"share_link":""}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, flow.EmptyLinkMessage, env.Message)
	assert.Empty(t, c.shares)

	resp, _ = do(t, r, http.MethodPost, "/api/v1/rewards/share/submit", `{"share_link":"https://fb.com/p/1"}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []types.StackShare{{Content: "Go", Link: "https://fb.com/p/1", Platform: types.PlatformFacebook}}, c.shares)
}

func TestRouteGuardRedirects(t *testing.T) {
	r := newTestRouter(t, &fakeController{})

	get := func(path string, signedIn bool) *http.Response {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if signedIn {
			req.AddCookie(&http.Cookie{Name: session.CookieName, Value: token(t)})
		}
		resp, err := r.Test(req)
		require.NoError(t, err)
		return resp
	}

	resp := get("/rewards", false)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	resp = get("/login", true)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	assert.Equal(t, http.StatusOK, get("/rewards/history", true).StatusCode)
	assert.Equal(t, http.StatusOK, get("/login", false).StatusCode)

	for _, path := range []string{"/REWARDS", "/Rewards/history", "/rewards/"} {
		resp = get(path, false)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/login", resp.Header.Get("Location"), path)
	}
	for _, path := range []string{"/Login", "/login/", "/SIGNUP"} {
		resp = get(path, true)
		assert.Equal(t, http.StatusFound, resp.StatusCode, path)
		assert.Equal(t, "/", resp.Header.Get("Location"), path)
	}
}
