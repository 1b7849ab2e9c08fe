package hrest

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"ledger-service/internal/domain"
	"ledger-service/internal/repository/memory"
	"ledger-service/internal/usecase"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testToken = "secret-token"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	registry, err := domain.NewOperationRegistry(domain.SharedOperations(), domain.AppOperations())
	require.NoError(t, err)

	uc := usecase.NewLedgerUsecase(memory.NewMemoryEntryStore(), registry, rdb, nil, zap.NewNop())
	h := NewLedgerRestHandler(uc, testToken, zap.NewNop())

	ts := httptest.NewServer(h.Router())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any, wantCode int, out any) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Token", token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, wantCode, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}

func postOperation(t *testing.T, ts *httptest.Server, owner string, kind, nonce string, wantCode int) statusEnvelope {
	t.Helper()
	var env statusEnvelope
	doJSON(t, http.MethodPost, ts.URL+"/ledger", testToken, map[string]string{
		"operation": kind,
		"nonce":     nonce,
		"owner_id":  owner,
	}, wantCode, &env)
	return env
}

func TestHealthz_NoAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	var out map[string]string
	doJSON(t, http.MethodGet, ts.URL+"/healthz", "", nil, http.StatusOK, &out)
	assert.Equal(t, "ok", out["status"])
}

func TestAuth_MissingOrWrongToken(t *testing.T) {
	ts := newTestServer(t)

	var env statusEnvelope
	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1", "", nil, http.StatusUnauthorized, &env)
	assert.Equal(t, "unauthorized", env.Desc)

	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1", "wrong-token", nil, http.StatusUnauthorized, &env)
	assert.Equal(t, "unauthorized", env.Desc)
	assert.Equal(t, "X-Token header invalid", env.Msg)
}

func TestGetBalance_UserNotFound(t *testing.T) {
	ts := newTestServer(t)

	var env statusEnvelope
	doJSON(t, http.MethodGet, ts.URL+"/ledger/ghost", testToken, nil, http.StatusNotFound, &env)
	assert.Equal(t, 404, env.Status)
	assert.Equal(t, "not-found", env.Desc)
	assert.Equal(t, "User not found!", env.Msg)
	assert.NotEmpty(t, env.Nonce)
}

func TestLedgerFlow_EndToEnd(t *testing.T) {
	ts := newTestServer(t)

	// Signup creates the account.
	env := postOperation(t, ts, "u1", "SIGNUP_CREDIT", "k1", http.StatusCreated)
	assert.Equal(t, 201, env.Status)
	assert.Equal(t, "created", env.Desc)
	assert.Equal(t, "Ledger operation succesfully completed!", env.Msg)

	var balance domain.Balance
	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1", testToken, nil, http.StatusOK, &balance)
	assert.Equal(t, "u1", balance.AccountID)
	assert.Equal(t, int64(3), balance.Amount)

	// Daily reward on the existing account.
	postOperation(t, ts, "u1", "DAILY_REWARD", "k2", http.StatusCreated)

	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1", testToken, nil, http.StatusOK, &balance)
	assert.Equal(t, int64(4), balance.Amount)
}

func TestApply_NonCreatingOpOnUnknownUser(t *testing.T) {
	ts := newTestServer(t)

	env := postOperation(t, ts, "ghost", "DAILY_REWARD", "k1", http.StatusNotFound)
	assert.Equal(t, "not-found", env.Desc)
	assert.Equal(t, "User not found!", env.Msg)
}

func TestApply_DuplicateOperationConflict(t *testing.T) {
	ts := newTestServer(t)

	postOperation(t, ts, "u1", "SIGNUP_CREDIT", "k1", http.StatusCreated)
	env := postOperation(t, ts, "u1", "SIGNUP_CREDIT", "k1", http.StatusConflict)
	assert.Equal(t, 409, env.Status)
	assert.Equal(t, "conflict", env.Desc)
	assert.Equal(t, "Ledger operation is already done!", env.Msg)

	// Replay left the balance untouched.
	var balance domain.Balance
	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1", testToken, nil, http.StatusOK, &balance)
	assert.Equal(t, int64(3), balance.Amount)
}

func TestApply_InsufficientCredit(t *testing.T) {
	ts := newTestServer(t)

	postOperation(t, ts, "u1", "SIGNUP_CREDIT", "k1", http.StatusCreated)

	// Balance 3: CONTENT_CREATION costs 5.
	env := postOperation(t, ts, "u1", "CONTENT_CREATION", "k2", http.StatusNotAcceptable)
	assert.Equal(t, 406, env.Status)
	assert.Equal(t, "not-acceptable", env.Desc)
	assert.Equal(t, "Not enought credit!", env.Msg)

	var balance domain.Balance
	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1", testToken, nil, http.StatusOK, &balance)
	assert.Equal(t, int64(3), balance.Amount)
}

func TestApply_BadRequests(t *testing.T) {
	ts := newTestServer(t)

	env := postOperation(t, ts, "u1", "CREDIT_STEAL", "k1", http.StatusBadRequest)
	assert.Equal(t, "bad-request", env.Desc)

	env = postOperation(t, ts, "u1", "SIGNUP_CREDIT", "", http.StatusBadRequest)
	assert.Equal(t, "bad-request", env.Desc)

	var out statusEnvelope
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/ledger", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("X-Token", testToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Invalid request body!", out.Msg)
}

func TestListEntries(t *testing.T) {
	ts := newTestServer(t)

	var env statusEnvelope
	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1/entries", testToken, nil, http.StatusNotFound, &env)
	assert.Equal(t, "not-found", env.Desc)

	postOperation(t, ts, "u1", "SIGNUP_CREDIT", "k1", http.StatusCreated)
	postOperation(t, ts, "u1", "CREDIT_ADD", "k2", http.StatusCreated)
	postOperation(t, ts, "u1", "CREDIT_SPEND", "k3", http.StatusCreated)

	var out struct {
		OwnerID string               `json:"owner_id"`
		Entries []domain.LedgerEntry `json:"entries"`
	}
	doJSON(t, http.MethodGet, ts.URL+"/ledger/u1/entries", testToken, nil, http.StatusOK, &out)
	assert.Equal(t, "u1", out.OwnerID)
	require.Len(t, out.Entries, 3)
	assert.Equal(t, int64(3), out.Entries[0].BalanceAfter)
	assert.Equal(t, int64(13), out.Entries[1].BalanceAfter)
	assert.Equal(t, int64(12), out.Entries[2].BalanceAfter)
}
