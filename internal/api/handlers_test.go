// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/warden/internal/access"
	"github.com/holomush/warden/internal/access/accesstest"
	"github.com/holomush/warden/internal/api"
	"github.com/holomush/warden/internal/observability"
	"github.com/holomush/warden/internal/store"
)

type testAPI struct {
	fixture *accesstest.Fixture
	metrics *observability.Metrics
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	f := accesstest.WithAdmin(t, "root")
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return &testAPI{
		fixture: f,
		metrics: metrics,
		handler: api.NewHandler(f.Service, metrics, nil).Router(),
	}
}

func (a *testAPI) do(t *testing.T, method, path, caller string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if caller != "" {
		req.Header.Set(api.CallerHeader, caller)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func assertAPIError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	assert.Equal(t, status, rec.Code, rec.Body.String())
	assert.Equal(t, code, decodeBody[errorEnvelope](t, rec).Error.Code)
}

func TestAPI_SetAndGetHolder(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPut, "/v1/roles/RewardsAdmin/holder", "root", map[string]string{"identity": "u"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/roles/RewardsAdmin/holder", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[map[string]string](t, rec)
	assert.Equal(t, "u", got["holder"])

	rec = a.do(t, http.MethodGet, "/v1/roles/RewardsAdmin/members/u", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody[map[string]any](t, rec)["has_role"])

	rec = a.do(t, http.MethodGet, "/v1/roles/Admin/members/u", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody[map[string]any](t, rec)["has_role"])
}

func TestAPI_ErrorStatuses(t *testing.T) {
	a := newTestAPI(t)

	tests := []struct {
		name   string
		method string
		path   string
		caller string
		body   any
		status int
		code   string
	}{
		{"unknown role", http.MethodGet, "/v1/roles/InvalidRole/holder", "", nil, http.StatusBadRequest, access.CodeUnknownRole},
		{"unset role", http.MethodGet, "/v1/roles/PauseAdmin/holder", "", nil, http.StatusNotFound, access.CodeRoleUnset},
		{"non-admin caller", http.MethodPut, "/v1/roles/PauseAdmin/holder", "mallory", map[string]string{"identity": "m"}, http.StatusForbidden, access.CodeUnauthorized},
		{"missing caller", http.MethodPut, "/v1/roles/PauseAdmin/holder", "", map[string]string{"identity": "m"}, http.StatusForbidden, access.CodeUnauthorized},
		{"empty target", http.MethodPut, "/v1/roles/PauseAdmin/holder", "root", map[string]string{"identity": ""}, http.StatusBadRequest, access.CodeInvalidIdentity},
		{"wrong kind", http.MethodPut, "/v1/roles/PauseAdmin/holders", "root", map[string][]string{"identities": {"m"}}, http.StatusConflict, access.CodeWrongRoleKind},
		{"already initialized", http.MethodPost, "/v1/admin/init", "", map[string]string{"identity": "m"}, http.StatusConflict, access.CodeAlreadyInitialized},
		{"revert idle", http.MethodDelete, "/v1/transfers/Admin", "root", nil, http.StatusConflict, access.CodeNoPendingTransfer},
		{"bad body", http.MethodPut, "/v1/emergency", "root", map[string]string{"nope": "x"}, http.StatusBadRequest, api.CodeBadRequest},
		{"require denied", http.MethodPost, "/v1/roles/OperationsAdmin/require", "mallory", nil, http.StatusForbidden, access.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, tt.method, tt.path, tt.caller, tt.body)
			assertAPIError(t, rec, tt.status, tt.code)
		})
	}
}

func TestAPI_Holders(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPut, "/v1/roles/EmergencyPauseAdmin/holders", "root",
		map[string][]string{"identities": {"b", "a", "b"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeBody[map[string]any](t, rec)
	assert.Equal(t, []any{"a", "b"}, got["holders"])

	rec = a.do(t, http.MethodGet, "/v1/roles/EmergencyPauseAdmin/holders", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"a", "b"}, decodeBody[map[string]any](t, rec)["holders"])
}

func TestAPI_TransferFlow(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/v1/transfers/Admin", "root", map[string]string{"target": "heir"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	deadline := uint64(decodeBody[map[string]any](t, rec)["deadline"].(float64))
	assert.Equal(t, accesstest.Start+access.TransferDelay, deadline)

	rec = a.do(t, http.MethodGet, "/v1/transfers/Admin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, state["pending"])
	assert.Equal(t, "heir", state["target"])

	rec = a.do(t, http.MethodPost, "/v1/transfers/Admin/apply", "root", nil)
	assertAPIError(t, rec, http.StatusConflict, access.CodeTransferNotReady)

	a.fixture.Clock.Set(deadline)
	rec = a.do(t, http.MethodPost, "/v1/transfers/Admin/apply", "root", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "heir", decodeBody[map[string]string](t, rec)["holder"])

	rec = a.do(t, http.MethodGet, "/v1/transfers/Admin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decodeBody[map[string]any](t, rec)["pending"])
}

// countingStore counts transactions opened against the wrapped store.
type countingStore struct {
	store.Store
	views   atomic.Int32
	updates atomic.Int32
}

func (c *countingStore) View(ctx context.Context, fn func(tx store.Tx) error) error {
	c.views.Add(1)
	return c.Store.View(ctx, fn)
}

func (c *countingStore) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	c.updates.Add(1)
	return c.Store.Update(ctx, fn)
}

func TestAPI_ReadsAndWritesUseOneTransaction(t *testing.T) {
	f := accesstest.WithAdmin(t, "root")
	_, err := f.Service.CommitTransfer(context.Background(), "root", "Admin", "heir")
	require.NoError(t, err)

	counting := &countingStore{Store: f.Store}
	svc := access.NewService(access.NewController(counting, f.Clock))
	a := &testAPI{fixture: f, handler: api.NewHandler(svc, nil, nil).Router()}

	rec := a.do(t, http.MethodGet, "/v1/transfers/Admin", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	state := decodeBody[map[string]any](t, rec)
	assert.Equal(t, true, state["pending"])
	assert.Equal(t, "heir", state["target"])
	assert.Equal(t, float64(accesstest.Start+access.TransferDelay), state["deadline"])
	assert.Equal(t, int32(1), counting.views.Load())

	counting.views.Store(0)
	rec = a.do(t, http.MethodPut, "/v1/roles/EmergencyPauseAdmin/holders", "root",
		map[string][]string{"identities": {"b", "a", "b"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []any{"a", "b"}, decodeBody[map[string]any](t, rec)["holders"])
	assert.Equal(t, int32(1), counting.updates.Load())
	assert.Zero(t, counting.views.Load())
}

func TestAPI_Emergency(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPut, "/v1/emergency", "mallory", map[string]bool{"enabled": true})
	assertAPIError(t, rec, http.StatusForbidden, access.CodeUnauthorized)

	rec = a.do(t, http.MethodPut, "/v1/emergency", "root", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = a.do(t, http.MethodGet, "/v1/emergency", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"enabled": true}, decodeBody[map[string]bool](t, rec))
}

func TestAPI_ListRoles(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/v1/roles", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	statuses := decodeBody[[]map[string]any](t, rec)
	require.Len(t, statuses, len(access.Roles()))
	assert.Equal(t, "Admin", statuses[0]["role"])
	assert.Equal(t, []any{"root"}, statuses[0]["holders"])
}

func TestAPI_InitAdmin(t *testing.T) {
	f := accesstest.New(t)
	handler := api.NewHandler(f.Service, nil, nil).Router()

	req := httptest.NewRequest(http.MethodPost, "/v1/admin/init", bytes.NewBufferString(`{"identity":"root"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	admin, err := f.Controller.Holder(context.Background(), access.Admin)
	require.NoError(t, err)
	assert.Equal(t, access.Identity("root"), admin)
}

func TestAPI_RecordsMetrics(t *testing.T) {
	a := newTestAPI(t)

	a.do(t, http.MethodGet, "/v1/roles/Admin/holder", "", nil)
	a.do(t, http.MethodGet, "/v1/roles/PauseAdmin/holder", "", nil)

	assert.InDelta(t, 1, testutil.ToFloat64(a.metrics.RequestsTotal.WithLabelValues("/v1/roles/{role}/holder", "200")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(a.metrics.RequestsTotal.WithLabelValues("/v1/roles/{role}/holder", "404")), 0)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, api.StatusFor(errors.New("boom")))
	assert.Equal(t, http.StatusConflict, api.StatusFor(errWithCode(access.CodeTransferAlreadyPending)))
	assert.Equal(t, http.StatusBadRequest, api.StatusFor(errWithCode(access.CodeInvalidIdentity)))
}

func errWithCode(code string) error {
	return oops.Code(code).Errorf("test error")
}

func TestServer_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := accesstest.WithAdmin(t, "root")
	server := api.NewServer("127.0.0.1:0", api.NewHandler(f.Service, nil, nil).Router())

	errCh, err := server.Start()
	require.NoError(t, err)

	_, err = server.Start()
	require.Error(t, err)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + server.Addr() + "/v1/emergency")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, server.Stop(ctx))
	require.NoError(t, server.Stop(ctx))

	_, open := <-errCh
	assert.False(t, open)
	client.CloseIdleConnections()
}

