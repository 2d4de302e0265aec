package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Anshumanformal/Tab-SyncAR/internal/errs"
	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

type stubAuth struct {
	userID uuid.UUID
	tokens model.Tokens
}

func (s *stubAuth) TokenForEmail(_ context.Context, email, _ string) (model.Tokens, *model.User, error) {
	return s.tokens, &model.User{ID: s.userID, Email: email}, nil
}

func (s *stubAuth) Verify(token string) (uuid.UUID, error) {
	if token != "good" {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return s.userID, nil
}

func (s *stubAuth) User(_ context.Context, id uuid.UUID) (*model.User, error) {
	if id != s.userID {
		return nil, errs.ErrNotFound
	}
	return &model.User{ID: s.userID, Email: "me@example.com"}, nil
}

type stubURLs struct {
	added   []model.SavedURL
	addErr  error
	deleted []uuid.UUID
	listed  []model.SavedURL
}

func (s *stubURLs) Add(_ context.Context, _ uuid.UUID, _ []model.NewURL) ([]model.SavedURL, error) {
	return s.added, s.addErr
}

func (s *stubURLs) Delete(_ context.Context, _ uuid.UUID, ids []uuid.UUID) error {
	s.deleted = append(s.deleted, ids...)
	return nil
}

func (s *stubURLs) List(_ context.Context, _ uuid.UUID) ([]model.SavedURL, error) {
	return s.listed, nil
}

type stubDevices struct {
	dev *model.Device
}

func (s *stubDevices) Register(_ context.Context, _ uuid.UUID, _ model.DeviceInfo) (*model.Device, error) {
	return s.dev, nil
}

func (s *stubDevices) List(_ context.Context, _ uuid.UUID) ([]model.Device, error) {
	if s.dev == nil {
		return nil, nil
	}
	return []model.Device{*s.dev}, nil
}

func newTestServer(t *testing.T, urls *stubURLs, devices *stubDevices) (*httptest.Server, *stubAuth) {
	t.Helper()
	auth := &stubAuth{
		userID: uuid.Must(uuid.NewV4()),
		tokens: model.Tokens{AccessToken: "good", ExpiresAt: time.Now().Add(time.Hour)},
	}
	srv := New(":0", auth, urls, devices, http.NotFoundHandler(), zap.NewNop())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, auth
}

func doJSON(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func TestAPI_RequiresBearer(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, &stubURLs{}, &stubDevices{})

	resp, err := http.Get(ts.URL + "/api/urls")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp2 := doJSON(t, http.MethodGet, ts.URL+"/api/urls", "stale", nil)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestAPI_MintToken(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, &stubURLs{}, &stubDevices{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/auth/token", "", map[string]string{"email": "a@example.com"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var tokens model.Tokens
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tokens))
	require.Equal(t, "good", tokens.AccessToken)

	bad := doJSON(t, http.MethodPost, ts.URL+"/auth/token", "", map[string]string{})
	defer bad.Body.Close()
	require.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestAPI_Me(t *testing.T) {
	t.Parallel()

	ts, auth := newTestServer(t, &stubURLs{}, &stubDevices{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/me", "good", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, auth.userID, got.ID)
	require.Equal(t, "me@example.com", got.Email)
}

func TestAPI_AddURLs(t *testing.T) {
	t.Parallel()

	row := model.SavedURL{ID: uuid.Must(uuid.NewV4()), URL: "https://example.com/x", Source: model.SourceAuto}
	ts, _ := newTestServer(t, &stubURLs{added: []model.SavedURL{row}}, &stubDevices{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/urls", "good",
		map[string]any{"urls": []model.NewURL{{URL: "https://example.com/x"}}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var got []model.SavedURL
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	require.Equal(t, row.ID, got[0].ID)

	empty := doJSON(t, http.MethodPost, ts.URL+"/api/urls", "good", map[string]any{"urls": []model.NewURL{}})
	defer empty.Body.Close()
	require.Equal(t, http.StatusBadRequest, empty.StatusCode)
}

func TestAPI_AddURLs_CapacityConflict(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, &stubURLs{addErr: errs.ErrCapacity}, &stubDevices{})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/urls", "good",
		map[string]any{"urls": []model.NewURL{{URL: "https://example.com/x", Source: model.SourceManual}}})
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_DeleteURLs(t *testing.T) {
	t.Parallel()

	urls := &stubURLs{}
	ts, _ := newTestServer(t, urls, &stubDevices{})
	ids := []uuid.UUID{uuid.Must(uuid.NewV4())}

	resp := doJSON(t, http.MethodDelete, ts.URL+"/api/urls", "good", map[string]any{"ids": ids})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, ids, urls.deleted)
}

func TestAPI_ListURLs_EmptyIsJSONArray(t *testing.T) {
	t.Parallel()

	ts, _ := newTestServer(t, &stubURLs{}, &stubDevices{})

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/urls", "good", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []model.SavedURL
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestAPI_Devices(t *testing.T) {
	t.Parallel()

	dev := &model.Device{ID: uuid.Must(uuid.NewV4()), Name: "Chrome on Linux", Browser: "Chrome", Platform: "Linux"}
	ts, _ := newTestServer(t, &stubURLs{}, &stubDevices{dev: dev})

	resp := doJSON(t, http.MethodPost, ts.URL+"/api/devices", "good",
		model.DeviceInfo{Name: dev.Name, Browser: dev.Browser, Platform: dev.Platform})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got model.Device
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, dev.ID, got.ID)

	list := doJSON(t, http.MethodGet, ts.URL+"/api/devices", "good", nil)
	defer list.Body.Close()
	require.Equal(t, http.StatusOK, list.StatusCode)

	var devices []model.Device
	require.NoError(t, json.NewDecoder(list.Body).Decode(&devices))
	require.Len(t, devices, 1)
}
