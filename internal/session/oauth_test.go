package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/existflow/agrisense/internal/model"
	"github.com/existflow/agrisense/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    string
		wantErr string
	}{
		{name: "success", query: "success=true&token=abc", want: "abc"},
		{name: "provider error", query: "error=access_denied", wantErr: "google sign-in failed: access_denied"},
		{name: "error wins over token", query: "error=bad&success=true&token=abc", wantErr: "google sign-in failed: bad"},
		{name: "token without success", query: "token=abc", wantErr: ErrMissingToken.Error()},
		{name: "empty", query: "", wantErr: ErrMissingToken.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			require.NoError(t, err)

			got, err := ParseCallback(q)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCallbackHandlerRunsOnce(t *testing.T) {
	v := newFakeVerifier()
	v.users["oauth-token"] = &model.User{ID: "u1", Name: "Asha"}
	st := storage.NewMemory()

	s := New(context.Background(), v, st)
	defer s.Close()

	h := NewCallbackHandler(s)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?success=true&token=oauth-token", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Signed in as Asha")

	res := <-h.Results()
	require.NoError(t, res.Err)
	assert.Equal(t, "Asha", res.User.Name)

	tok, _ := st.Get(storage.TokenKey)
	assert.Equal(t, "oauth-token", tok)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?success=true&token=other", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 1, v.callCount("oauth-token"))
	assert.Zero(t, v.callCount("other"))
}

func TestCallbackHandlerReportsProviderError(t *testing.T) {
	s := New(context.Background(), newFakeVerifier(), storage.NewMemory())
	defer s.Close()

	h := NewCallbackHandler(s)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, CallbackPath+"?error=access_denied", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	res := <-h.Results()
	assert.Error(t, res.Err)
	assert.Nil(t, s.CurrentUser())
}

func TestCallbackServerLoopback(t *testing.T) {
	v := newFakeVerifier()
	v.users["tok"] = &model.User{ID: "u9", Name: "Kiran"}

	s := New(context.Background(), v, storage.NewMemory())
	defer s.Close()

	cs, err := ListenCallback(s)
	require.NoError(t, err)
	defer cs.Close()

	resp, err := http.Get(cs.FrontendURL() + CallbackPath + "?success=true&token=tok")
	require.NoError(t, err)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	user, err := cs.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Kiran", user.Name)
}
