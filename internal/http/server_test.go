package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	internal_http "github.com/ignatij/tripflow/internal/http"
	"github.com/ignatij/tripflow/internal/log"
	"github.com/ignatij/tripflow/pkg/backend"
	"github.com/ignatij/tripflow/pkg/models"
	"github.com/ignatij/tripflow/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionServer(t *testing.T) {
	newServer := func(mock *backend.MockBackend) (*httptest.Server, *service.WorkflowStatusClient) {
		client := service.NewWorkflowStatusClient(context.Background(), mock, log.GetLogger(), service.WithoutAutoPoll())
		srv := httptest.NewServer(internal_http.NewMux(client))
		t.Cleanup(srv.Close)
		return srv, client
	}

	post := func(t *testing.T, url string, body interface{}) (*http.Response, models.SessionView) {
		var reader io.Reader = http.NoBody
		if body != nil {
			data, err := json.Marshal(body)
			require.NoError(t, err)
			reader = bytes.NewReader(data)
		}
		resp, err := http.Post(url, "application/json", reader)
		require.NoError(t, err)
		defer resp.Body.Close()
		var view models.SessionView
		if resp.StatusCode < 300 {
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
		}
		return resp, view
	}

	getView := func(t *testing.T, srv *httptest.Server) models.SessionView {
		resp, err := http.Get(srv.URL + "/session")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var view models.SessionView
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
		return view
	}

	t.Run("Health", func(t *testing.T) {
		srv, _ := newServer(backend.NewMockBackend())
		resp, err := http.Get(srv.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, _ := io.ReadAll(resp.Body)
		assert.Contains(t, string(body), "running")
	})

	t.Run("FullSession", func(t *testing.T) {
		mock := backend.NewMockBackend()
		mock.Script("abc123",
			[]any{`{"customStatus": {"step": "WaitingForApproval", "destination": "Bali", "travelPlan": {"cost": "$900"}}}`},
			`{"runtimeStatus": "Completed", "customStatus": {"step": "Completed", "destination": "Bali"}}`,
		)
		srv, client := newServer(mock)

		resp, view := post(t, srv.URL+"/session", models.TravelRequest{UserName: "Ana", Preferences: "beach, relaxing"})
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		assert.Equal(t, "abc123", view.InstanceID)
		assert.Equal(t, models.PollingSessionState, view.State)

		_, err := client.Poll(context.Background())
		require.NoError(t, err)
		view = getView(t, srv)
		assert.True(t, view.CanDecide)
		require.NotNil(t, view.Status)
		assert.Equal(t, "$900", view.Status.TravelPlan.Cost)

		resp, view = post(t, srv.URL+"/session/approve", map[string]string{"comments": "perfect"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, models.ProcessingSessionState, view.State)
		require.NotNil(t, view.Decision)
		assert.True(t, view.Decision.Approved)
		assert.Equal(t, "perfect", view.Decision.Comments)

		resp, _ = post(t, srv.URL+"/session/reject", nil)
		assert.Equal(t, http.StatusConflict, resp.StatusCode, "decision already sent")

		_, err = client.Poll(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.CompletedSessionState, getView(t, srv).State)

		resp, view = post(t, srv.URL+"/session/reset", nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, models.IdleSessionState, view.State)
		assert.Empty(t, view.Messages)
	})

	t.Run("ValidationError", func(t *testing.T) {
		mock := backend.NewMockBackend()
		srv, _ := newServer(mock)
		resp, _ := post(t, srv.URL+"/session", models.TravelRequest{UserName: "Ana"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, 0, mock.Starts())
		assert.Len(t, getView(t, srv).Messages, 1)
	})

	t.Run("MalformedBody", func(t *testing.T) {
		srv, _ := newServer(backend.NewMockBackend())
		resp, err := http.Post(srv.URL+"/session", "application/json", bytes.NewBufferString("{"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("SecondStartConflicts", func(t *testing.T) {
		srv, _ := newServer(backend.NewMockBackend())
		resp, _ := post(t, srv.URL+"/session", models.TravelRequest{UserName: "Ana", Preferences: "beach"})
		assert.Equal(t, http.StatusAccepted, resp.StatusCode)
		resp, _ = post(t, srv.URL+"/session", models.TravelRequest{UserName: "Ana", Preferences: "beach"})
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("BackendDown", func(t *testing.T) {
		mock := backend.NewMockBackend()
		mock.FailStart(backend.ErrTransport)
		srv, _ := newServer(mock)
		resp, _ := post(t, srv.URL+"/session", models.TravelRequest{UserName: "Ana", Preferences: "beach"})
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.True(t, getView(t, srv).CanSubmit)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		srv, _ := newServer(backend.NewMockBackend())
		for _, path := range []string{"/session/approve", "/session/reset"} {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
		}
	})
}
