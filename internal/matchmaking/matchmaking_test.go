package matchmaking_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/matchmaking"
	"github.com/DoyleJ11/minigame-sdk/internal/testkit"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestingReturnsTicket(t *testing.T) {
	srv := testkit.NewServer(testkit.Options{MinigameID: "mg-1", AccessCode: "secret"})
	t.Cleanup(srv.Close)

	c := matchmaking.NewClient(matchmaking.Options{BaseURL: srv.URL + "/"})
	ticket, err := c.Testing(context.Background(), matchmaking.Request{
		DisplayName: "Guest_ABC123",
		MinigameID:  "mg-1",
		AccessCode:  "secret",
	})
	require.NoError(t, err)
	assert.Equal(t, srv.Token(), ticket.AuthorizationToken)
	assert.Equal(t, srv.WSURL(), ticket.TargetAddress)
	assert.Equal(t, "Guest_ABC123", ticket.User.DisplayName)
	assert.NotEmpty(t, ticket.User.ID)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, matchmaking.Request{
		Type:        matchmaking.TypeTesting,
		DisplayName: "Guest_ABC123",
		MinigameID:  "mg-1",
		AccessCode:  "secret",
	}, reqs[0])
}

func TestTestingRejected(t *testing.T) {
	tests := []struct {
		name   string
		opts   testkit.Options
		status int
		code   types.ErrorCode
	}{
		{"wrong access code", testkit.Options{AccessCode: "secret"}, http.StatusUnauthorized, types.CodeInvalidAuthorization},
		{"unknown minigame", testkit.Options{MinigameID: "other"}, http.StatusNotFound, types.CodeNotFound},
		{"servers busy", testkit.Options{Reject: types.CodeServersBusy}, http.StatusBadRequest, types.CodeServersBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := testkit.NewServer(tt.opts)
			t.Cleanup(srv.Close)

			c := matchmaking.NewClient(matchmaking.Options{BaseURL: srv.URL})
			_, err := c.Testing(context.Background(), matchmaking.Request{MinigameID: "mg-1", AccessCode: "nope"})
			require.ErrorIs(t, err, matchmaking.ErrRejected)

			var rej *matchmaking.RejectedError
			require.ErrorAs(t, err, &rej)
			assert.Equal(t, tt.status, rej.Status)
			assert.Equal(t, tt.code, rej.Code)
			assert.Contains(t, err.Error(), tt.code.Text())
		})
	}
}

func TestTestingRejectedWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	_, err := matchmaking.NewClient(matchmaking.Options{BaseURL: srv.URL}).Testing(context.Background(), matchmaking.Request{})
	var rej *matchmaking.RejectedError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, http.StatusBadGateway, rej.Status)
	assert.Empty(t, rej.Code)
}

func TestTestingInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"authorization":"tok","data":{"room":{"server":{}}}}`))
	}))
	t.Cleanup(srv.Close)

	_, err := matchmaking.NewClient(matchmaking.Options{BaseURL: srv.URL}).Testing(context.Background(), matchmaking.Request{})
	assert.ErrorIs(t, err, matchmaking.ErrInvalidResponse)
}

func TestTestingTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := matchmaking.NewClient(matchmaking.Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Testing(context.Background(), matchmaking.Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
