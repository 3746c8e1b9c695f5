// Package testkit is a fake room server: a matchmaking endpoint that
// hands out tickets and a websocket endpoint whose peers tests script
// frame by frame.
package testkit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/DoyleJ11/minigame-sdk/internal/matchmaking"
	"github.com/DoyleJ11/minigame-sdk/internal/ws"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrBadToken = errors.New("testkit: unknown authorization token")

type Options struct {
	Logger *zap.Logger
	// MinigameID and AccessCode, when set, must match the matchmaking
	// request.
	MinigameID string
	AccessCode string
	// Reject makes every matchmaking call fail with this code.
	Reject types.ErrorCode
}

type Server struct {
	URL string

	opts  Options
	log   *zap.Logger
	token string
	srv   *httptest.Server
	peers chan *ws.Peer
	quit  chan struct{}

	mu       sync.Mutex
	requests []matchmaking.Request

	closeOnce sync.Once
}

func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Server{
		opts:  opts,
		log:   opts.Logger.Named("testkit"),
		token: uuid.NewString(),
		peers: make(chan *ws.Peer, 16),
		quit:  make(chan struct{}),
	}
	s.srv = httptest.NewServer(s.Routes())
	s.URL = s.srv.URL
	return s
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Post(matchmaking.TestingPath, s.matchmakingTesting)
	r.Get("/healthz", healthz)
	r.Get("/ws", s.acceptRoom)
	return r
}

// WSURL is the room address tickets point at.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

func (s *Server) Token() string { return s.token }

// Ticket returns credentials for a direct connect, bypassing
// matchmaking.
func (s *Server) Ticket() types.Ticket {
	return types.Ticket{
		AuthorizationToken: s.token,
		TargetAddress:      s.WSURL(),
		User:               types.TicketUser{ID: uuid.NewString(), DisplayName: "tester"},
	}
}

// Requests returns every matchmaking request received so far.
func (s *Server) Requests() []matchmaking.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]matchmaking.Request(nil), s.requests...)
}

// NextPeer waits for the next accepted room connection.
func (s *Server) NextPeer(ctx context.Context) (*ws.Peer, error) {
	select {
	case p := <-s.peers:
		return p, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.quit)
		s.srv.CloseClientConnections()
		s.srv.Close()
	})
}

func (s *Server) matchmakingTesting(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		writeError(w, http.StatusBadRequest, types.CodeInvalidContentType)
		return
	}
	var req matchmaking.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, types.CodeUnexpectedError)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	switch {
	case s.opts.Reject != "":
		writeError(w, http.StatusBadRequest, s.opts.Reject)
		return
	case req.Type != matchmaking.TypeTesting:
		writeError(w, http.StatusBadRequest, types.CodeNotImplemented)
		return
	case s.opts.MinigameID != "" && req.MinigameID != s.opts.MinigameID:
		writeError(w, http.StatusNotFound, types.CodeNotFound)
		return
	case s.opts.AccessCode != "" && req.AccessCode != s.opts.AccessCode:
		writeError(w, http.StatusUnauthorized, types.CodeInvalidAuthorization)
		return
	}

	user := types.TicketUser{ID: uuid.NewString(), DisplayName: req.DisplayName}

	s.log.Debug("matched", zap.String("user_id", user.ID), zap.String("display_name", user.DisplayName))
	writeJSON(w, http.StatusOK, matchmaking.Response{
		Authorization: s.token,
		Data: matchmaking.Data{
			Type: "matchmaking",
			User: user,
			Room: matchmaking.Room{
				ID:     uuid.NewString(),
				Server: matchmaking.Server{ID: "testkit", URL: s.WSURL(), Location: "local"},
			},
			Metadata: matchmaking.Metadata{
				Type:       matchmaking.TypeTesting,
				MinigameID: req.MinigameID,
				AccessCode: req.AccessCode,
			},
		},
	})
}

// acceptRoom upgrades the request and hands the peer to NextPeer. The
// handler stays alive until the server closes.
func (s *Server) acceptRoom(w http.ResponseWriter, r *http.Request) {
	p, err := ws.Accept(w, r, ws.AcceptOptions{
		Logger: s.log,
		Authorize: func(token string) error {
			if token != s.token {
				return ErrBadToken
			}
			return nil
		},
	})
	if err != nil {
		s.log.Warn("rejected room connection", zap.Error(err))
		return
	}
	select {
	case s.peers <- p:
	case <-s.quit:
		p.Abort()
		return
	}
	<-s.quit
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeError(w http.ResponseWriter, status int, code types.ErrorCode) {
	writeJSON(w, status, types.APIErrorResponse{Code: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
