// Package minigame is the testing SDK a minigame uses to join a room:
// Ready matchmakes and connects, then the minigame talks to the room
// through the domain calls and events.
package minigame

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/codec"
	"github.com/DoyleJ11/minigame-sdk/internal/config"
	"github.com/DoyleJ11/minigame-sdk/internal/engine"
	"github.com/DoyleJ11/minigame-sdk/internal/hub"
	"github.com/DoyleJ11/minigame-sdk/internal/matchmaking"
	"github.com/DoyleJ11/minigame-sdk/internal/session"
	"github.com/DoyleJ11/minigame-sdk/internal/ws"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const DefaultBaseURL = "http://localhost:3001"

// Encoding selects the wire format for the room connection.
type Encoding = codec.Encoding

const (
	EncodingBinary = codec.EncodingBinary
	EncodingJSON   = codec.EncodingJSON
)

// Subscription identifies one event handler for Off.
type Subscription = hub.Subscription

var (
	ErrAlreadyReady  = errors.New("minigame: already ready or waiting")
	ErrDestroyed     = errors.New("minigame: sdk destroyed")
	ErrDisconnected  = errors.New("minigame: disconnected before ready")
	ErrInvalidConfig = errors.New("minigame: invalid config")
)

type Config struct {
	BaseURL           string
	MinigameID        string
	TestingAccessCode string
	// PlayersToStart is how many ready players, host included, the host
	// waits for before handshaking.
	PlayersToStart int
	// AutoBegin makes the host start the minigame as soon as it joins.
	AutoBegin   bool
	Encoding    Encoding
	DisplayName string
	Language    string
	Volume      int

	MatchmakingTimeout time.Duration
	WriteTimeout       time.Duration
}

// FromEnv maps loaded environment configuration onto Config.
func FromEnv(c config.Config) Config {
	return Config{
		BaseURL:            c.BaseURL,
		MinigameID:         c.MinigameID,
		TestingAccessCode:  c.TestingAccessCode,
		PlayersToStart:     c.PlayersToStart,
		AutoBegin:          c.AutoBegin,
		Encoding:           c.EncodingValue(),
		DisplayName:        c.DisplayName,
		Language:           c.Language,
		Volume:             c.Volume,
		MatchmakingTimeout: c.MatchmakingTimeout,
		WriteTimeout:       c.WriteTimeout,
	}
}

type Option func(*options)

type options struct {
	log          *zap.Logger
	reg          prometheus.Registerer
	httpClient   *http.Client
	sink         types.Sink
	onError      func(types.RemoteError)
	onDisconnect func(ws.CloseReason)
}

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithRegisterer registers the transport counters with reg.
func WithRegisterer(reg prometheus.Registerer) Option { return func(o *options) { o.reg = reg } }

func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithSink receives every domain event before per-kind subscribers.
func WithSink(s types.Sink) Option { return func(o *options) { o.sink = s } }

func WithErrorHandler(fn func(types.RemoteError)) Option {
	return func(o *options) { o.onError = fn }
}

func WithDisconnectHandler(fn func(ws.CloseReason)) Option {
	return func(o *options) { o.onDisconnect = fn }
}

type status int

const (
	statusIdle status = iota
	statusWaiting
	statusReady
	statusDestroyed
)

type SDK struct {
	cfg  Config
	opts options
	log  *zap.Logger
	mm   *matchmaking.Client
	sess *session.Session

	mu          sync.Mutex
	status      status
	data        *types.SessionReady
	disconnects chan ws.CloseReason

	destroyOnce sync.Once
}

func New(cfg Config, opts ...Option) (*SDK, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Encoding == "" {
		cfg.Encoding = EncodingBinary
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.DisplayName == "" {
		name, err := config.GuestName()
		if err != nil {
			return nil, err
		}
		cfg.DisplayName = name
	}
	switch {
	case cfg.MinigameID == "":
		return nil, fmt.Errorf("%w: minigame id is required", ErrInvalidConfig)
	case cfg.TestingAccessCode == "":
		return nil, fmt.Errorf("%w: testing access code is required", ErrInvalidConfig)
	case cfg.PlayersToStart < 1:
		return nil, fmt.Errorf("%w: players to start must be at least 1", ErrInvalidConfig)
	}
	if _, err := codec.ParseEncoding(string(cfg.Encoding)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	s := &SDK{
		cfg:         cfg,
		opts:        o,
		log:         o.log.Named("minigame"),
		disconnects: make(chan ws.CloseReason, 1),
	}
	s.mm = matchmaking.NewClient(matchmaking.Options{
		BaseURL:    cfg.BaseURL,
		HTTPClient: o.httpClient,
		Timeout:    cfg.MatchmakingTimeout,
		Logger:     o.log,
	})

	var metrics *ws.Metrics
	if o.reg != nil {
		metrics = ws.NewMetrics(o.reg)
	}
	s.sess = session.New(session.Options{
		Logger: o.log,
		Engine: engine.Config{
			PlayersToStart: cfg.PlayersToStart,
			AutoBegin:      cfg.AutoBegin,
			Settings:       types.Settings{Language: cfg.Language, Volume: cfg.Volume},
		},
		Encoding:     cfg.Encoding,
		Metrics:      metrics,
		WriteTimeout: cfg.WriteTimeout,
		HTTPClient:   o.httpClient,
		Sink:         types.SinkFunc(s.track),
		OnError:      s.handleError,
		OnDisconnect: s.handleDisconnect,
	})
	return s, nil
}

// Ready joins a testing room and blocks until the local player is ready,
// returning the session snapshot the minigame starts from.
func (s *SDK) Ready(ctx context.Context) (types.SessionReady, error) {
	if err := s.beginReady(ctx); err != nil {
		return types.SessionReady{}, err
	}

	ready, err := s.connect(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == statusDestroyed {
		return types.SessionReady{}, ErrDestroyed
	}
	if err != nil {
		s.status = statusIdle
		return types.SessionReady{}, err
	}
	s.status = statusReady
	return ready, nil
}

func (s *SDK) beginReady(ctx context.Context) error {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()

	switch st {
	case statusDestroyed:
		return ErrDestroyed
	case statusWaiting:
		return ErrAlreadyReady
	case statusReady:
		// A faulted or closed session may be joined again.
		v, err := s.sess.View(ctx)
		if err != nil {
			return err
		}
		if !v.Phase.Terminal() {
			return ErrAlreadyReady
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == statusDestroyed {
		return ErrDestroyed
	}
	if s.status == statusWaiting {
		return ErrAlreadyReady
	}
	s.status = statusWaiting
	s.data = nil
	select {
	case <-s.disconnects:
	default:
	}
	return nil
}

func (s *SDK) connect(ctx context.Context) (types.SessionReady, error) {
	ticket, err := s.mm.Testing(ctx, matchmaking.Request{
		DisplayName: s.cfg.DisplayName,
		MinigameID:  s.cfg.MinigameID,
		AccessCode:  s.cfg.TestingAccessCode,
	})
	if err != nil {
		return types.SessionReady{}, err
	}

	readyCh := make(chan types.SessionReady, 1)
	id := s.sess.Once(types.EventSessionReady, func(e types.Event) {
		readyCh <- e.(types.SessionReady)
	})
	defer s.sess.Off(types.EventSessionReady, id)

	view, err := s.sess.Connect(ctx, ticket)
	if err != nil {
		return types.SessionReady{}, err
	}
	s.log.Info("connected to room",
		zap.String("user", view.User),
		zap.String("host", view.Room.Host),
		zap.Stringer("status", view.Room.Status),
		zap.Int("players", len(view.Players)))

	select {
	case ready := <-readyCh:
		return ready, nil
	case reason := <-s.disconnects:
		return types.SessionReady{}, fmt.Errorf("%w: %s", ErrDisconnected, reason)
	case <-ctx.Done():
		// Leave the room so a later Ready can join again.
		if err := s.sess.Disconnect(context.Background()); err != nil {
			s.log.Warn("disconnect after cancelled ready", zap.Error(err))
		}
		return types.SessionReady{}, ctx.Err()
	}
}

// track keeps Data in step with forwarded events, then passes them on.
func (s *SDK) track(e types.Event) {
	s.mu.Lock()
	switch ev := e.(type) {
	case types.SessionReady:
		cp := ev
		cp.Players = append([]types.Player(nil), ev.Players...)
		s.data = &cp
	case types.SettingsUpdated:
		if s.data != nil {
			if ev.Settings.Language != nil {
				s.data.Settings.Language = *ev.Settings.Language
			}
			if ev.Settings.Volume != nil {
				s.data.Settings.Volume = *ev.Settings.Volume
			}
		}
	case types.PlayerJoined:
		if s.data != nil {
			s.data.Players = append(s.data.Players, ev.Player)
		}
	case types.PlayerLeft:
		if s.data != nil {
			for i, p := range s.data.Players {
				if p.ID == ev.User {
					s.data.Players = append(s.data.Players[:i], s.data.Players[i+1:]...)
					break
				}
			}
		}
	case types.GameStateUpdated:
		if s.data != nil {
			s.data.Room.State = types.CloneState(ev.State)
		}
	case types.PlayerStateUpdated:
		if s.data != nil {
			for i := range s.data.Players {
				if s.data.Players[i].ID == ev.User {
					s.data.Players[i].State = types.CloneState(ev.State)
				}
			}
		}
	}
	s.mu.Unlock()

	if s.opts.sink != nil {
		s.opts.sink.HandleEvent(e)
	}
}

func (s *SDK) handleError(e types.RemoteError) {
	s.log.Error("room error", zap.String("code", string(e.Code)), zap.String("message", e.Text()))
	if s.opts.onError != nil {
		s.opts.onError(e)
	}
}

func (s *SDK) handleDisconnect(r ws.CloseReason) {
	s.mu.Lock()
	waiting := s.status == statusWaiting
	if s.status == statusReady {
		s.status = statusIdle
	}
	s.mu.Unlock()

	if waiting {
		select {
		case s.disconnects <- r:
		default:
		}
	}
	if s.opts.onDisconnect != nil {
		s.opts.onDisconnect(r)
	}
}

// Data returns the minigame's view of the session, kept current from
// forwarded events. ok is false before Ready succeeds.
func (s *SDK) Data() (data types.SessionReady, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return types.SessionReady{}, false
	}
	cp := *s.data
	cp.Room.State = types.CloneState(s.data.Room.State)
	cp.Players = make([]types.Player, len(s.data.Players))
	for i, p := range s.data.Players {
		p.State = types.CloneState(p.State)
		cp.Players[i] = p
	}
	return cp, true
}

// View returns the full room mirror, players that are not ready
// included.
func (s *SDK) View(ctx context.Context) (engine.View, error) {
	return s.sess.View(ctx)
}

func (s *SDK) On(kind types.EventKind, fn func(types.Event)) Subscription {
	return s.sess.On(kind, fn)
}

func (s *SDK) Once(kind types.EventKind, fn func(types.Event)) Subscription {
	return s.sess.Once(kind, fn)
}

func (s *SDK) Off(kind types.EventKind, id Subscription) bool {
	return s.sess.Off(kind, id)
}

func (s *SDK) EndGame(ctx context.Context, results types.Results) error {
	return s.sess.EndGame(ctx, results)
}

func (s *SDK) SetGameState(ctx context.Context, state types.State) error {
	return s.sess.SetGameState(ctx, state)
}

func (s *SDK) SetPlayerState(ctx context.Context, user string, state types.State) error {
	return s.sess.SetPlayerState(ctx, user, state)
}

func (s *SDK) SendGameMessage(ctx context.Context, msg types.State) error {
	return s.sess.SendGameMessage(ctx, msg)
}

func (s *SDK) SendPlayerMessage(ctx context.Context, msg types.State) error {
	return s.sess.SendPlayerMessage(ctx, msg)
}

// SendPrivateMessage sends msg to user, or to the host when user is
// empty.
func (s *SDK) SendPrivateMessage(ctx context.Context, user string, msg types.State) error {
	return s.sess.SendPrivateMessage(ctx, user, msg)
}

func (s *SDK) SendBinaryGameMessage(ctx context.Context, msg []byte) error {
	return s.sess.SendBinaryGameMessage(ctx, msg)
}

func (s *SDK) SendBinaryPlayerMessage(ctx context.Context, msg []byte) error {
	return s.sess.SendBinaryPlayerMessage(ctx, msg)
}

func (s *SDK) SendBinaryPrivateMessage(ctx context.Context, user string, msg []byte) error {
	return s.sess.SendBinaryPrivateMessage(ctx, user, msg)
}

func (s *SDK) UpdateSettings(ctx context.Context, u types.SettingsUpdate) error {
	return s.sess.UpdateSettings(ctx, u)
}

// SetClientPrompt would show prompt in the embedding page. Testing
// rooms have no page, so it is only logged.
func (s *SDK) SetClientPrompt(prompt string) {
	s.log.Info("client prompt", zap.String("prompt", prompt))
}

// Destroy leaves the room and releases the SDK. Later calls return nil.
func (s *SDK) Destroy() error {
	var err error
	s.destroyOnce.Do(func() {
		s.mu.Lock()
		s.status = statusDestroyed
		s.mu.Unlock()
		err = s.sess.Close()
		s.log.Debug("destroyed")
	})
	return err
}
