// Package session runs one room connection: a single actor goroutine
// owns the engine and the transport, applies server frames in receipt
// order, and serializes every outbound call against the mirrored state.
// Domain events leave the actor through an ordered delivery goroutine,
// so handlers may call back into the Session.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/DoyleJ11/minigame-sdk/internal/codec"
	"github.com/DoyleJ11/minigame-sdk/internal/engine"
	"github.com/DoyleJ11/minigame-sdk/internal/hub"
	"github.com/DoyleJ11/minigame-sdk/internal/ws"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

var (
	ErrAlreadyConnected = errors.New("session: connection already open or pending")
	ErrNotConnected     = errors.New("session: not connected")
	ErrNotReady         = errors.New("session: minigame is not ready")
	ErrFailed           = errors.New("session: connection failed, reconnect required")
	ErrClosed           = errors.New("session: closed")
	ErrTooLarge         = errors.New("session: payload exceeds 1 MB")
	ErrConnectClosed    = errors.New("session: connection closed before the room snapshot")
	ErrInvalidLanguage  = errors.New("session: invalid language tag")
)

type Options struct {
	Logger   *zap.Logger
	Engine   engine.Config
	Encoding codec.Encoding

	Metrics      *ws.Metrics
	WriteTimeout time.Duration
	HTTPClient   *http.Client

	// Sink receives every forwarded domain event before per-kind
	// subscribers do.
	Sink types.Sink
	// OnError receives Error frames. The connection stays open.
	OnError func(types.RemoteError)
	// OnDisconnect receives a close the server initiated after the room
	// snapshot arrived.
	OnDisconnect func(ws.CloseReason)
}

type Session struct {
	opts   Options
	log    *zap.Logger
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	events    *hub.Hub[types.EventKind, types.Event]
	delivery  *dispatcher
	closeOnce sync.Once
}

func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Encoding == "" {
		opts.Encoding = codec.EncodingBinary
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		opts:     opts,
		log:      opts.Logger.Named("session"),
		inbox:    make(chan Msg, 64),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
		events:   hub.NewHub[types.EventKind, types.Event](),
		delivery: newDispatcher(),
	}
	s.events.SetPanicHandler(func(kind types.EventKind, r any) {
		s.log.Error("event handler panicked", zap.String("kind", string(kind)), zap.Any("panic", r))
	})
	go s.delivery.run(ctx)
	go s.loop()
	return s
}

// On subscribes fn to every forwarded event of kind.
func (s *Session) On(kind types.EventKind, fn func(types.Event)) hub.Subscription {
	return s.events.On(kind, fn)
}

func (s *Session) Once(kind types.EventKind, fn func(types.Event)) hub.Subscription {
	return s.events.Once(kind, fn)
}

func (s *Session) Off(kind types.EventKind, id hub.Subscription) bool {
	return s.events.Off(kind, id)
}

// post hands m to the loop, giving up when ctx ends or the session
// closes.
func (s *Session) post(ctx context.Context, m Msg) error {
	select {
	case s.inbox <- m:
		return nil
	case <-s.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, s *Session, reply <-chan T) (T, error) {
	var zero T
	select {
	case v := <-reply:
		return v, nil
	case <-s.done:
		return zero, ErrClosed
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Connect dials ticket.TargetAddress and blocks until the room snapshot
// has been applied, returning the mirror as it stood then. A close or a
// protocol fault before the snapshot is returned as the error.
func (s *Session) Connect(ctx context.Context, ticket types.Ticket) (engine.View, error) {
	grants := make(chan connectGrant, 1)
	if err := s.post(ctx, BeginConnect{Reply: grants}); err != nil {
		return engine.View{}, err
	}
	// The loop answers at once; waiting past ctx keeps a granted slot
	// from leaking.
	var grant connectGrant
	select {
	case grant = <-grants:
	case <-s.done:
		return engine.View{}, ErrClosed
	}
	if grant.err != nil {
		return engine.View{}, grant.err
	}

	conn, dialErr := ws.Dial(ctx, ticket.TargetAddress, ws.Options{
		Token:        ticket.AuthorizationToken,
		Encoding:     s.opts.Encoding,
		Logger:       s.opts.Logger,
		Metrics:      s.opts.Metrics,
		WriteTimeout: s.opts.WriteTimeout,
		HTTPClient:   s.opts.HTTPClient,
	})

	results := make(chan connectResult, 1)
	if err := s.post(context.Background(), Attach{Gen: grant.gen, Conn: conn, Err: dialErr, Reply: results}); err != nil {
		if conn != nil {
			conn.Close()
		}
		return engine.View{}, err
	}
	res, err := await(ctx, s, results)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// A result that raced ctx still counts.
			select {
			case res = <-results:
				return res.view, res.err
			default:
			}
			_ = s.post(context.Background(), Abandon{Gen: grant.gen})
		}
		return engine.View{}, err
	}
	return res.view, res.err
}

// View returns a detached copy of the mirror.
func (s *Session) View(ctx context.Context) (engine.View, error) {
	reply := make(chan engine.View, 1)
	if err := s.post(ctx, GetView{Reply: reply}); err != nil {
		return engine.View{}, err
	}
	return await(ctx, s, reply)
}

func (s *Session) send(ctx context.Context, op types.ClientOpcode, data any, gated bool) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, Send{Ctx: ctx, Opcode: op, Data: data, Gated: gated, Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, s, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

func checkSize(v types.State) error {
	if types.ExceedsStateSize(v) {
		return ErrTooLarge
	}
	return nil
}

func checkBytes(b []byte) error {
	if len(b) > types.MaxStateSize {
		return ErrTooLarge
	}
	return nil
}

// EndGame reports placements and ends the minigame. Empty placements
// are left out rather than promoted.
func (s *Session) EndGame(ctx context.Context, results types.Results) error {
	prizes, err := results.Prizes()
	if err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameEndGame, types.EndGame{Prizes: prizes}, true)
}

func (s *Session) SetGameState(ctx context.Context, state types.State) error {
	if err := checkSize(state); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSetGameState, types.GameState{State: state}, true)
}

func (s *Session) SetPlayerState(ctx context.Context, user string, state types.State) error {
	if err := checkSize(state); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSetPlayerState, types.PlayerState{User: user, State: state}, true)
}

func (s *Session) SendGameMessage(ctx context.Context, msg types.State) error {
	if err := checkSize(msg); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSendGameMessage, types.Message{Message: msg}, true)
}

func (s *Session) SendPlayerMessage(ctx context.Context, msg types.State) error {
	if err := checkSize(msg); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSendPlayerMessage, types.Message{Message: msg}, true)
}

// SendPrivateMessage addresses msg to user, or to the host when user is
// empty.
func (s *Session) SendPrivateMessage(ctx context.Context, user string, msg types.State) error {
	if err := checkSize(msg); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSendPrivateMessage, types.PrivateMessage{User: user, Message: msg}, true)
}

func (s *Session) SendBinaryGameMessage(ctx context.Context, msg []byte) error {
	if err := checkBytes(msg); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSendBinaryGameMessage, msg, true)
}

func (s *Session) SendBinaryPlayerMessage(ctx context.Context, msg []byte) error {
	if err := checkBytes(msg); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSendBinaryPlayerMessage, msg, true)
}

func (s *Session) SendBinaryPrivateMessage(ctx context.Context, user string, msg []byte) error {
	if err := checkBytes(msg); err != nil {
		return err
	}
	return s.send(ctx, types.ClientMinigameSendBinaryPrivateMessage, types.BinaryPrivateMessage{User: user, Message: msg}, true)
}

func (s *Session) KickPlayer(ctx context.Context, user string) error {
	return s.send(ctx, types.ClientKickPlayer, types.UserRef{User: user}, false)
}

func (s *Session) TransferHost(ctx context.Context, user string) error {
	return s.send(ctx, types.ClientTransferHost, types.UserRef{User: user}, false)
}

func (s *Session) SetRoomSettings(ctx context.Context, settings types.RoomSettings) error {
	return s.send(ctx, types.ClientSetRoomSettings, settings, false)
}

func (s *Session) BeginGame(ctx context.Context) error {
	return s.send(ctx, types.ClientBeginGame, types.Empty{}, false)
}

func (s *Session) Ping(ctx context.Context) error {
	return s.send(ctx, types.ClientPing, types.Empty{}, false)
}

// UpdateSettings changes the language or volume handed to the minigame.
func (s *Session) UpdateSettings(ctx context.Context, u types.SettingsUpdate) error {
	if u.Language != nil {
		tag, err := language.Parse(*u.Language)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidLanguage, err)
		}
		canonical := tag.String()
		u.Language = &canonical
	}
	reply := make(chan struct{}, 1)
	if err := s.post(ctx, UpdateSettings{Update: u, Reply: reply}); err != nil {
		return err
	}
	_, err := await(ctx, s, reply)
	return err
}

// Disconnect closes the current connection without notifying anyone.
// A later Connect may join again.
func (s *Session) Disconnect(ctx context.Context) error {
	reply := make(chan error, 1)
	if err := s.post(ctx, Disconnect{Reply: reply}); err != nil {
		return err
	}
	err, waitErr := await(ctx, s, reply)
	if waitErr != nil {
		return waitErr
	}
	return err
}

// Close tears the connection down and stops the session. Safe to call
// more than once, from any goroutine, event handlers included.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		reply := make(chan error, 1)
		select {
		case s.inbox <- Shutdown{Reply: reply}:
			select {
			case err = <-reply:
			case <-s.done:
			}
		case <-s.done:
		}
	})
	return err
}

// Done is closed once the session has stopped.
func (s *Session) Done() <-chan struct{} { return s.done }
