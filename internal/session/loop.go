package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/DoyleJ11/minigame-sdk/internal/engine"
	"github.com/DoyleJ11/minigame-sdk/internal/ws"
	"github.com/DoyleJ11/minigame-sdk/pkg/types"
	"go.uber.org/zap"
)

type Msg interface{ isSessionMsg() }

// BeginConnect reserves the connection slot. The grant carries the
// generation that later messages for this connection must quote.
type BeginConnect struct {
	Reply chan connectGrant
}

type Attach struct {
	Gen   uint64
	Conn  *ws.Conn
	Err   error
	Reply chan connectResult
}

// Abandon drops the connection of a Connect whose caller stopped
// waiting, whether or not the snapshot had arrived.
type Abandon struct{ Gen uint64 }

type Frame struct {
	Gen uint64
	Msg types.ServerMessage
}

type RemoteClosed struct {
	Gen    uint64
	Reason ws.CloseReason
}

type Send struct {
	Ctx    context.Context
	Opcode types.ClientOpcode
	Data   any
	// Gated sends also require the local player's ready.
	Gated bool
	Reply chan error
}

type UpdateSettings struct {
	Update types.SettingsUpdate
	Reply  chan struct{}
}

type GetView struct {
	Reply chan engine.View
}

// Disconnect drops the current connection but keeps the session usable.
type Disconnect struct {
	Reply chan error
}

type Shutdown struct {
	Reply chan error
}

func (BeginConnect) isSessionMsg()   {}
func (Attach) isSessionMsg()         {}
func (Abandon) isSessionMsg()        {}
func (Frame) isSessionMsg()          {}
func (RemoteClosed) isSessionMsg()   {}
func (Send) isSessionMsg()           {}
func (UpdateSettings) isSessionMsg() {}
func (GetView) isSessionMsg()        {}
func (Disconnect) isSessionMsg()     {}
func (Shutdown) isSessionMsg()       {}

type connectGrant struct {
	gen uint64
	err error
}

type connectResult struct {
	view engine.View
	err  error
}

// state is owned by the loop goroutine.
type state struct {
	gen     uint64
	pending bool
	conn    *ws.Conn
	eng     *engine.Engine
	waiter  chan connectResult
	failed  error
}

func (s *Session) loop() {
	defer close(s.done)
	st := &state{}
	for {
		select {
		case <-s.ctx.Done():
			s.teardown(st, true)
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case BeginConnect:
				if st.pending || st.conn != nil {
					msg.Reply <- connectGrant{err: ErrAlreadyConnected}
					break
				}
				st.gen++
				st.pending = true
				st.failed = nil
				st.eng = engine.New(s.opts.Engine)
				msg.Reply <- connectGrant{gen: st.gen}

			case Attach:
				s.attach(st, msg)

			case Abandon:
				// The waiter may already have been answered with a
				// reply nobody will read.
				if msg.Gen == st.gen && (st.waiter != nil || st.conn != nil) {
					s.log.Info("connect abandoned by caller")
					st.waiter = nil
					s.teardown(st, false)
				}

			case Frame:
				if msg.Gen != st.gen || st.conn == nil {
					break
				}
				s.handleFrame(st, msg.Msg)

			case RemoteClosed:
				if msg.Gen != st.gen || st.conn == nil {
					break
				}
				s.remoteClosed(st, msg.Reason)

			case Send:
				msg.Reply <- s.handleSend(st, msg)

			case UpdateSettings:
				s.opts.Engine.Settings = applySettings(s.opts.Engine.Settings, msg.Update)
				if st.eng != nil {
					s.deliverEvents(st.eng.UpdateSettings(msg.Update))
				}
				msg.Reply <- struct{}{}

			case GetView:
				if st.eng == nil {
					msg.Reply <- engine.New(s.opts.Engine).View()
					break
				}
				msg.Reply <- st.eng.View()

			case Disconnect:
				st.failed = nil
				msg.Reply <- s.teardown(st, false)

			case Shutdown:
				msg.Reply <- s.teardown(st, true)
				s.cancel()
				return
			}
		}
	}
}

func (s *Session) attach(st *state, msg Attach) {
	if msg.Gen != st.gen || !st.pending {
		if msg.Conn != nil {
			msg.Conn.Close()
		}
		msg.Reply <- connectResult{err: ErrConnectClosed}
		return
	}
	if msg.Err != nil {
		st.pending = false
		st.eng = nil
		s.log.Warn("dial failed", zap.Error(msg.Err))
		msg.Reply <- connectResult{err: fmt.Errorf("session: connect: %w", msg.Err)}
		return
	}

	gen := st.gen
	conn := msg.Conn
	conn.OnAny(func(m types.ServerMessage) {
		_ = s.post(context.Background(), Frame{Gen: gen, Msg: m})
	})
	conn.OnClose(func(r ws.CloseReason) {
		_ = s.post(context.Background(), RemoteClosed{Gen: gen, Reason: r})
	})
	st.conn = conn
	st.waiter = msg.Reply
	if err := st.eng.Opened(); err != nil {
		s.fail(st, err)
		return
	}
	conn.Start()
}

func (s *Session) handleFrame(st *state, m types.ServerMessage) {
	if m.Opcode == types.ServerError {
		if re, ok := m.Data.(types.RemoteError); ok {
			s.log.Warn("server reported error", zap.String("code", string(re.Code)), zap.String("text", re.Text()))
			if fn := s.opts.OnError; fn != nil {
				s.delivery.push(func() { fn(re) })
			}
		}
	}

	res, err := st.eng.Apply(m)
	if err != nil {
		if errors.Is(err, types.ErrPayloadMismatch) {
			s.log.Warn("ignoring mismatched payload", zap.Error(err))
			return
		}
		s.fail(st, err)
		return
	}
	s.log.Debug("applied", zap.Stringer("opcode", m.Opcode), zap.Int("events", len(res.Events)))

	for _, out := range res.Sends {
		if err := st.conn.Send(s.ctx, out.Opcode, out.Data); err != nil {
			s.log.Warn("automatic send failed", zap.Stringer("opcode", out.Opcode), zap.Error(err))
		}
	}
	if st.waiter != nil && st.eng.Snapshot() {
		st.waiter <- connectResult{view: st.eng.View()}
		st.waiter = nil
		st.pending = false
	}
	s.deliverEvents(res.Events)
}

// fail handles a protocol fault: the connection is torn down and every
// call is refused until the next Connect.
func (s *Session) fail(st *state, err error) {
	s.log.Error("protocol fault, closing connection", zap.Error(err))
	st.failed = err
	if st.waiter != nil {
		st.waiter <- connectResult{err: err}
		st.waiter = nil
	}
	s.teardown(st, false)
}

func (s *Session) remoteClosed(st *state, reason ws.CloseReason) {
	st.eng.Closed(false)
	st.conn = nil
	st.pending = false
	if st.waiter != nil {
		st.waiter <- connectResult{err: fmt.Errorf("%w: %s", ErrConnectClosed, reason)}
		st.waiter = nil
		return
	}
	s.log.Info("disconnected", zap.Stringer("reason", reason))
	if fn := s.opts.OnDisconnect; fn != nil {
		s.delivery.push(func() { fn(reason) })
	}
}

// teardown closes the transport without notifying anyone. ended marks a
// consumer-initiated close.
func (s *Session) teardown(st *state, ended bool) error {
	var err error
	if st.conn != nil {
		err = st.conn.Close()
		st.conn = nil
	}
	if st.eng != nil {
		st.eng.Closed(ended)
	}
	if st.waiter != nil {
		st.waiter <- connectResult{err: ErrClosed}
		st.waiter = nil
	}
	st.pending = false
	return err
}

func (s *Session) handleSend(st *state, msg Send) error {
	if st.failed != nil {
		return fmt.Errorf("%w: %v", ErrFailed, st.failed)
	}
	if st.eng == nil || st.conn == nil {
		return ErrNotConnected
	}
	if !st.eng.Snapshot() {
		return ErrNotReady
	}
	if msg.Gated && !st.eng.GateOpen() {
		return ErrNotReady
	}
	ctx := msg.Ctx
	if ctx == nil {
		ctx = s.ctx
	}
	return st.conn.Send(ctx, msg.Opcode, msg.Data)
}

func (s *Session) deliverEvents(events []types.Event) {
	if len(events) == 0 {
		return
	}
	sink := s.opts.Sink
	s.delivery.push(func() {
		for _, ev := range events {
			if s.ctx.Err() != nil {
				return
			}
			if sink != nil {
				sink.HandleEvent(ev)
			}
			s.events.Emit(ev.Kind(), ev)
		}
	})
}

func applySettings(cur types.Settings, u types.SettingsUpdate) types.Settings {
	if u.Language != nil {
		cur.Language = *u.Language
	}
	if u.Volume != nil {
		cur.Volume = *u.Volume
	}
	return cur
}
