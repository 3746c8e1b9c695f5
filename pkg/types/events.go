package types

// EventKind names a domain event forwarded to the minigame.
type EventKind string

const (
	EventSessionReady         EventKind = "ready"
	EventSettingsUpdated      EventKind = "update_settings"
	EventGameStarted          EventKind = "start_game"
	EventPlayerJoined         EventKind = "player_ready"
	EventPlayerLeft           EventKind = "player_left"
	EventGameStateUpdated     EventKind = "updated_game_state"
	EventPlayerStateUpdated   EventKind = "updated_player_state"
	EventGameMessage          EventKind = "received_game_message"
	EventPlayerMessage        EventKind = "received_player_message"
	EventPrivateMessage       EventKind = "received_private_message"
	EventBinaryGameMessage    EventKind = "received_binary_game_message"
	EventBinaryPlayerMessage  EventKind = "received_binary_player_message"
	EventBinaryPrivateMessage EventKind = "received_binary_private_message"
)

// Event is a domain event. The concrete type is fixed by Kind.
type Event interface {
	Kind() EventKind
}

// Sink receives every forwarded domain event, in order.
type Sink interface {
	HandleEvent(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

func (f SinkFunc) HandleEvent(e Event) { f(e) }

// SessionReady is always the first forwarded event of a minigame session.
type SessionReady struct {
	Settings   Settings
	User       string
	Room       Room
	Players    []Player
	JoinedLate bool
}

type SettingsUpdated struct {
	Settings SettingsUpdate
}

type GameStarted struct {
	JoinedLate bool
}

type PlayerJoined struct {
	Player     Player
	JoinedLate bool
}

type PlayerLeft struct {
	User string
}

type GameStateUpdated struct {
	State State
}

type PlayerStateUpdated struct {
	User  string
	State State
}

type GameMessage struct {
	Message State
}

type PlayerMessageReceived struct {
	User    string
	Message State
}

type PrivateMessageReceived struct {
	FromUser string
	ToUser   string
	Message  State
}

type BinaryGameMessage struct {
	Message []byte
}

type BinaryPlayerMessageReceived struct {
	User    string
	Message []byte
}

type BinaryPrivateMessageReceived struct {
	FromUser string
	ToUser   string
	Message  []byte
}

func (SessionReady) Kind() EventKind                 { return EventSessionReady }
func (SettingsUpdated) Kind() EventKind              { return EventSettingsUpdated }
func (GameStarted) Kind() EventKind                  { return EventGameStarted }
func (PlayerJoined) Kind() EventKind                 { return EventPlayerJoined }
func (PlayerLeft) Kind() EventKind                   { return EventPlayerLeft }
func (GameStateUpdated) Kind() EventKind             { return EventGameStateUpdated }
func (PlayerStateUpdated) Kind() EventKind           { return EventPlayerStateUpdated }
func (GameMessage) Kind() EventKind                  { return EventGameMessage }
func (PlayerMessageReceived) Kind() EventKind        { return EventPlayerMessage }
func (PrivateMessageReceived) Kind() EventKind       { return EventPrivateMessage }
func (BinaryGameMessage) Kind() EventKind            { return EventBinaryGameMessage }
func (BinaryPlayerMessageReceived) Kind() EventKind  { return EventBinaryPlayerMessage }
func (BinaryPrivateMessageReceived) Kind() EventKind { return EventBinaryPrivateMessage }
