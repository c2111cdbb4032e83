package realtime

import (
	"log/slog"
	"sync"
	"time"

	"github.com/nicpaesk/killer-game/internal/model"
)

// binding is one player identity held by a connection
type binding struct {
	playerID model.PlayerID
	token    string
}

// Registry tracks which connections are in which game room and which
// connection currently speaks for each player. It is a disposable cache
// over storage; clients rebuild it by reclaiming after a restart.
type Registry struct {
	mu        sync.RWMutex
	rooms     map[model.GameCode]map[*Client]struct{}
	bySession map[string]*Client
	byPlayer  map[model.PlayerID]*Client
	// identities holds each client's binding per game
	identities map[*Client]map[model.GameCode]binding

	now    func() time.Time
	logger *slog.Logger
}

// NewRegistry creates an empty registry
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		rooms:      make(map[model.GameCode]map[*Client]struct{}),
		bySession:  make(map[string]*Client),
		byPlayer:   make(map[model.PlayerID]*Client),
		identities: make(map[*Client]map[model.GameCode]binding),
		now:        time.Now,
		logger:     logger.With(slog.String("component", "realtime")),
	}
}

// Join adds the client to a game's room
func (r *Registry) Join(c *Client, code model.GameCode) {
	r.mu.Lock()
	room, ok := r.rooms[code]
	if !ok {
		room = make(map[*Client]struct{})
		r.rooms[code] = room
	}
	room[c] = struct{}{}
	size := len(room)
	r.mu.Unlock()

	r.logger.Debug("client joined room",
		slog.String("client_id", c.id),
		slog.String("game_code", string(code)),
		slog.Int("room_size", size),
	)
}

// InRoom reports whether the client has joined the game's room
func (r *Registry) InRoom(c *Client, code model.GameCode) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.rooms[code][c]
	return ok
}

// Bind makes c the connection for playerID under token. Any identity c
// already held in that game is released first, and any other connection
// bound to the same player or token loses it.
func (r *Registry) Bind(c *Client, code model.GameCode, playerID model.PlayerID, token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ids, ok := r.identities[c]; ok {
		if prev, ok := ids[code]; ok {
			r.unbindLocked(c, code, prev)
		}
	}
	if old, ok := r.byPlayer[playerID]; ok && old != c {
		for oldCode, b := range r.identities[old] {
			if b.playerID == playerID {
				r.unbindLocked(old, oldCode, b)
			}
		}
	}

	r.bySession[token] = c
	r.byPlayer[playerID] = c
	ids, ok := r.identities[c]
	if !ok {
		ids = make(map[model.GameCode]binding)
		r.identities[c] = ids
	}
	ids[code] = binding{playerID: playerID, token: token}
}

// Release drops the identity c holds in a game, if any
func (r *Registry) Release(c *Client, code model.GameCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.identities[c][code]; ok {
		r.unbindLocked(c, code, b)
	}
}

// ReleaseSession drops whichever binding uses token and returns the
// connection that held it
func (r *Registry) ReleaseSession(token string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.bySession[token]
	if !ok {
		return nil
	}
	for code, b := range r.identities[c] {
		if b.token == token {
			r.unbindLocked(c, code, b)
		}
	}
	return c
}

// Identity returns the player and token c holds in a game
func (r *Registry) Identity(c *Client, code model.GameCode) (model.PlayerID, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.identities[c][code]
	return b.playerID, b.token, ok
}

// ClientForSession returns the connection bound to token, or nil
func (r *Registry) ClientForSession(token string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySession[token]
}

// ClientForPlayer returns the connection bound to a player, or nil
func (r *Registry) ClientForPlayer(playerID model.PlayerID) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byPlayer[playerID]
}

// Leave removes a disconnecting client from every room and binding.
// Rooms left empty are removed.
func (r *Registry) Leave(c *Client) {
	r.mu.Lock()
	for code, b := range r.identities[c] {
		r.unbindLocked(c, code, b)
	}
	delete(r.identities, c)

	removed := 0
	for code, room := range r.rooms {
		if _, ok := room[c]; !ok {
			continue
		}
		delete(room, c)
		if len(room) == 0 {
			delete(r.rooms, code)
			removed++
		}
	}
	r.mu.Unlock()

	r.logger.Info("client disconnected",
		slog.String("client_id", c.id),
		slog.Duration("connection_duration", r.now().Sub(c.connectedAt)),
	)
	if removed > 0 {
		r.logger.Debug("empty rooms removed", slog.Int("removed", removed))
	}
}

// unbindLocked removes a binding, only touching lookup entries that still
// point at c
func (r *Registry) unbindLocked(c *Client, code model.GameCode, b binding) {
	if r.bySession[b.token] == c {
		delete(r.bySession, b.token)
	}
	if r.byPlayer[b.playerID] == c {
		delete(r.byPlayer, b.playerID)
	}
	if ids, ok := r.identities[c]; ok {
		delete(ids, code)
	}
}

// Send queues an event for one connection
func (r *Registry) Send(c *Client, event model.Event) {
	if !c.enqueue(event) {
		r.logger.Warn("ws message dropped - client buffer full",
			slog.String("client_id", c.id),
			slog.String("event", string(event.Type)))
	}
}

// SendToPlayer delivers an event to the player's bound connection. The
// event is dropped if the player is offline.
func (r *Registry) SendToPlayer(playerID model.PlayerID, event model.Event) bool {
	c := r.ClientForPlayer(playerID)
	if c == nil {
		r.logger.Debug("private event dropped - player offline",
			slog.String("player_id", string(playerID)),
			slog.String("event", string(event.Type)))
		return false
	}
	r.Send(c, event)
	return true
}

// Broadcast delivers an event to every connection in the game's room
func (r *Registry) Broadcast(code model.GameCode, event model.Event) {
	r.mu.RLock()
	clients := make([]*Client, 0, len(r.rooms[code]))
	for c := range r.rooms[code] {
		clients = append(clients, c)
	}
	r.mu.RUnlock()

	dropped := 0
	for _, c := range clients {
		if !c.enqueue(event) {
			dropped++
		}
	}
	if dropped > 0 {
		r.logger.Warn("ws broadcast partial failure",
			slog.String("game_code", string(code)),
			slog.Int("sent", len(clients)-dropped),
			slog.Int("dropped", dropped))
	}
}

// RoomSize returns the number of connections in a game's room
func (r *Registry) RoomSize(code model.GameCode) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[code])
}

// RoomCount returns the number of rooms with at least one connection
func (r *Registry) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
