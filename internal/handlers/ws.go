// internal/handlers/ws.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/gio-lom/kalakoba/internal/game"
	"github.com/gio-lom/kalakoba/internal/models"
	"github.com/gio-lom/kalakoba/internal/session"
)

const (
	heartbeatInterval = 25 * time.Second
	livenessTimeout   = 60 * time.Second
	writeTimeout      = 5 * time.Second
)

// GameServer owns the process-global stores the gateway dispatches into.
type GameServer struct {
	Rooms    *game.RoomStore
	Sessions *session.Directory
}

// NewGameServer initializes the room registry and session directory.
func NewGameServer() *GameServer {
	return &GameServer{
		Rooms:    game.NewRoomStore(),
		Sessions: session.NewDirectory(),
	}
}

// wsClient is the per-connection dispatch state: the outbound channel plus
// the room/player binding established by room:create, room:join or
// session:restore.
type wsClient struct {
	pc     *models.PlayerConn
	room   *game.Room
	player *models.Player
}

// WSHandler accepts a WebSocket connection and runs its read loop. Every
// inbound event is resolved against the connection's bound player and
// dispatched to the owning room under that room's lock.
func WSHandler(logger *logrus.Logger, srv *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		cl := &wsClient{
			pc: &models.PlayerConn{
				Cancel:  cancel,
				OutChan: make(chan map[string]interface{}, 32),
			},
		}
		logger.WithFields(logrus.Fields{"remote": r.RemoteAddr}).Info("WebSocket connected")

		go writePump(ctx, c, cl.pc, logger)
		readPump(ctx, c, srv, cl, logger)

		srv.handleTransportClosed(cl)
		logger.WithFields(logrus.Fields{"remote": r.RemoteAddr}).Info("WebSocket disconnected")
	}
}

// readPump reads JSON events off the socket until it closes.
func readPump(ctx context.Context, c *websocket.Conn, srv *GameServer, cl *wsClient, logger *logrus.Logger) {
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				logger.Infof("WebSocket closed normally for player %s", cl.pc.PlayerID)
			} else if strings.Contains(err.Error(), "context canceled") {
				// Shutdown path, nothing to report.
			} else {
				logger.Warnf("WebSocket read error for player %s: %v", cl.pc.PlayerID, err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}

		var packet map[string]interface{}
		if err := json.Unmarshal(data, &packet); err != nil {
			logger.Warnf("Invalid JSON from player %s: %v", cl.pc.PlayerID, err)
			cl.pc.WriteError("room:error", "invalid payload")
			continue
		}
		srv.dispatch(cl, packet, logger)
	}
}

// writePump drains the connection's out-channel and keeps the transport
// alive with heartbeat pings.
func writePump(ctx context.Context, c *websocket.Conn, pc *models.PlayerConn, logger *logrus.Logger) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-pc.OutChan:
			if !ok {
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logger.Warnf("Failed to marshal outgoing message for player %s: %v", pc.PlayerID, err)
				continue
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err = c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, livenessTimeout-heartbeatInterval)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("Ping failed for player %s, assuming disconnect: %v", pc.PlayerID, err)
				return
			}
		}
	}
}

// dispatch routes one inbound event. Binding events run unbound; everything
// else requires a live binding and executes under the room lock.
func (srv *GameServer) dispatch(cl *wsClient, packet map[string]interface{}, logger *logrus.Logger) {
	action, _ := packet["type"].(string)

	// Drop a binding whose player has since been removed (kick, grace
	// expiry) so the connection can create or join again.
	srv.pruneStaleBinding(cl)

	switch action {
	case "session:restore":
		srv.handleSessionRestore(cl, packet, logger)
		return
	case "room:create":
		srv.handleRoomCreate(cl, packet, logger)
		return
	case "room:join":
		srv.handleRoomJoin(cl, packet, logger)
		return
	}

	if cl.room == nil || cl.player == nil {
		logger.Debugf("Ignoring %q from unbound connection", action)
		return
	}

	room, p := cl.room, cl.player
	room.Mu.Lock()
	defer room.Mu.Unlock()

	// Stale-socket check: a replaced transport may still deliver events.
	if current, ok := room.Players[p.ID]; !ok || current.Conn != cl.pc {
		return
	}

	switch action {
	case "player:ready":
		ready, _ := packet["ready"].(bool)
		p.IsReady = ready
		room.BroadcastRoomUpdateUnsafe()

	case "settings:update":
		if !p.IsHost {
			return
		}
		patch := packet
		if nested, ok := packet["settings"].(map[string]interface{}); ok {
			patch = nested
		}
		if room.UpdateSettingsUnsafe(patch) {
			room.BroadcastRoomUpdateUnsafe()
		}

	case "game:start":
		if !p.IsHost {
			return
		}
		room.StartGameUnsafe(p)

	case "sticks:draw":
		if !p.IsHost {
			return
		}
		room.DrawSticksUnsafe(p)

	case "player:typing":
		category, _ := packet["category"].(string)
		room.TypingUnsafe(p, category)

	case "answers:submit":
		answers := make(map[string]string)
		if raw, ok := packet["answers"].(map[string]interface{}); ok {
			for k, v := range raw {
				if s, ok := v.(string); ok {
					answers[k] = s
				}
			}
		}
		room.SubmitAnswersUnsafe(p, answers)

	case "round:stop":
		room.StopRoundUnsafe(p)

	case "answer:invalidate":
		targetStr, _ := packet["targetPlayerId"].(string)
		category, _ := packet["category"].(string)
		targetID, err := uuid.Parse(targetStr)
		if err != nil {
			return
		}
		if room.ToggleInvalidationUnsafe(p, targetID, category) {
			room.BroadcastRoomUpdateUnsafe()
		}

	case "game:nextRound":
		if !p.IsHost {
			return
		}
		room.NextRoundUnsafe(p)

	case "game:returnToLobby":
		if !p.IsHost {
			return
		}
		room.ReturnToLobbyUnsafe(p)

	case "room:leave":
		srv.leaveLocked(cl, room, p)

	case "player:kick":
		if !p.IsHost {
			return
		}
		targetStr, _ := packet["targetPlayerId"].(string)
		targetID, err := uuid.Parse(targetStr)
		if err != nil || targetID == p.ID {
			return
		}
		srv.kickLocked(room, targetID)

	case "chat:message":
		message, _ := packet["message"].(string)
		room.ChatUnsafe(p, message)

	default:
		logger.Warnf("Unknown event type %q from player %s", action, p.ID)
	}
}

// pruneStaleBinding clears a binding whose player no longer exists in the
// bound room, or whose connection handle was replaced.
func (srv *GameServer) pruneStaleBinding(cl *wsClient) {
	if cl.room == nil || cl.player == nil {
		return
	}
	cl.room.Mu.Lock()
	current, ok := cl.room.Players[cl.player.ID]
	stale := !ok || current.Conn != cl.pc
	cl.room.Mu.Unlock()
	if stale {
		cl.room = nil
		cl.player = nil
	}
}

func (srv *GameServer) handleRoomCreate(cl *wsClient, packet map[string]interface{}, logger *logrus.Logger) {
	if cl.room != nil {
		return
	}
	nick, _ := packet["nick"].(string)
	if nick == "" {
		nick = "Guest"
	}
	avatarSeed, _ := packet["avatarSeed"].(string)
	token, _ := packet["token"].(string)

	p := models.NewPlayer(nick, avatarSeed, token)
	p.Conn = cl.pc
	cl.pc.PlayerID = p.ID

	room := srv.Rooms.CreateRoom()
	srv.Sessions.Bind(token, room.Code, p.ID)

	room.Mu.Lock()
	room.AddPlayerUnsafe(p)
	cl.room = room
	cl.player = p
	cl.pc.Write(map[string]interface{}{
		"type":     "room:created",
		"code":     room.Code,
		"playerId": p.ID.String(),
	})
	room.BroadcastRoomUpdateUnsafe()
	room.Mu.Unlock()

	logger.Infof("Player %s (%s) created room %s", p.ID, nick, room.Code)
}

func (srv *GameServer) handleRoomJoin(cl *wsClient, packet map[string]interface{}, logger *logrus.Logger) {
	if cl.room != nil {
		return
	}
	code, _ := packet["code"].(string)
	nick, _ := packet["nick"].(string)
	if nick == "" {
		nick = "Guest"
	}
	avatarSeed, _ := packet["avatarSeed"].(string)
	token, _ := packet["token"].(string)

	room, ok := srv.Rooms.GetRoom(strings.ToUpper(strings.TrimSpace(code)))
	if !ok {
		cl.pc.WriteError("room:error", game.ErrRoomNotFound)
		return
	}

	p := models.NewPlayer(nick, avatarSeed, token)
	p.Conn = cl.pc

	room.Mu.Lock()
	if err := room.AddPlayerUnsafe(p); err != nil {
		room.Mu.Unlock()
		cl.pc.WriteError("room:error", err.Error())
		return
	}
	cl.pc.PlayerID = p.ID
	cl.room = room
	cl.player = p
	cl.pc.Write(map[string]interface{}{
		"type":     "room:joined",
		"code":     room.Code,
		"playerId": p.ID.String(),
	})
	room.BroadcastRoomUpdateUnsafe()
	room.Mu.Unlock()

	srv.Sessions.Bind(token, room.Code, p.ID)
	logger.Infof("Player %s (%s) joined room %s", p.ID, nick, room.Code)
}

// handleSessionRestore rebinds a connection to an existing in-room player.
// Restoration works in any phase; a mid-round reconnect receives the full
// current game state in roomData.
func (srv *GameServer) handleSessionRestore(cl *wsClient, packet map[string]interface{}, logger *logrus.Logger) {
	token, _ := packet["token"].(string)
	playerIDStr, _ := packet["playerId"].(string)
	playerID, parseErr := uuid.Parse(playerIDStr)

	var room *game.Room
	if s, ok := srv.Sessions.Lookup(token); ok {
		if r, exists := srv.Rooms.GetRoom(s.RoomCode); exists {
			room = r
			playerID = s.PlayerID
		}
	}
	if room == nil && token != "" && parseErr == nil {
		// The token map lost this entry; scan all rooms for the player and
		// repair the mapping.
		for _, r := range srv.Rooms.Rooms() {
			r.Mu.Lock()
			p, ok := r.Players[playerID]
			match := ok && p.SessionToken == token
			code := r.Code
			r.Mu.Unlock()
			if match {
				room = r
				srv.Sessions.Bind(token, code, playerID)
				logger.Infof("Session: repaired mapping for token of player %s in room %s", playerID, code)
				break
			}
		}
	}

	if room == nil {
		srv.Sessions.Evict(token)
		cl.pc.Write(map[string]interface{}{
			"type":    "session:restored",
			"success": false,
		})
		return
	}

	hadPending := srv.Sessions.HasPendingRemoval(playerID)
	srv.Sessions.CancelRemoval(playerID)

	room.Mu.Lock()
	p, ok := room.Players[playerID]
	if !ok {
		room.Mu.Unlock()
		srv.Sessions.Evict(token)
		cl.pc.Write(map[string]interface{}{
			"type":    "session:restored",
			"success": false,
		})
		return
	}

	p.IsConnected = true
	p.Conn = cl.pc
	cl.pc.PlayerID = p.ID
	cl.room = room
	cl.player = p

	roomData := room.RoomPayloadUnsafe()
	roomData["gameState"] = roomData["publicState"]
	delete(roomData, "publicState")

	cl.pc.Write(map[string]interface{}{
		"type":     "session:restored",
		"success":  true,
		"roomCode": room.Code,
		"playerId": p.ID.String(),
		"roomData": roomData,
		"playerData": map[string]interface{}{
			"answers":        p.Answers,
			"hasSubmitted":   p.HasSubmitted,
			"roundScore":     p.RoundScore,
			"totalScore":     p.TotalScore,
			"categoryScores": p.CategoryScores,
		},
	})

	if hadPending || !p.IsConnected {
		room.BroadcastOthersUnsafe(p.ID, map[string]interface{}{
			"type":     "player:reconnected",
			"playerId": p.ID.String(),
			"nick":     p.Nick,
		})
	}
	room.BroadcastRoomUpdateUnsafe()
	room.Mu.Unlock()

	logger.Infof("Player %s restored session in room %s", p.ID, room.Code)
}

// leaveLocked removes the bound player from their room. Assumes the room
// lock is held; releases nothing, the caller's defer unlocks.
func (srv *GameServer) leaveLocked(cl *wsClient, room *game.Room, p *models.Player) {
	empty := room.RemovePlayerUnsafe(p.ID)
	if !empty {
		room.BroadcastRoomUpdateUnsafe()
	}
	cl.room = nil
	cl.player = nil

	srv.Sessions.CancelRemoval(p.ID)
	srv.Sessions.Evict(p.SessionToken)
	if empty && room.OnEmpty != nil {
		// Deleting from the registry must not happen under the room lock.
		go room.OnEmpty(room.Code)
	}
}

// kickLocked removes a target player on the host's behalf. Assumes the
// room lock is held.
func (srv *GameServer) kickLocked(room *game.Room, targetID uuid.UUID) {
	target, ok := room.Players[targetID]
	if !ok {
		return
	}
	target.Send(map[string]interface{}{"type": "player:kicked"})
	empty := room.RemovePlayerUnsafe(targetID)
	if !empty {
		room.BroadcastRoomUpdateUnsafe()
	}
	srv.Sessions.CancelRemoval(targetID)
	srv.Sessions.Evict(target.SessionToken)
}

// handleTransportClosed runs after the read loop exits. The player keeps
// their seat for the reconnect grace window; only the grace timer removes
// them. A stale transport whose handle was already replaced does nothing.
func (srv *GameServer) handleTransportClosed(cl *wsClient) {
	if cl.room == nil || cl.player == nil {
		return
	}
	room, playerID := cl.room, cl.player.ID

	room.Mu.Lock()
	p, ok := room.Players[playerID]
	if !ok || p.Conn != cl.pc {
		room.Mu.Unlock()
		return
	}
	p.Conn = nil
	p.IsConnected = false
	code := room.Code
	room.BroadcastRoomUpdateUnsafe()
	room.Mu.Unlock()

	srv.Sessions.ScheduleRemoval(playerID, func() {
		srv.removeAfterGrace(code, playerID)
	})
}

// removeAfterGrace evicts a player whose reconnect window expired.
func (srv *GameServer) removeAfterGrace(code string, playerID uuid.UUID) {
	room, ok := srv.Rooms.GetRoom(code)
	if !ok {
		return
	}
	room.Mu.Lock()
	p, exists := room.Players[playerID]
	if !exists || p.IsConnected {
		room.Mu.Unlock()
		return
	}
	token := p.SessionToken
	empty := room.RemovePlayerUnsafe(playerID)
	if !empty {
		room.BroadcastRoomUpdateUnsafe()
	}
	room.Mu.Unlock()

	srv.Sessions.Evict(token)
	if empty && room.OnEmpty != nil {
		room.OnEmpty(room.Code)
	}
}
