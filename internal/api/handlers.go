package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"scriptcollab/internal/config"
	"scriptcollab/internal/metrics"
	"scriptcollab/internal/models"
	"scriptcollab/internal/session"
	"scriptcollab/internal/utils"
)

type Handlers struct {
	log      *zap.Logger
	cfg      *config.Config
	hub      *session.Hub
	upgrader websocket.Upgrader
}

func NewHandlers(log *zap.Logger, cfg *config.Config, hub *session.Hub) *Handlers {
	return &Handlers{
		log: log,
		cfg: cfg,
		hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return cfg.OriginAllowed(r.Header.Get("Origin")) },
		},
	}
}

func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

func (h *Handlers) Stats(w http.ResponseWriter, _ *http.Request) {
	utils.JSON(w, http.StatusOK, h.hub.Stats())
}

func (h *Handlers) Collaborators(w http.ResponseWriter, r *http.Request) {
	scriptID := chi.URLParam(r, "scriptId")
	utils.JSON(w, http.StatusOK, models.RoomStatus{
		ScriptID:      scriptID,
		Collaborators: h.hub.Collaborators(scriptID),
	})
}

// Broadcast lets the REST tier push a server-originated frame to a room.
func (h *Handlers) Broadcast(w http.ResponseWriter, r *http.Request) {
	scriptID := chi.URLParam(r, "scriptId")
	var req models.BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Type == "" {
		utils.JSONError(w, http.StatusBadRequest, "type is required")
		return
	}
	delivered := h.hub.BroadcastToRoom(scriptID, models.WSFrame{Type: req.Type, Data: req.Data})
	utils.JSON(w, http.StatusOK, models.BroadcastResponse{Delivered: delivered})
}

/*** Collab WebSocket: presence + event relay ***/
func (h *Handlers) CollabWS(w http.ResponseWriter, r *http.Request) {
	token, err := utils.TokenFromRequest(r)
	if err != nil {
		metrics.AuthFailed("missing_token")
		utils.JSONError(w, http.StatusUnauthorized, "authentication required")
		return
	}
	userID, err := utils.VerifyToken(token, h.cfg.JWTSecret)
	if err != nil {
		reason := "invalid_token"
		if errors.Is(err, utils.ErrMissingIdentity) {
			reason = "missing_identity"
		}
		metrics.AuthFailed(reason)
		h.log.Warn("websocket authentication failed", zap.String("remote", r.RemoteAddr), zap.Error(err))
		utils.JSONError(w, http.StatusUnauthorized, "authentication failed")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := session.NewClient(conn, userID, h.cfg.SendBuffer)
	h.hub.Connect(client)
	defer h.hub.Disconnect(client)

	client.Send(models.WSFrame{
		Type: models.FrameConnected,
		Data: models.Connected{SessionID: client.SessionID, UserID: userID},
	})
	go client.WritePump(h.cfg.WriteWait, h.cfg.PingInterval)

	h.log.Info("client connected", zap.String("userId", userID), zap.String("session", client.SessionID))
	h.readLoop(client)
}

// readLoop processes frames in arrival order until the connection fails.
func (h *Handlers) readLoop(client *session.Client) {
	conn := client.Conn
	conn.SetReadLimit(h.cfg.MaxMessageBytes)
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.PongWait))
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket closed unexpectedly", zap.String("session", client.SessionID), zap.Error(err))
			}
			return
		}

		var frame models.InboundFrame
		if err := json.Unmarshal(msg, &frame); err != nil {
			metrics.EventDropped("malformed_frame")
			h.log.Debug("ignoring malformed frame", zap.String("session", client.SessionID), zap.Error(err))
			continue
		}
		ev, err := session.DecodeEvent(frame)
		if err != nil {
			reason := "malformed_event"
			if errors.Is(err, session.ErrUnknownEvent) {
				reason = "unknown_event"
			}
			metrics.EventDropped(reason)
			h.log.Debug("ignoring frame", zap.String("type", frame.Type), zap.Error(err))
			continue
		}
		h.hub.Handle(client, ev)
	}
}
