package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"mathfly-quiz-service/internal/app"
	"mathfly-quiz-service/internal/domain"
)

// Authenticator resolves the caller of a request.
type Authenticator interface {
	FromRequest(r *http.Request) (domain.Identity, error)
}

// UserDirectory remembers display names for the ranking.
type UserDirectory interface {
	RememberUser(ctx context.Context, identity domain.Identity) error
}

// QuizHandler runs one session orchestrator per websocket connection.
type QuizHandler struct {
	auth     Authenticator
	deps     app.EngineDeps
	gate     app.TierGate
	users    UserDirectory
	opts     app.OrchestratorOptions
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewQuizHandler(auth Authenticator, deps app.EngineDeps, gate app.TierGate, users UserDirectory, opts app.OrchestratorOptions, logger *zap.Logger) *QuizHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	if deps.Logger == nil {
		deps.Logger = logger
	}
	return &QuizHandler{
		auth:   auth,
		deps:   deps,
		gate:   gate,
		users:  users,
		opts:   opts,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Key string `json:"key"`
}

// ServeWS upgrades the request and drives the quiz screen for the caller.
func (h *QuizHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	identity, err := h.auth.FromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}
	tier := domain.TierFacil
	if raw := r.URL.Query().Get("tier"); raw != "" {
		tier, err = domain.ParseTier(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("ws upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if h.users != nil {
		if err := h.users.RememberUser(ctx, identity); err != nil {
			h.logger.Warn("remember user failed", zap.String("user_id", identity.UserID), zap.Error(err))
		}
	}

	engine := app.NewEngine(identity, h.deps)
	orchestrator := app.NewOrchestrator(engine, h.gate, identity, tier, h.opts)
	defer orchestrator.Close()

	send := make(chan app.Event, 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("ws write error", zap.Error(err))
				cancel()
				return
			}
		}
	}()
	defer func() {
		close(send)
		<-writerDone
	}()

	commands := make(chan inboundMessage)
	go func() {
		defer close(commands)
		for {
			var inbound inboundMessage
			if err := conn.ReadJSON(&inbound); err != nil {
				return
			}
			select {
			case commands <- inbound:
			case <-ctx.Done():
				return
			}
		}
	}()

	emit := func(events []app.Event) bool {
		for _, ev := range events {
			select {
			case send <- ev:
			case <-ctx.Done():
				return false
			}
		}
		return true
	}

	if !emit(orchestrator.Enter(ctx)) {
		return
	}
	for {
		timer, generation := orchestrator.Timer()
		var events []app.Event
		select {
		case <-ctx.Done():
			return
		case <-timer:
			events = orchestrator.Tick(generation)
		case inbound, ok := <-commands:
			if !ok {
				return
			}
			events = h.dispatch(ctx, orchestrator, inbound)
		}
		if !emit(events) {
			return
		}
	}
}

func (h *QuizHandler) dispatch(ctx context.Context, o *app.Orchestrator, inbound inboundMessage) []app.Event {
	switch inbound.Type {
	case "start":
		return o.Start(ctx)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			return []app.Event{errorEvent(errors.New("invalid answer payload"))}
		}
		return o.Answer(payload.Key)
	case "next":
		return o.Next(ctx)
	case "reset":
		return o.Reset()
	default:
		return []app.Event{errorEvent(errors.New("unsupported message type"))}
	}
}

func errorEvent(err error) app.Event {
	return app.Event{Type: app.EventError, Payload: app.ErrorPayload{Message: err.Error()}}
}
