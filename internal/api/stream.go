package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"inquiry-core/internal/common/errors"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Client message types accepted on the session stream.
const (
	MessageAnswer    = "answer"
	MessageQuestions = "questions"
	MessageDiagnosis = "diagnosis"
	MessageEnd       = "end"
)

// Server message types. Every request is answered by exactly one of these.
const (
	MessageTurn    = "turn"
	MessageSummary = "summary"
	MessageError   = "error"
)

type ClientMessage struct {
	Type       string `json:"type"`
	QuestionID string `json:"questionId,omitempty"`
	Answer     string `json:"answer,omitempty"`
	Max        int    `json:"max,omitempty"`
}

type ServerMessage struct {
	Type      string                `json:"type"`
	Seq       int                   `json:"seq"`
	SessionID string                `json:"sessionId"`
	Data      interface{}           `json:"data,omitempty"`
	Error     *errors.StandardError `json:"error,omitempty"`
	ServerTS  time.Time             `json:"serverTs"`
}

// handleStream serves one session over a websocket. Messages are processed in
// order, so a client sees its turns serialized the same way as over REST.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Reject unknown or closed sessions before the upgrade so clients get a
	// plain HTTP error.
	questions, err := s.svc.NextQuestions(r.Context(), id, 0)
	if err != nil {
		s.errors.WriteHTTP(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", map[string]interface{}{
			"sessionId": id,
			"error":     err.Error(),
		})
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st := &stream{server: s, conn: conn, sessionID: id}
	s.logger.Info("stream opened", map[string]interface{}{"sessionId": id})

	go st.keepAlive(ctx)

	if err := st.send(MessageQuestions, questionsResponse{SessionID: id, Questions: questions}); err != nil {
		return
	}
	st.readLoop(ctx)

	s.logger.Info("stream closed", map[string]interface{}{"sessionId": id, "messages": st.seq})
}

type stream struct {
	server    *Server
	conn      *websocket.Conn
	sessionID string
	seq       int
}

func (st *stream) readLoop(ctx context.Context) {
	cfg := st.server.config
	st.conn.SetReadLimit(cfg.MaxBodyBytes)
	_ = st.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	st.conn.SetPongHandler(func(string) error {
		return st.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))
	})

	for {
		var msg ClientMessage
		if err := st.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				st.server.logger.Warn("stream read failed", map[string]interface{}{
					"sessionId": st.sessionID,
					"error":     err.Error(),
				})
			}
			return
		}
		_ = st.conn.SetReadDeadline(time.Now().Add(cfg.PongWait))

		done, err := st.dispatch(ctx, msg)
		if err != nil {
			return
		}
		if done {
			_ = st.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
				time.Now().Add(cfg.WriteWait))
			return
		}
	}
}

// dispatch handles one client message. It reports done once the session has
// been ended; a non-nil error means the connection is unusable.
func (st *stream) dispatch(ctx context.Context, msg ClientMessage) (bool, error) {
	reqCtx, cancel := context.WithTimeout(ctx, st.server.config.RequestTimeout)
	defer cancel()
	svc := st.server.svc

	switch msg.Type {
	case MessageAnswer:
		result, err := svc.SubmitAnswer(reqCtx, st.sessionID, msg.QuestionID, msg.Answer)
		if err != nil {
			return false, st.sendError(err)
		}
		return false, st.send(MessageTurn, result)

	case MessageQuestions:
		questions, err := svc.NextQuestions(reqCtx, st.sessionID, msg.Max)
		if err != nil {
			return false, st.sendError(err)
		}
		return false, st.send(MessageQuestions, questionsResponse{SessionID: st.sessionID, Questions: questions})

	case MessageDiagnosis:
		report, err := svc.GenerateDiagnosis(reqCtx, st.sessionID)
		if err != nil {
			return false, st.sendError(err)
		}
		return false, st.send(MessageDiagnosis, report)

	case MessageEnd:
		summary, err := svc.EndSession(reqCtx, st.sessionID)
		if err != nil {
			return false, st.sendError(err)
		}
		return true, st.send(MessageSummary, summary)

	default:
		return false, st.sendError(errors.NewValidationError(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (st *stream) send(msgType string, data interface{}) error {
	st.seq++
	_ = st.conn.SetWriteDeadline(time.Now().Add(st.server.config.WriteWait))
	return st.conn.WriteJSON(ServerMessage{
		Type:      msgType,
		Seq:       st.seq,
		SessionID: st.sessionID,
		Data:      data,
		ServerTS:  time.Now().UTC(),
	})
}

func (st *stream) sendError(err error) error {
	stdErr := st.server.errors.Normalize(err)
	st.server.logger.Warn("stream request rejected", map[string]interface{}{
		"sessionId": st.sessionID,
		"errorCode": string(stdErr.Code),
		"details":   stdErr.Details,
	})

	st.seq++
	_ = st.conn.SetWriteDeadline(time.Now().Add(st.server.config.WriteWait))
	return st.conn.WriteJSON(ServerMessage{
		Type:      MessageError,
		Seq:       st.seq,
		SessionID: st.sessionID,
		Error:     stdErr,
		ServerTS:  time.Now().UTC(),
	})
}

// keepAlive pings the peer until ctx ends. WriteControl is safe to call
// concurrently with the read loop's writes.
func (st *stream) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(st.server.config.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(st.server.config.WriteWait)
			if err := st.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return
			}
		}
	}
}
