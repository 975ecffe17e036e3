package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pefman/w40k-odds/internal/engine"
	"github.com/pefman/w40k-odds/internal/form"
	"github.com/pefman/w40k-odds/internal/logger"
)

const writeWait = 10 * time.Second

// wsMsg is the envelope of every message in both directions.
type wsMsg struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type clientIn struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Client payloads.
type (
	loadIn struct {
		Query string                  `json:"query"`
		Forms map[string][]form.Field `json:"forms"`
	}
	submitIn struct {
		Forms map[string][]form.Field `json:"forms"`
	}
	stepIn struct {
		Value *int `json:"value"`
	}
	selectIn struct {
		Indices []int `json:"indices"`
	}
	popStateIn struct {
		URL string `json:"url"`
	}
)

// session is one browser page: a websocket plus the engine serving it. It is the engine's Sink.
type session struct {
	id   string
	conn *websocket.Conn
	srv  *Server
	eng  *engine.Engine
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	writeMu sync.Mutex
}

func (s *Server) newSession(conn *websocket.Conn) (*session, error) {
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(s.ctx)
	sess := &session{
		id:     id,
		conn:   conn,
		srv:    s,
		log:    logger.With("session", id),
		ctx:    ctx,
		cancel: cancel,
	}
	hist, err := engine.NewHistory(s.variant.Param, engine.HistoryMode(s.cfg.History.Mode), s.cfg.History.SnapshotCapacity)
	if err != nil {
		cancel()
		return nil, err
	}
	controls := s.cfg.Page.Controls
	sess.eng, err = engine.New(s.sim, sess, engine.Options{
		Variant:   s.variant,
		Controls:  &controls,
		History:   hist,
		Timeout:   s.cfg.Simulation.Timeout(),
		RenderSVG: true,
		SessionID: id,
	})
	if err != nil {
		cancel()
		return nil, err
	}
	if s.cfg.Server.MaxMessageSize > 0 {
		conn.SetReadLimit(s.cfg.Server.MaxMessageSize)
	}
	return sess, nil
}

// run serves the session until the socket or the server goes away.
func (sess *session) run() {
	sess.srv.register(sess)
	defer func() {
		sess.close()
		sess.srv.unregister(sess.id)
		sess.log.Info("ws: closed")
	}()

	go func() {
		if err := sess.eng.Run(sess.ctx); err != nil && err != context.Canceled {
			sess.log.Warn("engine stopped", "error", err)
		}
	}()
	go func() {
		<-sess.ctx.Done()
		// Unblocks the reader below.
		_ = sess.conn.Close()
	}()

	sess.send("hello", map[string]any{
		"session":  sess.id,
		"variant":  sess.eng.Variant(),
		"controls": sess.srv.cfg.Page.Controls,
	})
	sess.read()
}

func (sess *session) close() {
	sess.cancel()
	sess.eng.Close()
}

func (sess *session) read() {
	for {
		var in clientIn
		if err := sess.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				sess.log.Warn("ws: read error", "error", err)
			}
			return
		}
		ev, err := decodeEvent(in)
		if err != nil {
			sess.log.Warn("ws: bad message", "type", in.Type, "error", err)
			continue
		}
		sess.log.Debug("ws: recv", "type", in.Type)
		if err := sess.eng.Post(ev); err != nil {
			return
		}
	}
}

type unknownTypeError string

func (e unknownTypeError) Error() string { return "unknown message type " + string(e) }

// decodeEvent maps a client message onto an engine event.
func decodeEvent(in clientIn) (engine.Event, error) {
	unmarshal := func(v any) error {
		if len(in.Data) == 0 {
			return nil
		}
		return json.Unmarshal(in.Data, v)
	}
	switch engine.EventKind(in.Type) {
	case engine.KindLoad:
		var d loadIn
		err := unmarshal(&d)
		return engine.Event{Kind: engine.KindLoad, Query: d.Query, Forms: d.Forms}, err
	case engine.KindSubmit:
		var d submitIn
		err := unmarshal(&d)
		return engine.Event{Kind: engine.KindSubmit, Forms: d.Forms}, err
	case engine.KindStep:
		var d stepIn
		err := unmarshal(&d)
		return engine.Event{Kind: engine.KindStep, Step: d.Value}, err
	case engine.KindSelect:
		var d selectIn
		err := unmarshal(&d)
		return engine.Event{Kind: engine.KindSelect, Indices: d.Indices}, err
	case engine.KindPopState:
		var d popStateIn
		err := unmarshal(&d)
		return engine.Event{Kind: engine.KindPopState, URL: d.URL}, err
	}
	return engine.Event{}, unknownTypeError(in.Type)
}

func (sess *session) send(typ string, data any) {
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	_ = sess.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := sess.conn.WriteJSON(wsMsg{Type: typ, Data: data}); err != nil {
		sess.log.Warn("ws: write error", "type", typ, "error", err)
	}
}

// ========================= engine.Sink =========================

func (sess *session) DrawRange(rs engine.RangeState)    { sess.send("range", rs) }
func (sess *session) DrawStep(f engine.StepFrame)       { sess.send("step", f) }
func (sess *session) DrawShots(f engine.ShotsFrame)     { sess.send("shots", f) }
func (sess *session) DrawOverlay(f engine.OverlayFrame) { sess.send("overlay", f) }
func (sess *session) DrawModifyTree(html string)        { sess.send("tree", map[string]string{"html": html}) }
func (sess *session) PushHistory(url string)            { sess.send("history", map[string]string{"url": url}) }
func (sess *session) Reload()                           { sess.send("reload", nil) }
func (sess *session) ScrollToResults()                  { sess.send("scroll", nil) }
