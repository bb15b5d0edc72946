// Package ws serves the placement-input websocket: a HELLO handshake followed by PLACE,
// BULLDOZE, SPAWN_WORKER and CANCEL_ALL requests, each answered by one RESULT.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"buildcraft.ai/internal/protocol"
	"buildcraft.ai/internal/sim/world"
)

const (
	handshakeTimeout = 5 * time.Second
	readTimeout      = 60 * time.Second
	writeTimeout     = 5 * time.Second
	// DefaultRequestTimeout bounds how long a request may wait for its tick.
	DefaultRequestTimeout = 2 * time.Second
)

type Server struct {
	world *world.World
	log   *zap.Logger

	upgrader       websocket.Upgrader
	requestTimeout time.Duration
}

func NewServer(w *world.World, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		world:          w,
		log:            log,
		requestTimeout: DefaultRequestTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		sid, out := s.handshake(conn)
		if sid == "" {
			return
		}
		log := s.log.With(zap.String("session", sid))
		log.Info("control client connected", zap.String("remote", r.RemoteAddr))

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine.
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case <-ctx.Done():
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						cancel()
						_ = conn.Close() // unblock the reader
						return
					}
				}
			}
		}()

		// Reader loop.
		var pending sync.WaitGroup
		for {
			_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			req, id, rej := decodeControl(msg, sid)
			if rej != nil {
				send(ctx, out, *rej)
				continue
			}
			resp := make(chan world.Result, 1)
			req.Resp = resp
			select {
			case s.world.Inbox() <- req:
			default:
				send(ctx, out, reject(id, protocol.ErrWorldBusy, "world inbox full"))
				continue
			}
			pending.Add(1)
			go func() {
				defer pending.Done()
				select {
				case res := <-resp:
					send(ctx, out, ResultFor(id, res))
				case <-time.After(s.requestTimeout):
					send(ctx, out, reject(id, protocol.ErrWorldBusy, "timed out waiting for the world"))
				case <-ctx.Done():
				}
			}()
		}

		cancel()
		pending.Wait()
		<-writerDone
		log.Info("control client disconnected")
	}
}

func (s *Server) handshake(conn *websocket.Conn) (sessionID string, out chan []byte) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		return "", nil
	}

	if err := protocol.Validate(msg); err != nil {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}
	var hello protocol.HelloMsg
	if err := json.Unmarshal(msg, &hello); err != nil || hello.Type != protocol.TypeHello {
		closePolicy(conn, "expected HELLO")
		return "", nil
	}
	if hello.ProtocolVersion != protocol.Version {
		closePolicy(conn, "bad protocol_version")
		return "", nil
	}

	maxQ := hello.MaxQueue
	if maxQ <= 0 {
		maxQ = 16
	}
	if maxQ > 256 {
		maxQ = 256
	}
	out = make(chan []byte, maxQ)

	sessionID = uuid.NewString()
	welcome := protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		SessionID:       sessionID,
		WorldID:         s.world.Config().ID,
		WorldParams:     s.world.Params(),
		Catalog:         s.world.CatalogRef(),
	}
	if err := writeJSON(conn, welcome); err != nil {
		return "", nil
	}
	s.log.Debug("welcomed", zap.String("session", sessionID), zap.String("client", hello.ClientName))
	return sessionID, out
}

// decodeControl validates msg and converts it into a world request. A non-nil result is
// the rejection to send back instead.
func decodeControl(msg []byte, actor string) (world.Request, string, *protocol.ResultMsg) {
	base, err := protocol.DecodeBase(msg)
	if err != nil {
		r := reject("", protocol.ErrProtoBadRequest, "malformed json")
		return world.Request{}, "", &r
	}
	var ctl protocol.ControlMsg
	_ = json.Unmarshal(msg, &ctl)
	if !protocol.IsControl(base.Type) {
		r := reject(ctl.ID, protocol.ErrProtoBadRequest, "unsupported message type")
		return world.Request{}, ctl.ID, &r
	}
	if err := protocol.Validate(msg); err != nil {
		r := reject(ctl.ID, protocol.ErrProtoBadRequest, err.Error())
		return world.Request{}, ctl.ID, &r
	}
	if ctl.ProtocolVersion != protocol.Version {
		r := reject(ctl.ID, protocol.ErrProtoBadRequest, "bad protocol_version")
		return world.Request{}, ctl.ID, &r
	}
	return RequestFrom(ctl, actor), ctl.ID, nil
}

func send(ctx context.Context, out chan<- []byte, v protocol.ResultMsg) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case out <- b:
	case <-ctx.Done():
	}
}

func closePolicy(conn *websocket.Conn, reason string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), time.Now().Add(time.Second))
}

func writeJSON(conn *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
