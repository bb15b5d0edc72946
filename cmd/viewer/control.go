package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"buildcraft.ai/internal/protocol"
)

// controlClient is one placement session. Only the viewer loop writes to it.
type controlClient struct {
	conn    *websocket.Conn
	byKind  map[string]string
	seq     int
	results chan protocol.ResultMsg
}

func dialControl(ctx context.Context, base *url.URL, types []protocol.BuildingTypeRef) (*controlClient, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL(base, "/v1/ws"), nil)
	if err != nil {
		return nil, fmt.Errorf("control: %w", err)
	}
	hello := protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "viewer"}
	if err := conn.WriteJSON(hello); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("control: %w", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var welcome protocol.WelcomeMsg
	if err := conn.ReadJSON(&welcome); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("control: %w", err)
	}
	if welcome.Type != protocol.TypeWelcome {
		_ = conn.Close()
		return nil, fmt.Errorf("control: expected WELCOME, got %q", welcome.Type)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := &controlClient{
		conn:    conn,
		byKind:  typesByKind(types),
		results: make(chan protocol.ResultMsg, 16),
	}
	go c.readResults()
	return c, nil
}

// typesByKind maps each kind to the first catalog type carrying it.
func typesByKind(types []protocol.BuildingTypeRef) map[string]string {
	out := map[string]string{}
	for _, t := range types {
		if _, ok := out[t.Kind]; !ok {
			out[t.Kind] = t.ID
		}
	}
	return out
}

func (c *controlClient) readResults() {
	defer close(c.results)
	for {
		_, b, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var r protocol.ResultMsg
		if err := json.Unmarshal(b, &r); err != nil || r.Type != protocol.TypeResult {
			continue
		}
		select {
		case c.results <- r:
		default:
		}
	}
}

func (c *controlClient) place(kind string, cell [2]int) error {
	typeID, ok := c.byKind[kind]
	if !ok {
		return fmt.Errorf("catalog has no %s type", kind)
	}
	return c.send(protocol.TypePlace, typeID, &cell)
}

func (c *controlClient) send(typ, typeID string, cell *[2]int) error {
	c.seq++
	msg := protocol.ControlMsg{
		Type:            typ,
		ProtocolVersion: protocol.Version,
		ID:              fmt.Sprintf("v%d", c.seq),
		TypeID:          typeID,
		Cell:            cell,
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(msg)
}

func (c *controlClient) Close() error { return c.conn.Close() }
