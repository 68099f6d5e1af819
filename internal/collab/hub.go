package collab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
	"github.com/pagecrop/pagecrop/backend-go/internal/page"
	"github.com/pagecrop/pagecrop/backend-go/internal/typeid"
)

const (
	defaultFlushInterval = 5 * time.Second
	saveTimeout          = 10 * time.Second
)

// ErrHubStopped is returned by Join after Stop.
var ErrHubStopped = errors.New("hub stopped")

// DocLoader reads a scan and its pages when the first operator joins.
type DocLoader func(ctx context.Context, scanID string) (*document.ScanDocument, error)

// DocSaver persists a room's pages.
type DocSaver func(ctx context.Context, scanID string, pages []document.PageDescriptor) error

type Room struct {
	scanID   string
	clients  map[string]*Client // clientID -> client
	presence *PresenceManager
	state    *DocumentState
}

func NewRoom(scanID string, state *DocumentState) *Room {
	return &Room{
		scanID:   scanID,
		clients:  make(map[string]*Client),
		presence: NewPresenceManager(),
		state:    state,
	}
}

// Hub routes page operations between operators editing the same scan and
// writes dirty rooms back through its saver.
type Hub struct {
	mu            sync.RWMutex
	rooms         map[string]*Room // scanID -> room
	register      chan *Client
	unregister    chan *Client
	loader        DocLoader
	saver         DocSaver
	engine        page.Engine
	flushInterval time.Duration
	quit          chan struct{}
	done          chan struct{}
	stopOnce      sync.Once
}

func NewHub(loader DocLoader, saver DocSaver, engine page.Engine) *Hub {
	return &Hub{
		rooms:         make(map[string]*Room),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		loader:        loader,
		saver:         saver,
		engine:        engine,
		flushInterval: defaultFlushInterval,
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// SetFlushInterval changes how often dirty rooms are saved. Call before Run.
func (h *Hub) SetFlushInterval(d time.Duration) {
	if d > 0 {
		h.flushInterval = d
	}
}

func (h *Hub) Run() {
	ticker := time.NewTicker(h.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case <-ticker.C:
			h.Flush()
		case <-h.quit:
			h.Flush()
			close(h.done)
			return
		}
	}
}

// Stop saves every dirty room and ends Run.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.quit) })
	<-h.done
}

// Join loads the client's room if needed and registers the client.
func (h *Hub) Join(ctx context.Context, client *Client) error {
	room, err := h.ensureRoom(ctx, client.ScanID)
	if err != nil {
		return err
	}
	client.room = room

	select {
	case h.register <- client:
		return nil
	case <-h.quit:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.quit:
		client.close()
	}
}

func (h *Hub) ensureRoom(ctx context.Context, scanID string) (*Room, error) {
	if room := h.room(scanID); room != nil {
		return room, nil
	}

	doc, err := h.loader(ctx, scanID)
	if err != nil {
		return nil, fmt.Errorf("load scan %s: %w", scanID, err)
	}
	state, err := NewDocumentState(doc, h.engine)
	if err != nil {
		return nil, fmt.Errorf("load scan %s: %w", scanID, err)
	}
	return NewRoom(scanID, state), nil
}

func (h *Hub) room(scanID string) *Room {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms[scanID]
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ScanID]
	if !ok {
		room = client.room
		h.rooms[client.ScanID] = room
	}
	room.clients[client.ClientID] = client
	h.mu.Unlock()

	welcome, _ := json.Marshal(WelcomePayload{
		ClientID:    client.ClientID,
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	client.Send(&Message{Type: TypeWelcome, ScanID: client.ScanID, Payload: welcome})
	client.Send(syncMessage(room))

	// Send current presence state to new client
	if stateMsg := room.presence.StateMessage(); stateMsg != nil {
		client.Send(stateMsg)
	}

	joinPayload, _ := json.Marshal(PresenceJoinPayload{
		UserID:      client.UserID,
		DisplayName: client.DisplayName,
	})
	joinMsg := &Message{
		Type:    TypePresenceJoin,
		UserID:  client.UserID,
		Payload: joinPayload,
	}
	h.broadcastToRoom(client.ScanID, joinMsg, client.ClientID)

	slog.Info("client joined", "user", client.UserID, "scan", client.ScanID)
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	room, ok := h.rooms[client.ScanID]
	if !ok || room.clients[client.ClientID] != client {
		h.mu.Unlock()
		client.close()
		return
	}

	delete(room.clients, client.ClientID)
	client.close()
	room.presence.Remove(client.UserID)
	empty := len(room.clients) == 0
	h.mu.Unlock()

	if empty {
		// The room stays reachable until its pages are saved, so a join in
		// the meantime reuses it instead of loading older pages from the store.
		h.save(room)
		h.mu.Lock()
		if len(room.clients) == 0 && h.rooms[client.ScanID] == room {
			delete(h.rooms, client.ScanID)
		}
		h.mu.Unlock()
	} else {
		leavePayload, _ := json.Marshal(PresenceLeavePayload{UserID: client.UserID})
		h.broadcastToRoom(client.ScanID, &Message{
			Type:    TypePresenceLeave,
			UserID:  client.UserID,
			Payload: leavePayload,
		}, "")
	}

	slog.Info("client left", "user", client.UserID, "scan", client.ScanID)
}

// Flush saves every dirty room.
func (h *Hub) Flush() {
	h.mu.RLock()
	rooms := make([]*Room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.mu.RUnlock()

	for _, r := range rooms {
		h.save(r)
	}
}

func (h *Hub) save(room *Room) {
	if !room.state.Dirty() {
		return
	}
	snap := room.state.Snapshot()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := h.saver(ctx, room.scanID, snap.Pages); err != nil {
		slog.Warn("save room failed", "scan", room.scanID, "error", err)
		return
	}
	room.state.MarkSaved(snap.ServerSeq)
	slog.Debug("room saved", "scan", room.scanID, "seq", snap.ServerSeq)
}

// PagesChanged replaces a live room's pages after they were written
// outside the room and resyncs every client.
func (h *Hub) PagesChanged(scanID string, pages []document.PageDescriptor) {
	room := h.room(scanID)
	if room == nil {
		return
	}
	if _, err := room.state.Replace(pages); err != nil {
		slog.Warn("replace room pages", "scan", scanID, "error", err)
		return
	}
	h.broadcastToRoom(scanID, syncMessage(room), "")
}

func (h *Hub) handleMessage(sender *Client, msg *Message) {
	switch msg.Type {
	case TypePresenceUpdate:
		h.handlePresenceUpdate(sender, msg)
	case TypeDocSync:
		if room := h.room(sender.ScanID); room != nil {
			sender.Send(syncMessage(room))
		}
	case TypePageEdit, TypePageAdd, TypePageRemove:
		h.handleOperation(sender, msg)
	default:
		slog.Warn("unknown message type", "type", msg.Type, "user", sender.UserID)
		sender.Send(errorMessage(fmt.Sprintf("unknown message type %q", msg.Type)))
	}
}

func (h *Hub) handlePresenceUpdate(sender *Client, msg *Message) {
	var presence PresencePayload
	if err := json.Unmarshal(msg.Payload, &presence); err != nil {
		slog.Warn("invalid presence payload", "error", err)
		return
	}

	presence.DisplayName = sender.DisplayName

	room := h.room(sender.ScanID)
	if room == nil {
		return
	}

	room.presence.Update(sender.UserID, &presence)

	outPayload, _ := json.Marshal(presence)
	outMsg := &Message{
		Type:    TypePresenceUpdate,
		UserID:  sender.UserID,
		Payload: outPayload,
	}
	h.broadcastToRoom(sender.ScanID, outMsg, sender.ClientID)
}

func (h *Hub) handleOperation(sender *Client, msg *Message) {
	var op Operation
	if err := json.Unmarshal(msg.Payload, &op); err != nil {
		slog.Warn("invalid operation payload", "error", err, "user", sender.UserID)
		sender.Send(nackMessage(OperationNackPayload{Reason: "invalid operation payload"}))
		return
	}
	op.Type = msg.Type
	if op.ID == "" {
		op.ID = typeid.NewOpID()
	}

	room := h.room(sender.ScanID)
	if room == nil {
		return
	}

	res, err := room.state.ApplyOperation(op)
	if err != nil {
		slog.Debug("operation rejected", "op", op.ID, "type", op.Type, "error", err)
		nack := OperationNackPayload{OperationID: op.ID, Reason: err.Error()}
		if d, ok := room.state.Page(op.PageID); ok {
			nack.Page = d
		}
		sender.Send(nackMessage(nack))
		return
	}

	ackPayload, _ := json.Marshal(OperationAckPayload{
		OperationID:     op.ID,
		ServerSeq:       res.ServerSeq,
		ServerTimestamp: GetServerTimestamp(),
		Page:            res.Page,
		Changed:         res.Changed,
		Clamped:         res.Clamped,
	})
	sender.Send(&Message{Type: TypePageAck, Seq: res.ServerSeq, Payload: ackPayload})

	if !res.Changed {
		return
	}
	if op.Type == TypePageRemove {
		room.presence.ForgetPage(op.PageID)
	}

	bcPayload, _ := json.Marshal(OperationBroadcastPayload{
		Operation: op,
		UserID:    sender.UserID,
		ServerSeq: res.ServerSeq,
		Page:      res.Page,
	})
	h.broadcastToRoom(sender.ScanID, &Message{
		Type:    TypePageBroadcast,
		UserID:  sender.UserID,
		Seq:     res.ServerSeq,
		Payload: bcPayload,
	}, sender.ClientID)
}

func (h *Hub) broadcastToRoom(scanID string, msg *Message, excludeClientID string) {
	h.mu.RLock()
	room, ok := h.rooms[scanID]
	if !ok {
		h.mu.RUnlock()
		return
	}

	clients := make([]*Client, 0, len(room.clients))
	for _, c := range room.clients {
		if c.ClientID != excludeClientID {
			clients = append(clients, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.Send(msg)
	}
}

func syncMessage(room *Room) *Message {
	snap := room.state.Snapshot()
	payload, _ := json.Marshal(snap)
	return &Message{Type: TypeDocSync, ScanID: room.scanID, Seq: snap.ServerSeq, Payload: payload}
}

func nackMessage(p OperationNackPayload) *Message {
	payload, _ := json.Marshal(p)
	return &Message{Type: TypePageNack, Payload: payload}
}

func errorMessage(reason string) *Message {
	payload, _ := json.Marshal(map[string]string{"error": reason})
	return &Message{Type: TypeError, Payload: payload}
}
