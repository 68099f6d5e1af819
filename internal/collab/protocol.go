package collab

import (
	"encoding/json"

	"github.com/pagecrop/pagecrop/backend-go/internal/document"
)

type Message struct {
	Type     string          `json:"type"`
	ScanID   string          `json:"scanId,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	UserID   string          `json:"userId,omitempty"`
	Seq      int64           `json:"seq,omitempty"`
	Payload  json.RawMessage `json:"payload"`
}

// PresencePayload tells other operators which page and field someone is on.
type PresencePayload struct {
	PageID      string `json:"pageId,omitempty"`
	Field       string `json:"field,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

type PresenceStatePayload struct {
	Presences map[string]*PresencePayload `json:"presences"`
}

type PresenceJoinPayload struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

type PresenceLeavePayload struct {
	UserID string `json:"userId"`
}

const (
	TypePresenceUpdate = "presence.update"
	TypePresenceState  = "presence.state"
	TypePresenceJoin   = "presence.join"
	TypePresenceLeave  = "presence.leave"
	TypeError          = "error"

	// Connection
	TypeWelcome = "welcome"

	// Document sync
	TypeDocSync = "doc.sync"

	// Page operations
	TypePageEdit      = "page.edit"
	TypePageAdd       = "page.add"
	TypePageRemove    = "page.remove"
	TypePageAck       = "page.ack"
	TypePageNack      = "page.nack"
	TypePageBroadcast = "page.broadcast"
)

// Operation is one page mutation submitted by a client. Type repeats the
// message type it arrived with.
type Operation struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	ClientSeq int64           `json:"clientSeq"`
	PageID    string          `json:"pageId,omitempty"`
	Field     string          `json:"field,omitempty"`
	Value     json.RawMessage `json:"value,omitempty"`
}

type WelcomePayload struct {
	ClientID    string `json:"clientId"`
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
}

// DocSyncPayload is the full authoritative page set of a room.
type DocSyncPayload struct {
	Scan      document.Scan             `json:"scan"`
	Pages     []document.PageDescriptor `json:"pages"`
	ServerSeq int64                     `json:"serverSeq"`
}

// OperationAckPayload is the payload for page.ack messages. Page is the
// page as the server stored it, which differs from the request when the
// edit was clamped.
type OperationAckPayload struct {
	OperationID     string                   `json:"operationId"`
	ServerSeq       int64                    `json:"serverSeq"`
	ServerTimestamp int64                    `json:"serverTimestamp"`
	Page            *document.PageDescriptor `json:"page,omitempty"`
	Changed         bool                     `json:"changed"`
	Clamped         bool                     `json:"clamped"`
}

// OperationNackPayload is the payload for page.nack messages.
type OperationNackPayload struct {
	OperationID string                   `json:"operationId"`
	Reason      string                   `json:"reason"`
	Page        *document.PageDescriptor `json:"page,omitempty"`
}

// OperationBroadcastPayload is the payload for page.broadcast messages.
// Page is nil for page.remove.
type OperationBroadcastPayload struct {
	Operation Operation                `json:"operation"`
	UserID    string                   `json:"userId"`
	ServerSeq int64                    `json:"serverSeq"`
	Page      *document.PageDescriptor `json:"page,omitempty"`
}
