package domain

import (
	"encoding/json"
	"time"
)

// Operation is one applied action in the append-only log.
type Operation struct {
	Index     int             `json:"index"`
	Type      ActionType      `json:"type"`
	Scope     string          `json:"scope"`
	Input     json.RawMessage `json:"input"`
	Timestamp time.Time       `json:"timestamp"`
	Hash      string          `json:"hash"`
}

// Action decodes the operation back into the action it recorded.
func (op Operation) Action() (Action, error) {
	return RawAction{Type: op.Type, Scope: op.Scope, Input: op.Input}.Decode()
}

// Document pairs the current invoice state with the log that produced it.
type Document struct {
	State      Invoice     `json:"state"`
	Operations []Operation `json:"operations"`
}

func NewDocument() Document {
	return Document{State: NewInvoice(), Operations: []Operation{}}
}
