// Package api defines the contracts for API requests and responses.
// It decouples the wire format from the mind-map domain types.
package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SuccessOK is the value of the "success" member of every successful RPC envelope.
const SuccessOK = "ok"

// Key is a row key as a client sends it, either a JSON string or a JSON
// number. Numbers keep their literal text, so 2 and "2" name the same row.
// null decodes to the empty key.
type Key string

// UnmarshalJSON implements json.Unmarshaler.
func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*k = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Key(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("key must be a string or a number: %w", err)
	}
	*k = Key(n.String())
	return nil
}

func (k Key) String() string { return string(k) }

// RenameRequest is the body of POST /view/{viewName}/rename.
type RenameRequest struct {
	ID    Key    `json:"id" validate:"required"`
	Topic string `json:"topic"`
}

// MoveRequest is the body of POST /view/{viewName}/move.
type MoveRequest struct {
	ID       Key `json:"id" validate:"required"`
	ParentID Key `json:"parent_id"`
}

// DeleteRequest is the body of POST /view/{viewName}/delete.
type DeleteRequest struct {
	ID Key `json:"id" validate:"required"`
}

// CreateRequest is the body of POST /view/{viewName}/create.
type CreateRequest struct {
	Topic     string `json:"topic" validate:"required"`
	ParentID  Key    `json:"parent_id"`
	RootValue Key    `json:"root_value,omitempty"`
}

// SuccessResponse is the envelope for rename, move and delete.
type SuccessResponse struct {
	Success string `json:"success"`
}

// CreateResponse is the envelope for create, carrying the new node summary.
type CreateResponse struct {
	Success   string `json:"success"`
	ID        any    `json:"id"`
	Topic     string `json:"topic"`
	HyperLink string `json:"hyperLink,omitempty"`
}

// ErrorResponse is a standardized error message for API responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
