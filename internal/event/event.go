// Package event defines the wire envelope delivered over the realtime
// connection. Every message is a single JSON object {type, payload}.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/Anshumanformal/Tab-SyncAR/internal/model"
)

// Event types carried in the envelope.
const (
	TypeURLAdded     = "URL_ADDED"
	TypeURLDeleted   = "URL_DELETED"
	TypeDeviceOnline = "DEVICE_ONLINE"
)

// Envelope is the sole message unit of the realtime connection.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func encode(typ string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return json.Marshal(Envelope{Type: typ, Payload: raw})
}

// URLAdded encodes a URL_ADDED message carrying the inserted rows.
func URLAdded(rows []model.SavedURL) ([]byte, error) {
	return encode(TypeURLAdded, rows)
}

// URLDeleted encodes a URL_DELETED message carrying the requested ids verbatim.
func URLDeleted(ids []uuid.UUID) ([]byte, error) {
	return encode(TypeURLDeleted, ids)
}

// DeviceOnline encodes a DEVICE_ONLINE message carrying a single device.
func DeviceOnline(d model.Device) ([]byte, error) {
	return encode(TypeDeviceOnline, d)
}

// Decode parses a wire message into an envelope. The payload stays raw;
// use the typed accessors to unpack it.
func Decode(data []byte) (*Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if e.Type == "" {
		return nil, fmt.Errorf("decode envelope: missing type")
	}
	return &e, nil
}

// URLs unpacks a URL_ADDED payload.
func (e *Envelope) URLs() ([]model.SavedURL, error) {
	var rows []model.SavedURL
	if err := json.Unmarshal(e.Payload, &rows); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", e.Type, err)
	}
	return rows, nil
}

// IDs unpacks a URL_DELETED payload.
func (e *Envelope) IDs() ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := json.Unmarshal(e.Payload, &ids); err != nil {
		return nil, fmt.Errorf("unpack %s: %w", e.Type, err)
	}
	return ids, nil
}

// Device unpacks a DEVICE_ONLINE payload.
func (e *Envelope) Device() (model.Device, error) {
	var d model.Device
	if err := json.Unmarshal(e.Payload, &d); err != nil {
		return model.Device{}, fmt.Errorf("unpack %s: %w", e.Type, err)
	}
	return d, nil
}
