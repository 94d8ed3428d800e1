package types

// EventType is the closed classification of a device-reported event.
type EventType string

const (
	EventEntry  EventType = "entry"
	EventExit   EventType = "exit"
	EventDenied EventType = "denied"
)

func (t EventType) Valid() bool {
	switch t {
	case EventEntry, EventExit, EventDenied:
		return true
	}
	return false
}

// WebhookEnvelope is the body the access-control platform pushes for every event.
type WebhookEnvelope struct {
	MsgID     string       `json:"msgId"`
	Topic     string       `json:"topic"`
	Timestamp int64        `json:"timestamp,omitempty"` // unix ms
	Data      *WebhookData `json:"data"`
}

type WebhookData struct {
	EventID    string `json:"eventId"`
	EventType  string `json:"eventType"`
	EventTime  string `json:"eventTime"`
	PersonID   string `json:"personId,omitempty"`
	PersonName string `json:"personName,omitempty"`
	DoorID     string `json:"doorId,omitempty"`
	DoorName   string `json:"doorName,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	DeviceName string `json:"deviceName,omitempty"`
	CardNo     string `json:"cardNo,omitempty"`
	FaceID     string `json:"faceId,omitempty"`
}

type IngestResult struct {
	EventID   string    `json:"eventId"`
	EventType EventType `json:"eventType"`
	Duplicate bool      `json:"duplicate"`
	Processed int       `json:"processed"`
}

type IngestResponse struct {
	Message string `json:"message"`
	IngestResult
}

type ProcessResponse struct {
	Message   string `json:"message"`
	BranchID  string `json:"branchId"`
	Processed int    `json:"processed"`
}

type SimulateRequest struct {
	PersonID  string `json:"personId"`
	EventType string `json:"eventType"`
	DoorID    string `json:"doorId,omitempty"`
}
