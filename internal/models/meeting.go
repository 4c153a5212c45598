package models

import "time"

// Meeting event types published on the per-class topic.
const (
	EventMeetingStarted = "MEETING_STARTED"
	EventMeetingStopped = "MEETING_STOPPED"
)

// MeetingEvent is the payload broadcast to subscribers of a class topic.
type MeetingEvent struct {
	Type      string     `json:"type"`
	ClassID   string     `json:"classId"`
	RoomID    string     `json:"roomId,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
}

// MeetingStatus is the read-only view returned by the status endpoint.
type MeetingStatus struct {
	IsLive    bool       `json:"isLive"`
	RoomID    *string    `json:"roomId,omitempty"`
	StartedAt *time.Time `json:"startedAt,omitempty"`
	StartedBy *string    `json:"startedBy,omitempty"`
}

// StartMeetingResult is returned by a successful (or idempotent) start.
type StartMeetingResult struct {
	RoomID         string    `json:"roomId"`
	StartedAt      time.Time `json:"startedAt"`
	JoinURL        string    `json:"joinUrl"`
	AlreadyRunning bool      `json:"-"`
}

// JoinTokenResult carries the signed conferencing credential.
type JoinTokenResult struct {
	Token   string `json:"token"`
	RoomID  string `json:"roomId"`
	JoinURL string `json:"joinUrl"`
}
