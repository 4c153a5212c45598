package models

import (
	"time"

	"github.com/lib/pq"
)

// Class represents a classroom: one teacher, a student roster, and the
// embedded live-meeting state.
type Class struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Section    string         `db:"section" json:"section"`
	Code       string         `db:"code" json:"code"`
	TeacherID  string         `db:"teacher_id" json:"teacherId"`
	StudentIDs pq.StringArray `db:"student_ids" json:"studentIds"`

	MeetingState

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// MeetingState holds the live-session fields embedded in the class record.
// The invariant is all-or-nothing: IsLive is true exactly when RoomID,
// StartedAt and StartedBy are all set. Version increases on every committed
// transition and backs the conditional write.
type MeetingState struct {
	IsLive    bool       `db:"is_live" json:"isLive"`
	RoomID    *string    `db:"meeting_room_id" json:"roomId,omitempty"`
	StartedAt *time.Time `db:"meeting_started_at" json:"startedAt,omitempty"`
	StartedBy *string    `db:"meeting_started_by" json:"startedBy,omitempty"`
	Version   int64      `db:"meeting_version" json:"-"`
}

// Live reports whether the state satisfies the live invariant.
func (m MeetingState) Live() bool {
	return m.IsLive && m.RoomID != nil && m.StartedAt != nil && m.StartedBy != nil
}

// LiveState builds a consistent live meeting state.
func LiveState(roomID, startedBy string, startedAt time.Time, version int64) MeetingState {
	return MeetingState{
		IsLive:    true,
		RoomID:    &roomID,
		StartedAt: &startedAt,
		StartedBy: &startedBy,
		Version:   version,
	}
}

// IdleState builds the cleared meeting state.
func IdleState(version int64) MeetingState {
	return MeetingState{Version: version}
}

// HasStudent reports roster membership.
func (c *Class) HasStudent(userID string) bool {
	for _, id := range c.StudentIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Search   string
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
