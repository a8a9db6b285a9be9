package models

import (
	"time"

	"github.com/lib/pq"
)

// Attendance is one continuous presence of a participant in a session.
// LeaveTime is nil while the participant is still present.
type Attendance struct {
	JoinTime  time.Time  `json:"joinTime"`
	LeaveTime *time.Time `json:"leaveTime,omitempty"`
}

// AnalyticsParticipant groups the attendances of one user within a session.
type AnalyticsParticipant struct {
	UserID      string       `json:"userId"`
	Name        string       `json:"name"`
	IP          string       `json:"ip,omitempty"`
	Attendances []Attendance `json:"attendances"`
}

// AnalyticsSession is reconstructed from the analytics event log; it is never stored
// in the session store. EndTime and Duration are nil while anyone is still present.
type AnalyticsSession struct {
	StartTime    time.Time              `json:"startTime"`
	EndTime      *time.Time             `json:"endTime,omitempty"`
	Duration     *int                   `json:"duration,omitempty"`
	Participants []AnalyticsParticipant `json:"participants"`
}

// AttendanceSession is the durable form of a flushed AnalyticsSession.
type AttendanceSession struct {
	ID             uint      `gorm:"primaryKey"`
	RoomID         string    `gorm:"type:text;not null;index"`
	StartTime      time.Time `gorm:"not null"`
	EndTime        *time.Time
	Duration       *int
	ParticipantIDs pq.StringArray     `gorm:"type:text[]"`
	Records        []AttendanceRecord `gorm:"foreignKey:SessionID"`
	CreatedAt      time.Time
}

// AttendanceRecord is the durable form of one Attendance.
type AttendanceRecord struct {
	ID        uint      `gorm:"primaryKey"`
	SessionID uint      `gorm:"not null;index"`
	UserID    string    `gorm:"type:text;not null;index"`
	Name      string    `gorm:"type:text"`
	IP        string    `gorm:"type:text"`
	JoinTime  time.Time `gorm:"not null"`
	LeaveTime *time.Time
}

// NewAttendanceSession flattens a reconstructed session into its durable form.
func NewAttendanceSession(roomID string, s AnalyticsSession) *AttendanceSession {
	out := &AttendanceSession{
		RoomID:         roomID,
		StartTime:      s.StartTime,
		EndTime:        s.EndTime,
		Duration:       s.Duration,
		ParticipantIDs: pq.StringArray{},
	}
	for _, p := range s.Participants {
		out.ParticipantIDs = append(out.ParticipantIDs, p.UserID)
		for _, a := range p.Attendances {
			out.Records = append(out.Records, AttendanceRecord{
				UserID:    p.UserID,
				Name:      p.Name,
				IP:        p.IP,
				JoinTime:  a.JoinTime,
				LeaveTime: a.LeaveTime,
			})
		}
	}
	return out
}
