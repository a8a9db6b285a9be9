package analytics

import (
	"sort"
	"time"

	"meethub/backend/internal/models"
)

// Reduce folds an event log and the active index into attendance sessions. The
// current model always yields a single session covering the whole log.
func Reduce(events []models.AnalyticsEvent, active map[string]int64) []models.AnalyticsSession {
	var (
		session *models.AnalyticsSession
		index   = make(map[string]int)
	)
	open := func(start time.Time) {
		if session == nil {
			session = &models.AnalyticsSession{StartTime: start, Participants: []models.AnalyticsParticipant{}}
		}
	}
	participant := func(userID, name, ip string) *models.AnalyticsParticipant {
		if i, ok := index[userID]; ok {
			return &session.Participants[i]
		}
		session.Participants = append(session.Participants, models.AnalyticsParticipant{
			UserID:      userID,
			Name:        name,
			IP:          ip,
			Attendances: []models.Attendance{},
		})
		index[userID] = len(session.Participants) - 1
		return &session.Participants[len(session.Participants)-1]
	}

	for _, ev := range events {
		switch ev.Type {
		case models.AnalyticsJoin:
			open(ev.Time())
			p := participant(ev.UserID, nameOr(ev.Name, ev.UserID), ev.IP)
			if hasOpen(p) {
				continue
			}
			p.Attendances = append(p.Attendances, models.Attendance{JoinTime: ev.Time()})
		case models.AnalyticsLeave:
			if session == nil {
				continue
			}
			i, ok := index[ev.UserID]
			if !ok {
				continue
			}
			p := &session.Participants[i]
			if n := len(p.Attendances); n > 0 && p.Attendances[n-1].LeaveTime == nil {
				leave := ev.Time()
				p.Attendances[n-1].LeaveTime = &leave
			}
		}
	}

	if len(active) > 0 {
		ids := make([]string, 0, len(active))
		for id := range active {
			ids = append(ids, id)
		}
		sort.Slice(ids, func(i, j int) bool {
			if active[ids[i]] == active[ids[j]] {
				return ids[i] < ids[j]
			}
			return active[ids[i]] < active[ids[j]]
		})
		for _, id := range ids {
			since := time.UnixMilli(active[id])
			open(since)
			p := participant(id, unknownName(id), "")
			if !hasOpen(p) {
				p.Attendances = append(p.Attendances, models.Attendance{JoinTime: since})
			}
		}
	}

	if session == nil {
		return []models.AnalyticsSession{}
	}
	if len(active) == 0 {
		var end *time.Time
		for _, p := range session.Participants {
			for _, a := range p.Attendances {
				if a.LeaveTime != nil && (end == nil || a.LeaveTime.After(*end)) {
					end = a.LeaveTime
				}
			}
		}
		if end != nil {
			endTime := *end
			minutes := int(endTime.Sub(session.StartTime) / time.Minute)
			session.EndTime = &endTime
			session.Duration = &minutes
		}
	}
	return []models.AnalyticsSession{*session}
}

func hasOpen(p *models.AnalyticsParticipant) bool {
	n := len(p.Attendances)
	return n > 0 && p.Attendances[n-1].LeaveTime == nil
}

func nameOr(name, userID string) string {
	if name == "" {
		return unknownName(userID)
	}
	return name
}

func unknownName(userID string) string {
	return "Unknown_" + userID
}
