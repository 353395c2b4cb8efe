package analytics

import (
	"captioncast/internal/sessionlog"
	"captioncast/internal/turns"
	"time"

	"github.com/samber/lo"
)

// Summarize counts the session log per participant name. Senders that have
// left are included in the total but not listed.
func Summarize(entries []sessionlog.Entry, participants []turns.Participant, startedAt, now time.Time) SessionStats {
	bySender := lo.CountValuesBy(entries, func(e sessionlog.Entry) string { return e.Sender })
	byProvenance := lo.CountValuesBy(entries, func(e sessionlog.Entry) string { return string(e.Provenance) })

	return SessionStats{
		TotalMessages:    len(entries),
		SessionStartTime: startedAt,
		CurrentTime:      now,
		SessionDuration:  now.Sub(startedAt).Milliseconds(),
		ByProvenance:     byProvenance,
		Participants: lo.Map(participants, func(p turns.Participant, _ int) ParticipantCount {
			return ParticipantCount{Name: p.Name, Color: p.Color, MessageCount: bySender[p.Name]}
		}),
	}
}
