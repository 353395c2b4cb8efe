package analytics

import (
	"captioncast/internal/db"
	"context"
	"fmt"
)

type Queries struct {
	DB *db.DB
}

func NewQueries(database *db.DB) *Queries {
	return &Queries{DB: database}
}

// SenderTotals ranks the senders of a room across every stored session.
func (q *Queries) SenderTotals(ctx context.Context, roomID string, limit int) ([]SenderTotal, error) {
	rows, err := q.DB.Query(ctx, `
		SELECT sender, COUNT(*) AS messages, MAX(sent_at) AS last_sent
		FROM session_messages
		WHERE room_id = $1
		GROUP BY sender
		ORDER BY messages DESC, sender
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying sender totals: %w", err)
	}
	defer rows.Close()

	var out []SenderTotal
	rank := 0
	for rows.Next() {
		rank++
		var t SenderTotal
		if err := rows.Scan(&t.Sender, &t.MessageCount, &t.LastSentAt); err != nil {
			return nil, fmt.Errorf("scanning sender total: %w", err)
		}
		t.Rank = rank
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentMessages returns the newest stored messages of a room, newest first.
func (q *Queries) RecentMessages(ctx context.Context, roomID string, limit int) ([]HistoryEntry, error) {
	rows, err := q.DB.Query(ctx, `
		SELECT id, sender, body, provenance, sent_at
		FROM session_messages
		WHERE room_id = $1
		ORDER BY sent_at DESC
		LIMIT $2
	`, roomID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying recent messages: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.ID, &h.Sender, &h.Text, &h.Provenance, &h.SentAt); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
