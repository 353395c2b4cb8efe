package db

import (
	"captioncast/internal/sessionlog"
	"context"
	"fmt"
)

// SaveEntries stores a batch of session log entries in one transaction.
// Entries already stored are skipped, so a retried batch is harmless.
func (d *DB) SaveEntries(ctx context.Context, entries []sessionlog.Entry) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO session_messages (id, room_id, sender, body, provenance, sent_at, session_start, session_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ID, e.RoomID, e.Sender, e.Text, string(e.Provenance),
			e.Timestamp, e.SessionStart, e.SessionTime.Milliseconds()); err != nil {
			return fmt.Errorf("saving session message in batch: %w", err)
		}
	}

	return tx.Commit()
}

// UpsertRoom records a room so its history outlives the process.
func (d *DB) UpsertRoom(ctx context.Context, id, label string) error {
	_, err := d.Exec(ctx, `
		INSERT INTO rooms (id, label)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET label = $2, deleted_at = NULL
	`, id, label)
	if err != nil {
		return fmt.Errorf("upserting room: %w", err)
	}
	return nil
}

func (d *DB) MarkRoomDeleted(ctx context.Context, id string) error {
	_, err := d.Exec(ctx, `
		UPDATE rooms SET deleted_at = now() WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("marking room deleted: %w", err)
	}
	return nil
}
