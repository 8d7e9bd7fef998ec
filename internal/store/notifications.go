package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dataontap/DeviceInsights-sub000/internal/model"
)

// notificationRow maps 1:1 to the notifications table. Metadata is stored as
// a JSON text column, so the model's map doesn't scan directly.
type notificationRow struct {
	ID           int64     `db:"id"`
	Type         string    `db:"type"`
	Severity     string    `db:"severity"`
	Title        string    `db:"title"`
	Message      string    `db:"message"`
	CredentialID *int64    `db:"credential_id"`
	MetadataJSON string    `db:"metadata_json"`
	IsRead       bool      `db:"is_read"`
	CreatedAt    time.Time `db:"created_at"`
}

func (r notificationRow) toModel() model.Notification {
	n := model.Notification{
		ID:           r.ID,
		Type:         r.Type,
		Severity:     r.Severity,
		Title:        r.Title,
		Message:      r.Message,
		CredentialID: r.CredentialID,
		IsRead:       r.IsRead,
		CreatedAt:    r.CreatedAt,
	}
	if r.MetadataJSON != "" {
		json.Unmarshal([]byte(r.MetadataJSON), &n.Metadata)
	}
	return n
}

// CreateNotification persists an operator alert.
func (s *Store) CreateNotification(ctx context.Context, n *model.Notification) error {
	n.CreatedAt = time.Now().UTC()

	meta := "{}"
	if n.Metadata != nil {
		b, err := json.Marshal(n.Metadata)
		if err != nil {
			return fmt.Errorf("marshal notification metadata: %w", err)
		}
		meta = string(b)
	}

	row := notificationRow{
		Type:         n.Type,
		Severity:     n.Severity,
		Title:        n.Title,
		Message:      n.Message,
		CredentialID: n.CredentialID,
		MetadataJSON: meta,
		IsRead:       false,
		CreatedAt:    n.CreatedAt,
	}

	const q = `INSERT INTO notifications
		(type, severity, title, message, credential_id, metadata_json, is_read, created_at)
		VALUES
		(:type, :severity, :title, :message, :credential_id, :metadata_json, :is_read, :created_at)`

	id, err := s.insertGetID(ctx, q, row)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	n.ID = id
	return nil
}

// ListNotifications returns notifications, newest first. unreadOnly filters
// to unread ones.
func (s *Store) ListNotifications(ctx context.Context, unreadOnly bool, limit int) ([]model.Notification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := "SELECT * FROM notifications ORDER BY created_at DESC LIMIT ?"
	args := []any{limit}
	if unreadOnly {
		q = "SELECT * FROM notifications WHERE is_read = ? ORDER BY created_at DESC LIMIT ?"
		args = []any{false, limit}
	}

	var rows []notificationRow
	if err := s.db.SelectContext(ctx, &rows, s.rebind(q), args...); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	list := make([]model.Notification, len(rows))
	for i, r := range rows {
		list[i] = r.toModel()
	}
	return list, nil
}

// MarkNotificationRead flags a notification as read.
func (s *Store) MarkNotificationRead(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx,
		s.rebind("UPDATE notifications SET is_read = ? WHERE id = ?"), true, id)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// LastNotificationTime returns the creation time of the most recent
// notification of the given type for a credential. Used by the abuse monitor
// to avoid raising the same alert repeatedly within one window.
func (s *Store) LastNotificationTime(ctx context.Context, credentialID int64, notifType string) (time.Time, error) {
	var rows []time.Time
	err := s.db.SelectContext(ctx, &rows,
		s.rebind(`SELECT created_at FROM notifications
			WHERE credential_id = ? AND type = ?
			ORDER BY created_at DESC LIMIT 1`),
		credentialID, notifType)
	if err != nil {
		return time.Time{}, fmt.Errorf("last notification time: %w", err)
	}
	if len(rows) == 0 {
		return time.Time{}, nil
	}
	return rows[0], nil
}
