package store

import (
	"context"
	"fmt"
)

// RecordNotification stores the (request, admin, message) triple created at
// fan-out time. Rows are written once and only ever read back.
func (s *Store) RecordNotification(ctx context.Context, requestID, adminChatID int64, messageID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_notifications (request_id, admin_chat_id, message_id)
		VALUES ($1, $2, $3)
	`, requestID, adminChatID, messageID)
	if err != nil {
		return fmt.Errorf("record notification for request %d: %w", requestID, err)
	}
	return nil
}

// NotificationsByRequest returns every recorded admin message for a request.
func (s *Store) NotificationsByRequest(ctx context.Context, requestID int64) ([]AdminNotification, error) {
	var rows []AdminNotification
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, request_id, admin_chat_id, message_id, created_at
		FROM admin_notifications WHERE request_id = $1 ORDER BY id
	`, requestID)
	if err != nil {
		return nil, fmt.Errorf("notifications for request %d: %w", requestID, err)
	}
	return rows, nil
}
