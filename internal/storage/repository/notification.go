package repository

import (
	"context"
	"fmt"

	"github.com/homebiyori/billing-service/internal/models"
)

// CreateNotification вставляет новое уведомление пользователя.
func (s *Storage) CreateNotification(ctx context.Context, n models.Notification) error {
	const op = "storage.CreateNotification"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO notifications (id, user_uid, type, title, message,
			      priority, is_read, created_at, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.DB.ExecContext(ctx, query,
		n.ID, n.UserUID, n.Type, n.Title, n.Message,
		n.Priority, n.IsRead, n.CreatedAt, n.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUnreadNotifications возвращает непрочитанные уведомления пользователя:
// сначала высокий приоритет, внутри приоритета — новые первыми.
func (s *Storage) ListUnreadNotifications(ctx context.Context, userUID string, limit int) ([]*models.Notification, error) {
	const op = "storage.ListUnreadNotifications"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT id, user_uid, type, title, message, priority, is_read, created_at, expires_at
			  FROM notifications
			  WHERE user_uid = $1 AND is_read = FALSE
			  ORDER BY CASE priority WHEN 'high' THEN 0 ELSE 1 END, created_at DESC
			  LIMIT $2`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.Notification
	for rows.Next() {
		var item models.Notification
		if err := rows.Scan(&item.ID, &item.UserUID, &item.Type, &item.Title, &item.Message,
			&item.Priority, &item.IsRead, &item.CreatedAt, &item.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &item)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkNotificationRead помечает уведомление прочитанным с проверкой владельца.
// Возвращает количество изменённых строк: 0 — уведомление не найдено,
// принадлежит другому пользователю или уже прочитано. Это не ошибка.
func (s *Storage) MarkNotificationRead(ctx context.Context, id, userUID string) (int, error) {
	const op = "storage.MarkNotificationRead"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE notifications
			  SET is_read = TRUE
			  WHERE id = $1 AND user_uid = $2 AND is_read = FALSE`
	result, err := s.DB.ExecContext(ctx, query, id, userUID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}
