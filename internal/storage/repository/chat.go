package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/homebiyori/billing-service/internal/models"
)

// CreateChatEntry вставляет новую реплику чата с уже рассчитанным expires_at.
func (s *Storage) CreateChatEntry(ctx context.Context, entry models.ChatEntry) error {
	const op = "storage.CreateChatEntry"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO chat_messages (user_uid, created_at, role, content,
			      plan_at_creation, expires_at)
			  VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.DB.ExecContext(ctx, query,
		entry.UserUID, entry.CreatedAt, entry.Role, entry.Content,
		entry.PlanAtCreation, entry.ExpiresAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListChatEntryKeys возвращает страницу ключей сортировки (created_at) реплик
// пользователя, созданных строго после курсора. Используется синхронизатором
// хранения для пакетного обхода неограниченной истории.
func (s *Storage) ListChatEntryKeys(ctx context.Context, userUID string, after time.Time, limit int) ([]time.Time, error) {
	const op = "storage.ListChatEntryKeys"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT created_at
			  FROM chat_messages
			  WHERE user_uid = $1 AND created_at > $2
			  ORDER BY created_at
			  LIMIT $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []time.Time
	for rows.Next() {
		var createdAt time.Time
		if err := rows.Scan(&createdAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, createdAt)
	}
	err = rows.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ShiftChatExpiry сдвигает expires_at перечисленных реплик на deltaDays дней,
// не опуская его ниже floor. Нижняя граница не даёт записям исчезнуть
// немедленно при понижении тарифа. Возвращает количество изменённых строк.
func (s *Storage) ShiftChatExpiry(ctx context.Context, userUID string, keys []time.Time, deltaDays int, floor time.Time) (int, error) {
	const op = "storage.ShiftChatExpiry"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE chat_messages
			  SET expires_at = GREATEST(expires_at + make_interval(days => $3), $4)
			  WHERE user_uid = $1 AND created_at = ANY($2)`
	result, err := s.DB.ExecContext(ctx, query, userUID, keys, deltaDays, floor)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// ListChatEntries возвращает реплики пользователя в порядке создания с пагинацией.
func (s *Storage) ListChatEntries(ctx context.Context, userUID string, limit, offset int) ([]*models.ChatEntry, error) {
	const op = "storage.ListChatEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, created_at, role, content, plan_at_creation, expires_at
			  FROM chat_messages
			  WHERE user_uid = $1
			  ORDER BY created_at
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, userUID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var result []*models.ChatEntry
	for rows.Next() {
		var item models.ChatEntry
		if err := rows.Scan(&item.UserUID, &item.CreatedAt, &item.Role, &item.Content,
			&item.PlanAtCreation, &item.ExpiresAt); err != nil {
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
