package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/homebiyori/billing-service/internal/models"
)

// GetSubscription возвращает запись подписки пользователя.
// При отсутствии записи возвращает ErrNotFound.
func (s *Storage) GetSubscription(ctx context.Context, userUID string) (*models.Subscription, error) {
	const op = "storage.GetSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid, plan, status, stripe_customer_id, stripe_subscription_id,
			      current_period_start, current_period_end, premium_access, updated_at
			  FROM subscriptions
			  WHERE user_uid = $1`
	row := s.DB.QueryRowContext(ctx, query, userUID)

	sub := &models.Subscription{}
	var customerID, subscriptionID sql.NullString
	var periodStart, periodEnd sql.NullTime
	if err := row.Scan(&sub.UserUID, &sub.Plan, &sub.Status, &customerID, &subscriptionID,
		&periodStart, &periodEnd, &sub.PremiumAccess, &sub.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if customerID.Valid {
		sub.StripeCustomerID = customerID.String
	}
	if subscriptionID.Valid {
		sub.StripeSubscriptionID = subscriptionID.String
	}
	if periodStart.Valid {
		sub.CurrentPeriodStart = periodStart.Time
	}
	if periodEnd.Valid {
		sub.CurrentPeriodEnd = periodEnd.Time
	}
	return sub, nil
}

// GetSubscriptionByCustomer возвращает запись подписки по идентификатору
// покупателя у платёжного провайдера.
func (s *Storage) GetSubscriptionByCustomer(ctx context.Context, customerID string) (*models.Subscription, error) {
	const op = "storage.GetSubscriptionByCustomer"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_uid
			  FROM subscriptions
			  WHERE stripe_customer_id = $1`
	var userUID string
	if err := s.DB.QueryRowContext(ctx, query, customerID).Scan(&userUID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.GetSubscription(ctx, userUID)
}

// UpsertSubscription вставляет или перезаписывает запись подписки пользователя.
// Запись однострочная, перезапись последней версией допустима: источником
// истины является платёжный провайдер.
func (s *Storage) UpsertSubscription(ctx context.Context, sub *models.Subscription) error {
	const op = "storage.UpsertSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, plan, status, stripe_customer_id,
			      stripe_subscription_id, current_period_start, current_period_end,
			      premium_access, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			  ON CONFLICT (user_uid) DO UPDATE SET
			      plan = EXCLUDED.plan,
			      status = EXCLUDED.status,
			      stripe_customer_id = EXCLUDED.stripe_customer_id,
			      stripe_subscription_id = EXCLUDED.stripe_subscription_id,
			      current_period_start = EXCLUDED.current_period_start,
			      current_period_end = EXCLUDED.current_period_end,
			      premium_access = EXCLUDED.premium_access,
			      updated_at = EXCLUDED.updated_at`
	_, err := s.DB.ExecContext(ctx, query,
		sub.UserUID, sub.Plan, sub.Status, nullString(sub.StripeCustomerID),
		nullString(sub.StripeSubscriptionID), nullTime(sub.CurrentPeriodStart),
		nullTime(sub.CurrentPeriodEnd), sub.PremiumAccess, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CorrectExpiredSubscription переводит подписку со статусом cancel_scheduled
// в canceled и снимает премиум-доступ. Условие по статусу в WHERE защищает
// от затирания записи, уже обновлённой конкурентным webhook.
// Возвращает количество изменённых строк.
func (s *Storage) CorrectExpiredSubscription(ctx context.Context, userUID string, now time.Time) (int, error) {
	const op = "storage.CorrectExpiredSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET status = $2, premium_access = FALSE, updated_at = $3
			  WHERE user_uid = $1 AND status = $4`
	result, err := s.DB.ExecContext(ctx, query,
		userUID, models.StatusCanceled, now, models.StatusCancelScheduled)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
