package repository

import (
	"context"
	"database/sql"
	"fmt"

	"workday/backend/internal/model"
)

// SubscriberRepository is the durable push-subscriber registry. Endpoints
// are unique; every mutation is a single statement so concurrent sweeps
// cannot double-advance or double-delete a row.
type SubscriberRepository struct {
	db *sql.DB
}

func NewSubscriberRepository(db *sql.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

func (r *SubscriberRepository) Create(ctx context.Context, sub *model.Subscriber) (int64, error) {
	var expiration interface{}
	if sub.ExpirationTime != nil {
		expiration = *sub.ExpirationTime
	}

	result, err := r.db.ExecContext(
		ctx,
		`INSERT INTO subscribers (endpoint, expiration_time, auth, p256dh, interval, target_notification_time)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sub.Endpoint,
		expiration,
		sub.Auth,
		sub.P256dh,
		sub.IntervalSeconds,
		sub.TargetNotificationTime,
	)
	if err != nil {
		return 0, fmt.Errorf("create subscriber: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create subscriber id: %w", err)
	}
	return id, nil
}

func (r *SubscriberRepository) GetByEndpoint(ctx context.Context, endpoint string) (*model.Subscriber, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, endpoint, expiration_time, auth, p256dh, interval, target_notification_time
		 FROM subscribers
		 WHERE endpoint = ?`,
		endpoint,
	)
	return scanSubscriber(row)
}

// UpdateByEndpoint replaces a subscriber's interval and target. Returns
// ErrNotFound when no row matches the endpoint.
func (r *SubscriberRepository) UpdateByEndpoint(ctx context.Context, endpoint string, intervalSeconds, target int64) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE subscribers SET interval = ?, target_notification_time = ? WHERE endpoint = ?`,
		intervalSeconds,
		target,
		endpoint,
	)
	if err != nil {
		return fmt.Errorf("update subscriber: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscriber affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SubscriberRepository) UpdateTargetByEndpoint(ctx context.Context, endpoint string, target int64) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE subscribers SET target_notification_time = ? WHERE endpoint = ?`,
		target,
		endpoint,
	)
	if err != nil {
		return fmt.Errorf("update subscriber target: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update subscriber target affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByEndpoint removes a subscriber. The bool reports whether a row
// actually existed; an unknown endpoint is not an error.
func (r *SubscriberRepository) DeleteByEndpoint(ctx context.Context, endpoint string) (bool, error) {
	result, err := r.db.ExecContext(
		ctx,
		`DELETE FROM subscribers WHERE endpoint = ?`,
		endpoint,
	)
	if err != nil {
		return false, fmt.Errorf("delete subscriber: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete subscriber affected: %w", err)
	}
	return affected > 0, nil
}

// ListDue returns every subscriber whose target is at or below the given
// elapsed working seconds.
func (r *SubscriberRepository) ListDue(ctx context.Context, workingSeconds int64) ([]model.Subscriber, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, endpoint, expiration_time, auth, p256dh, interval, target_notification_time
		 FROM subscribers
		 WHERE target_notification_time <= ?`,
		workingSeconds,
	)
	if err != nil {
		return nil, fmt.Errorf("list due subscribers: %w", err)
	}
	defer rows.Close()

	subs := make([]model.Subscriber, 0, 4)
	for rows.Next() {
		sub, scanErr := scanSubscriber(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due subscribers: %w", err)
	}
	return subs, nil
}

// ResetTargetsToInterval sets every subscriber's target back to one full
// interval from zero. Called when a new session opens so no reminder
// fires at a stale target from the previous workday.
func (r *SubscriberRepository) ResetTargetsToInterval(ctx context.Context) error {
	if _, err := r.db.ExecContext(
		ctx,
		`UPDATE subscribers SET target_notification_time = interval`,
	); err != nil {
		return fmt.Errorf("reset subscriber targets: %w", err)
	}
	return nil
}

func scanSubscriber(s scanner) (*model.Subscriber, error) {
	sub := model.Subscriber{}
	var expiration sql.NullInt64
	err := s.Scan(
		&sub.ID,
		&sub.Endpoint,
		&expiration,
		&sub.Auth,
		&sub.P256dh,
		&sub.IntervalSeconds,
		&sub.TargetNotificationTime,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscriber: %w", err)
	}
	if expiration.Valid {
		value := expiration.Int64
		sub.ExpirationTime = &value
	}
	return &sub, nil
}
