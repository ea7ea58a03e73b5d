package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	apperrors "workday/backend/internal/errors"
	"workday/backend/internal/model"
	"workday/backend/internal/push"
	"workday/backend/internal/repository"
)

// PushTransport delivers one payload to one subscriber's endpoint.
type PushTransport interface {
	Send(ctx context.Context, sub model.Subscriber, payload []byte) error
	Enabled() bool
	PublicKey() string
}

// SubscribeInput carries the fields of a browser PushSubscription plus the
// reminder interval chosen by the user.
type SubscribeInput struct {
	Endpoint        string
	ExpirationTime  *int64
	Auth            string
	P256dh          string
	IntervalSeconds int64
}

// NotifierService keeps each subscriber's next-reminder target aligned to
// elapsed working time and sweeps periodically for due reminders.
type NotifierService struct {
	subscribers *repository.SubscriberRepository
	workday     *WorkdayService
	transport   PushTransport
	logger      *slog.Logger
	sweepEvery  time.Duration
}

func NewNotifierService(
	subscribers *repository.SubscriberRepository,
	workday *WorkdayService,
	transport PushTransport,
	logger *slog.Logger,
	sweepEvery time.Duration,
) *NotifierService {
	return &NotifierService{
		subscribers: subscribers,
		workday:     workday,
		transport:   transport,
		logger:      logger,
		sweepEvery:  sweepEvery,
	}
}

// PushEnabled reports whether the delivery transport has credentials.
func (s *NotifierService) PushEnabled() bool {
	return s.transport.Enabled()
}

// VAPIDPublicKey returns the key browsers pass to pushManager.subscribe.
func (s *NotifierService) VAPIDPublicKey() string {
	return s.transport.PublicKey()
}

// Subscribe registers a push subscriber. The first reminder lands on the
// next clean interval boundary relative to current working time, never
// immediately. Re-subscribing an existing endpoint updates it in place.
func (s *NotifierService) Subscribe(ctx context.Context, input SubscribeInput) *apperrors.APIError {
	if apiErr := validateSubscribeInput(input); apiErr != nil {
		return apiErr
	}

	working, apiErr := s.workday.CurrentWorkingSeconds(ctx)
	if apiErr != nil {
		return apiErr
	}
	target := NextNotificationTime(input.IntervalSeconds, working)

	existing, err := s.subscribers.GetByEndpoint(ctx, input.Endpoint)
	if err != nil && err != repository.ErrNotFound {
		return apperrors.Internal("failed to query subscriber")
	}
	if existing != nil {
		if err := s.subscribers.UpdateByEndpoint(ctx, input.Endpoint, input.IntervalSeconds, target); err != nil {
			return apperrors.Internal("failed to update subscriber")
		}
		return nil
	}

	sub := model.Subscriber{
		Endpoint:               input.Endpoint,
		ExpirationTime:         input.ExpirationTime,
		Auth:                   input.Auth,
		P256dh:                 input.P256dh,
		IntervalSeconds:        input.IntervalSeconds,
		TargetNotificationTime: target,
	}
	if _, err := s.subscribers.Create(ctx, &sub); err != nil {
		return apperrors.Internal("failed to create subscriber")
	}
	return nil
}

// UpdateInterval changes a subscriber's reminder interval and recomputes
// its target against current working time.
func (s *NotifierService) UpdateInterval(ctx context.Context, endpoint string, intervalSeconds int64) *apperrors.APIError {
	if endpoint == "" {
		return apperrors.BadRequest("invalid_endpoint", "subscription endpoint is required")
	}
	if intervalSeconds <= 0 {
		return apperrors.BadRequest("invalid_interval", "interval must be positive seconds")
	}

	working, apiErr := s.workday.CurrentWorkingSeconds(ctx)
	if apiErr != nil {
		return apiErr
	}
	target := NextNotificationTime(intervalSeconds, working)

	err := s.subscribers.UpdateByEndpoint(ctx, endpoint, intervalSeconds, target)
	if err == repository.ErrNotFound {
		return apperrors.NotFound("subscriber_not_found", "no subscriber with that endpoint")
	}
	if err != nil {
		return apperrors.Internal("failed to update subscriber")
	}
	return nil
}

// Unsubscribe removes a subscriber. An unknown endpoint only logs a
// warning; the client's goal state is already reached.
func (s *NotifierService) Unsubscribe(ctx context.Context, endpoint string) *apperrors.APIError {
	if endpoint == "" {
		return apperrors.BadRequest("invalid_endpoint", "subscription endpoint is required")
	}

	deleted, err := s.subscribers.DeleteByEndpoint(ctx, endpoint)
	if err != nil {
		return apperrors.Internal("failed to delete subscriber")
	}
	if !deleted {
		s.logger.Warn("unsubscribe for unknown endpoint", "endpoint", endpoint)
	}
	return nil
}

// Run sweeps on a fixed period until the context is cancelled. Sweeps
// never overlap: the next tick is only consumed after the previous sweep
// returns.
func (s *NotifierService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()

	s.logger.Info("notification scheduler started", "sweepEvery", s.sweepEvery)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("notification scheduler stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep delivers a reminder to every due subscriber. Deliveries fan out
// concurrently and failures are isolated per subscriber: any outcome
// except a permanently-gone endpoint advances the target by one interval,
// so a failed send retries at the next boundary instead of every sweep.
func (s *NotifierService) Sweep(ctx context.Context) {
	working, apiErr := s.workday.CurrentWorkingSeconds(ctx)
	if apiErr != nil {
		s.logger.Error("sweep: failed to compute working seconds", "error", apiErr)
		return
	}

	due, err := s.subscribers.ListDue(ctx, working)
	if err != nil {
		s.logger.Error("sweep: failed to list due subscribers", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	payload := []byte(fmt.Sprintf("You have been working for %s", FormatElapsed(working)))

	var wg sync.WaitGroup
	for _, sub := range due {
		wg.Add(1)
		go func(sub model.Subscriber) {
			defer wg.Done()
			s.deliver(ctx, sub, payload)
		}(sub)
	}
	wg.Wait()
}

func (s *NotifierService) deliver(ctx context.Context, sub model.Subscriber, payload []byte) {
	err := s.transport.Send(ctx, sub, payload)
	if errors.Is(err, push.ErrGone) {
		s.logger.Info("removing subscriber with dead endpoint", "endpoint", sub.Endpoint)
		if _, delErr := s.subscribers.DeleteByEndpoint(ctx, sub.Endpoint); delErr != nil {
			s.logger.Error("failed to remove dead subscriber", "endpoint", sub.Endpoint, "error", delErr)
		}
		return
	}
	if err != nil {
		s.logger.Warn("push delivery failed", "endpoint", sub.Endpoint, "error", err)
	}

	// Reschedule regardless of delivery outcome.
	next := sub.TargetNotificationTime + sub.IntervalSeconds
	if updateErr := s.subscribers.UpdateTargetByEndpoint(ctx, sub.Endpoint, next); updateErr != nil {
		s.logger.Error("failed to advance subscriber target", "endpoint", sub.Endpoint, "error", updateErr)
	}
}

// NextNotificationTime returns the first multiple of interval strictly
// above the current boundary containing workingSeconds: 1500s worked with
// a 3600s interval yields 3600, and exactly 3600 yields 7200, so a fresh
// or updated subscription never fires immediately.
func NextNotificationTime(intervalSeconds, workingSeconds int64) int64 {
	if intervalSeconds <= 0 {
		return workingSeconds
	}
	return (workingSeconds/intervalSeconds + 1) * intervalSeconds
}

// FormatElapsed renders seconds as zero-padded HH:MM:SS. Hours do not
// roll over at 24.
func FormatElapsed(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

func validateSubscribeInput(input SubscribeInput) *apperrors.APIError {
	if input.Endpoint == "" {
		return apperrors.BadRequest("invalid_endpoint", "subscription endpoint is required")
	}
	if input.Auth == "" || input.P256dh == "" {
		return apperrors.BadRequest("invalid_keys", "subscription keys are required")
	}
	if input.IntervalSeconds <= 0 {
		return apperrors.BadRequest("invalid_interval", "interval must be positive seconds")
	}
	return nil
}
