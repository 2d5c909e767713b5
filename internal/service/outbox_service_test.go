package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/models"
	"github.com/shelfline-next/internal/repository"

	"gorm.io/gorm"
)

func newOutboxFixture(t *testing.T) (*OutboxService, *gorm.DB, *time.Time) {
	t.Helper()
	db := openLoyaltyTestDB(t)
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	svc := NewOutboxService(repository.NewOutboxRepository(db), 3)
	svc.clock = func() time.Time { return now }
	return svc, db, &now
}

func enqueueTestMessage(t *testing.T, svc *OutboxService, db *gorm.DB, kind string) {
	t.Helper()
	if err := db.Transaction(func(tx *gorm.DB) error {
		return svc.EnqueueTx(tx, testMerchant, kind, 7, models.JSON{"reward_id": 7})
	}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
}

func loadOutboxMessage(t *testing.T, db *gorm.DB) models.OutboxMessage {
	t.Helper()
	var message models.OutboxMessage
	if err := db.First(&message).Error; err != nil {
		t.Fatalf("load message failed: %v", err)
	}
	return message
}

func TestOutboxProcessMarksDispatched(t *testing.T) {
	svc, db, _ := newOutboxFixture(t)
	calls := 0
	svc.Register(constants.OutboxKindRewardEvent, func(ctx context.Context, message *models.OutboxMessage) error {
		calls++
		if message.RewardID != 7 {
			t.Fatalf("unexpected reward id %d", message.RewardID)
		}
		return nil
	})
	enqueueTestMessage(t, svc, db, constants.OutboxKindRewardEvent)

	claimed, err := svc.ClaimDue(10)
	if err != nil || len(claimed) != 1 {
		t.Fatalf("expected one claimed message, got %d err=%v", len(claimed), err)
	}
	if again, _ := svc.ClaimDue(10); len(again) != 0 {
		t.Fatalf("expected leased message not to be claimed twice")
	}
	if err := svc.Process(context.Background(), &claimed[0]); err != nil {
		t.Fatalf("process failed: %v", err)
	}
	message := loadOutboxMessage(t, db)
	if message.Status != constants.OutboxStatusDispatched || message.DispatchedAt == nil || calls != 1 {
		t.Fatalf("unexpected dispatched message: %+v calls=%d", message, calls)
	}
	if err := svc.ProcessByMessageID(context.Background(), message.MessageID); err != nil || calls != 1 {
		t.Fatalf("expected dispatched message to be ignored, calls=%d err=%v", calls, err)
	}
}

func TestOutboxRetriesWithBackoffThenFails(t *testing.T) {
	svc, db, now := newOutboxFixture(t)
	svc.Register(constants.OutboxKindDiscountIssue, func(ctx context.Context, message *models.OutboxMessage) error {
		return errors.New("platform unavailable")
	})
	enqueueTestMessage(t, svc, db, constants.OutboxKindDiscountIssue)

	claimed, _ := svc.ClaimDue(10)
	if err := svc.Process(context.Background(), &claimed[0]); err == nil {
		t.Fatalf("expected handler error")
	}
	message := loadOutboxMessage(t, db)
	if message.Status != constants.OutboxStatusPending || message.Attempts != 1 || message.LastError == "" {
		t.Fatalf("unexpected retry state: %+v", message)
	}
	if !message.NextAttemptAt.UTC().Equal(now.Add(5 * time.Second)) {
		t.Fatalf("expected first backoff of 5s, got %s", message.NextAttemptAt)
	}
	if due, _ := svc.ClaimDue(10); len(due) != 0 {
		t.Fatalf("expected message not due before backoff")
	}

	for attempt := 2; attempt <= 3; attempt++ {
		*now = now.Add(time.Hour)
		due, err := svc.ClaimDue(10)
		if err != nil || len(due) != 1 {
			t.Fatalf("expected retry %d to be due, got %d err=%v", attempt, len(due), err)
		}
		_ = svc.Process(context.Background(), &due[0])
	}
	message = loadOutboxMessage(t, db)
	if message.Status != constants.OutboxStatusFailed || message.Attempts != 3 {
		t.Fatalf("expected failed after max attempts, got %+v", message)
	}

	reset, err := svc.RetryFailed(testMerchant)
	if err != nil || reset != 1 {
		t.Fatalf("expected one reset message, got %d err=%v", reset, err)
	}
	message = loadOutboxMessage(t, db)
	if message.Status != constants.OutboxStatusPending || message.Attempts != 0 {
		t.Fatalf("unexpected reset state: %+v", message)
	}
}

func TestOutboxMissingHandlerSchedulesRetry(t *testing.T) {
	svc, db, _ := newOutboxFixture(t)
	enqueueTestMessage(t, svc, db, "unknown_kind")

	message := loadOutboxMessage(t, db)
	err := svc.ProcessByMessageID(context.Background(), message.MessageID)
	if !errors.Is(err, ErrOutboxHandlerMissing) {
		t.Fatalf("expected missing handler error, got %v", err)
	}
	message = loadOutboxMessage(t, db)
	if message.Status != constants.OutboxStatusPending || message.Attempts != 1 {
		t.Fatalf("unexpected state after missing handler: %+v", message)
	}
}

func TestOutboxBackoffIsCapped(t *testing.T) {
	cases := map[int]time.Duration{
		1:  5 * time.Second,
		2:  10 * time.Second,
		4:  40 * time.Second,
		30: outboxMaxBackoff,
	}
	for attempts, want := range cases {
		if got := outboxBackoff(attempts); got != want {
			t.Fatalf("attempts=%d want %s got %s", attempts, want, got)
		}
	}
}
