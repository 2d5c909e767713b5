package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shelfline-next/internal/constants"
	"github.com/shelfline-next/internal/logger"
	"github.com/shelfline-next/internal/models"

	"gorm.io/gorm"
)

// errAlreadyRecorded 事务内发现幂等键已存在，回滚后按已处理返回
var errAlreadyRecorded = errors.New("loyalty event already recorded")

// PurchaseInput 一条符合条件的购买
type PurchaseInput struct {
	MerchantID     string
	OrderID        string
	CustomerID     string
	VariationID    string
	Quantity       int
	UnitPriceCents int64
	PurchasedAt    time.Time
	LocationID     string
	ReceiptURL     string
	CustomerSource string
	PaymentType    string
}

// ProcessingResult 累计/冲正处理结果
type ProcessingResult struct {
	Processed      bool                  `json:"processed"`
	Reason         string                `json:"reason,omitempty"`
	Event          *models.PurchaseEvent `json:"event,omitempty"`
	RewardProgress *RewardProgress       `json:"reward_progress,omitempty"`
}

func skipped(reason string) *ProcessingResult {
	return &ProcessingResult{Processed: false, Reason: reason}
}

// purchaseIdempotencyKey 同一订单同一规格同一数量只累计一次
func purchaseIdempotencyKey(orderID, variationID string, quantity int) string {
	return fmt.Sprintf("%s:%s:%d", orderID, variationID, quantity)
}

// RecordPurchase 记录一次购买并重算奖励进度
func (s *LoyaltyService) RecordPurchase(ctx context.Context, input PurchaseInput) (*ProcessingResult, error) {
	input.MerchantID = strings.TrimSpace(input.MerchantID)
	input.CustomerID = strings.TrimSpace(input.CustomerID)
	input.OrderID = strings.TrimSpace(input.OrderID)
	input.VariationID = strings.TrimSpace(input.VariationID)
	if input.MerchantID == "" {
		return nil, ErrMerchantRequired
	}
	if input.CustomerID == "" {
		return nil, ErrCustomerRequired
	}
	if input.OrderID == "" {
		return nil, ErrOrderRequired
	}
	if input.VariationID == "" {
		return nil, ErrVariationRequired
	}
	if input.Quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	offer, err := s.offers.GetOfferForVariation(ctx, input.VariationID, input.MerchantID)
	if err != nil {
		return nil, fmt.Errorf("lookup offer for variation: %w", err)
	}
	if offer == nil {
		return skipped(constants.ReasonVariationNotQualifying), nil
	}

	key := purchaseIdempotencyKey(input.OrderID, input.VariationID, input.Quantity)
	existing, err := s.eventRepo.GetByIdempotencyKey(input.MerchantID, key)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &ProcessingResult{Processed: false, Reason: constants.ReasonAlreadyProcessed, Event: existing}, nil
	}

	purchasedAt := input.PurchasedAt.UTC()
	if input.PurchasedAt.IsZero() {
		purchasedAt = s.clock.now()
	}

	result := &ProcessingResult{}
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.lockPair(tx, input.MerchantID, input.CustomerID, offer.ID); err != nil {
			return err
		}
		eventRepo := s.eventRepo.WithTx(tx)
		dup, err := eventRepo.GetByIdempotencyKey(input.MerchantID, key)
		if err != nil {
			return err
		}
		if dup != nil {
			return errAlreadyRecorded
		}

		windowStart := purchasedAt
		unlocked, err := eventRepo.ListUnlockedActive(input.MerchantID, input.CustomerID, offer.ID, startOfDay(s.clock.now()))
		if err != nil {
			return err
		}
		for _, event := range unlocked {
			if !event.IsRefund && event.PurchasedAt.Before(windowStart) {
				windowStart = event.PurchasedAt.UTC()
			}
		}

		event := &models.PurchaseEvent{
			MerchantID:      input.MerchantID,
			OfferID:         offer.ID,
			CustomerID:      input.CustomerID,
			OrderID:         input.OrderID,
			VariationID:     input.VariationID,
			Quantity:        input.Quantity,
			UnitPriceCents:  input.UnitPriceCents,
			PurchasedAt:     purchasedAt,
			WindowStartDate: windowStart,
			WindowEndDate:   windowEnd(purchasedAt, offer.WindowMonths),
			LocationID:      strings.TrimSpace(input.LocationID),
			ReceiptURL:      strings.TrimSpace(input.ReceiptURL),
			PaymentType:     strings.TrimSpace(input.PaymentType),
			CustomerSource:  strings.TrimSpace(input.CustomerSource),
			IdempotencyKey:  key,
			CreatedAt:       s.clock.now(),
		}
		if err := eventRepo.Create(event); err != nil {
			if isUniqueViolation(err) {
				return errAlreadyRecorded
			}
			return fmt.Errorf("create purchase event: %w", err)
		}

		s.audit.RecordTx(tx, AuditEntry{
			MerchantID: input.MerchantID,
			EventType:  constants.AuditEventPurchaseRecorded,
			CustomerID: input.CustomerID,
			OfferID:    offer.ID,
			EventID:    event.ID,
			OrderID:    input.OrderID,
			Quantity:   input.Quantity,
			Detail: models.JSON{
				"variation_id":     input.VariationID,
				"unit_price_cents": input.UnitPriceCents,
				"customer_source":  input.CustomerSource,
			},
		})

		progress, err := s.recomputeTx(tx, offer, input.CustomerID, recomputeTrigger{OrderID: input.OrderID, EventID: event.ID})
		if err != nil {
			return err
		}
		if _, err := s.rebuildSummaryTx(tx, offer, input.CustomerID); err != nil {
			return err
		}
		result.Processed = true
		result.Event = event
		result.RewardProgress = progress
		return nil
	})
	if errors.Is(err, errAlreadyRecorded) {
		existing, lookupErr := s.eventRepo.GetByIdempotencyKey(input.MerchantID, key)
		if lookupErr != nil {
			return nil, lookupErr
		}
		return &ProcessingResult{Processed: false, Reason: constants.ReasonAlreadyProcessed, Event: existing}, nil
	}
	if err != nil {
		return nil, err
	}

	logger.Infow("loyalty_purchase_recorded",
		"merchant_id", input.MerchantID,
		"customer_id", input.CustomerID,
		"offer_id", offer.ID,
		"order_id", input.OrderID,
		"variation_id", input.VariationID,
		"quantity", input.Quantity,
		"reward_status", result.RewardProgress.Status,
		"current_quantity", result.RewardProgress.CurrentQuantity,
	)
	return result, nil
}
