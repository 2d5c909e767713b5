package service

import (
	"errors"
	"fmt"
)

// 错误分类，具体错误均包装其中之一，调用方可用 errors.Is 判断类别
var (
	ErrValidation      = errors.New("validation error")
	ErrNotFound        = errors.New("not found")
	ErrState           = errors.New("state error")
	ErrConflict        = errors.New("conflict")
	ErrExternalService = errors.New("external service error")
)

// 参数校验
var (
	ErrMerchantRequired    = fmt.Errorf("%w: merchant id is required", ErrValidation)
	ErrCustomerRequired    = fmt.Errorf("%w: customer id is required", ErrValidation)
	ErrOrderRequired       = fmt.Errorf("%w: order id is required", ErrValidation)
	ErrVariationRequired   = fmt.Errorf("%w: variation id is required", ErrValidation)
	ErrInvalidQuantity     = fmt.Errorf("%w: quantity must be positive", ErrValidation)
	ErrOfferNameRequired   = fmt.Errorf("%w: offer name and brand are required", ErrValidation)
	ErrOfferRequiredQty    = fmt.Errorf("%w: required quantity must be at least 1", ErrValidation)
	ErrOfferWindowInvalid  = fmt.Errorf("%w: window months must be at least 1", ErrValidation)
	ErrRewardIDRequired    = fmt.Errorf("%w: reward id is required", ErrValidation)
	ErrRedemptionValueBad  = fmt.Errorf("%w: redemption value is invalid", ErrValidation)
	ErrWebhookTypeRequired = fmt.Errorf("%w: webhook event type is required", ErrValidation)
)

// 资源不存在
var (
	ErrOfferNotFound     = fmt.Errorf("%w: offer", ErrNotFound)
	ErrVariationNotFound = fmt.Errorf("%w: qualifying variation", ErrNotFound)
	ErrRewardNotFound    = fmt.Errorf("%w: reward", ErrNotFound)
	ErrSummaryNotFound   = fmt.Errorf("%w: customer summary", ErrNotFound)
)

// 状态错误
var (
	ErrRewardNotEarned        = fmt.Errorf("%w: reward is not earned", ErrState)
	ErrRewardCustomerMismatch = fmt.Errorf("%w: reward belongs to another customer", ErrState)
	ErrOfferInactive          = fmt.Errorf("%w: offer is inactive", ErrState)
	ErrRedeemRewardMissing    = fmt.Errorf("%w: %w", ErrState, ErrRewardNotFound)
)

// 冲突
var (
	ErrVariationConflict = fmt.Errorf("%w: variation is linked to another active offer", ErrConflict)
	ErrDuplicateEvent    = fmt.Errorf("%w: event already recorded", ErrConflict)
)

// 外部服务
var (
	ErrDiscountIssueFailed   = fmt.Errorf("%w: discount issuance failed", ErrExternalService)
	ErrDiscountCleanupFailed = fmt.Errorf("%w: discount cleanup failed", ErrExternalService)
	ErrEventPublishFailed    = fmt.Errorf("%w: reward event publish failed", ErrExternalService)
)
