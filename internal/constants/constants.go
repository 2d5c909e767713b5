package constants

// 奖励状态常量
const (
	RewardStatusInProgress = "in_progress"
	RewardStatusEarned     = "earned"
	RewardStatusRedeemed   = "redeemed"
	RewardStatusRevoked    = "revoked"
)

// 客户来源常量（订单客户解析链路）
const (
	CustomerSourceOrder        = "order"
	CustomerSourceTender       = "tender"
	CustomerSourceLoyaltyEvent = "loyalty_event"
	CustomerSourceReward       = "reward"
	CustomerSourceFulfillment  = "fulfillment"
	CustomerSourcePriorEvent   = "prior_event"
	CustomerSourceManual       = "manual"
)

// 处理结果原因常量
const (
	ReasonNoCustomer             = "no_customer"
	ReasonNoLineItems            = "no_line_items"
	ReasonVariationNotQualifying = "variation_not_qualifying"
	ReasonAlreadyProcessed       = "already_processed"
	ReasonInvalidLine            = "invalid_line"
	ReasonFreeItem               = "free_item"
	ReasonSelfRedeemed           = "self_redeemed"
	ReasonLineFailed             = "line_failed"
	ReasonOrderNotCompleted      = "order_not_completed"
	ReasonRefundNotCompleted     = "refund_not_completed"
	ReasonEventIgnored           = "event_ignored"
)

// 兑换类型常量
const (
	RedemptionTypeManual       = "manual"
	RedemptionTypeAutoDetected = "auto_detected"
)

// 奖励撤销原因
const (
	RevocationReasonRefund = "refund_below_threshold"
)

// 审计事件类型常量
const (
	AuditEventPurchaseRecorded = "purchase_recorded"
	AuditEventRefundRecorded   = "refund_recorded"
	AuditEventRewardProgress   = "reward_progress"
	AuditEventRewardEarned     = "reward_earned"
	AuditEventRewardRevoked    = "reward_revoked"
	AuditEventRewardRedeemed   = "reward_redeemed"
)

// Outbox 消息类型与状态常量
const (
	OutboxKindDiscountIssue   = "discount_issue"
	OutboxKindDiscountCleanup = "discount_cleanup"
	OutboxKindRewardEvent     = "reward_event"

	OutboxStatusPending    = "pending"
	OutboxStatusDispatched = "dispatched"
	OutboxStatusFailed     = "failed"
)

// Webhook 事件类型常量
const (
	WebhookEventOrderCompleted = "order.completed"
	WebhookEventOrderUpdated   = "order.updated"
	WebhookEventRefundCreated  = "refund.created"
	WebhookEventRefundUpdated  = "refund.updated"

	PlatformOrderStateCompleted  = "COMPLETED"
	PlatformRefundStateCompleted = "COMPLETED"
)

// 队列与任务常量
const (
	QueueDefault  = "default"
	QueueCritical = "critical"

	TaskRewardDiscountIssue   = "reward:discount_issue"
	TaskRewardDiscountCleanup = "reward:discount_cleanup"
	TaskRewardEventPublish    = "reward:event_publish"
)

// 后台预置角色
const (
	RoleLoyaltyViewer   = "loyalty_viewer"
	RoleLoyaltyOperator = "loyalty_operator"
	RoleLoyaltyManager  = "loyalty_manager"
)
