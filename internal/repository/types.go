package repository

import "time"

// OfferListFilter 活动列表过滤条件
type OfferListFilter struct {
	MerchantID string
	Page       int
	PageSize   int
	Search     string
	IsActive   *bool
}

// RewardListFilter 奖励列表过滤条件
type RewardListFilter struct {
	MerchantID string
	Page       int
	PageSize   int
	CustomerID string
	OfferID    uint
	Status     string
}

// PurchaseEventListFilter 购买事件列表过滤条件
type PurchaseEventListFilter struct {
	MerchantID string
	Page       int
	PageSize   int
	CustomerID string
	OfferID    uint
	OrderID    string
	RewardID   uint
}

// CustomerSummaryListFilter 客户汇总列表过滤条件
type CustomerSummaryListFilter struct {
	MerchantID      string
	Page            int
	PageSize        int
	CustomerID      string
	OfferID         uint
	HasEarnedReward *bool
}

// AuditLogListFilter 审计日志过滤条件
type AuditLogListFilter struct {
	MerchantID  string
	Page        int
	PageSize    int
	EventType   string
	CustomerID  string
	OfferID     uint
	RewardID    uint
	OrderID     string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// OutboxListFilter 投递记录过滤条件
type OutboxListFilter struct {
	MerchantID string
	Page       int
	PageSize   int
	Kind       string
	Status     string
}
