package pos

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var zeroDecimalCurrencies = map[string]struct{}{
	"JPY": {},
	"KRW": {},
	"VND": {},
}

// Money 平台金额（最小货币单位）
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency,omitempty"`
}

// FormatMinorAmount 将最小货币单位格式化为小数字符串
func FormatMinorAmount(minor int64, currency string) string {
	scale := currencyScale(currency)
	return decimal.NewFromInt(minor).Shift(int32(-scale)).StringFixed(int32(scale))
}

// ParseMinorAmount 将小数字符串转换为最小货币单位
func ParseMinorAmount(amount string, currency string) (int64, error) {
	parsed, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("%w: amount is invalid", ErrConfigInvalid)
	}
	if parsed.IsNegative() {
		return 0, fmt.Errorf("%w: amount must not be negative", ErrConfigInvalid)
	}
	minor := parsed.Shift(int32(currencyScale(currency)))
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount precision is invalid", ErrConfigInvalid)
	}
	return minor.IntPart(), nil
}

// ParseQuantity 解析平台数量字符串（如 "2" 或 "1.0"），仅保留整数部分
func ParseQuantity(raw string) int {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	parsed, err := decimal.NewFromString(trimmed)
	if err != nil {
		return 0
	}
	return int(parsed.Truncate(0).IntPart())
}

func currencyScale(currency string) int {
	if _, ok := zeroDecimalCurrencies[strings.ToUpper(strings.TrimSpace(currency))]; ok {
		return 0
	}
	return 2
}
