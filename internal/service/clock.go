package service

import "time"

// Clock 可替换的当前时间来源
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

func (c Clock) now() time.Time {
	if c == nil {
		return systemClock()
	}
	return c().UTC()
}

// startOfDay 当天零点（UTC），窗口未过期判断以此为界
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// windowEnd 购买时间加窗口月数
func windowEnd(purchasedAt time.Time, months int) time.Time {
	return purchasedAt.UTC().AddDate(0, months, 0)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
