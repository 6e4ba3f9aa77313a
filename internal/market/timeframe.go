package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimeframe 解析 "1m"/"15m"/"1h"/"4h"/"1d"/"1w" 形式的周期。
func ParseTimeframe(tf string) (time.Duration, error) {
	s := strings.ToLower(strings.TrimSpace(tf))
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	unit := s[len(s)-1]
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid timeframe %q", tf)
	}
	var base time.Duration
	switch unit {
	case 's':
		base = time.Second
	case 'm':
		base = time.Minute
	case 'h':
		base = time.Hour
	case 'd':
		base = 24 * time.Hour
	case 'w':
		base = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe unit %q", tf)
	}
	return time.Duration(n) * base, nil
}
