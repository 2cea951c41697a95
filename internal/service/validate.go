package service

import (
	"fmt"
	"strings"
	"time"

	"taskhub/internal/apperr"
)

const maxTitleLength = 255

// 列表分页的默认值与上限
const (
	defaultPage  = 1
	defaultLimit = 20
	maxLimit     = 100
)

func validateTitle(parameter, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperr.InvalidParameter(parameter, value, "non-empty string of at most 255 characters")
	}
	if len(value) > maxTitleLength {
		return apperr.InvalidParameter(parameter, truncate(value, 64), "non-empty string of at most 255 characters")
	}
	return nil
}

// parseTimestamp 固定的时间戳文本格式（RFC 3339）
func parseTimestamp(parameter, value string) (*time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, apperr.InvalidParameter(parameter, value, "ISO 8601 / RFC 3339 timestamp, e.g. 2026-01-15T09:00:00Z")
	}
	return &t, nil
}

// normalizePage 应用默认值并校验边界；超出数据范围的页由存储层返回空集
func normalizePage(page, limit int) (int, int, error) {
	if page == 0 {
		page = defaultPage
	}
	if limit == 0 {
		limit = defaultLimit
	}
	if page < 1 {
		return 0, 0, apperr.InvalidParameter("page", fmt.Sprint(page), "integer >= 1")
	}
	if limit < 1 || limit > maxLimit {
		return 0, 0, apperr.InvalidParameter("limit", fmt.Sprint(limit), "integer between 1 and 100")
	}
	return page, limit, nil
}

// normalizeTags 标签是集合：去重、去空白
func normalizeTags(tags []string) []string {
	out := []string{}
	seen := make(map[string]struct{})
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
