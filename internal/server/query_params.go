package server

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const dateOnlyLayout = time.DateOnly

var (
	errBadSnowflake = errors.New("invalid_snowflake_id")
	errBadTime      = errors.New("invalid_time")
	errBadDate      = errors.New("invalid_date")
)

// optional runs parse on a trimmed value. Blank input yields nil, nil.
func optional[T any](raw string, parse func(string) (T, error)) (*T, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v, err := parse(raw)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptionalBool(raw string) (*bool, error) {
	return optional(raw, strconv.ParseBool)
}

func parseOptionalInt(raw string) (*int, error) {
	return optional(raw, strconv.Atoi)
}

func parseOptionalSnowflakeID(raw string) (*snowflake.ID, error) {
	return optional(raw, func(s string) (snowflake.ID, error) {
		id, err := snowflake.ParseString(s)
		if err != nil || id <= 0 {
			return 0, errBadSnowflake
		}
		return id, nil
	})
}

// parseOptionalDate accepts only YYYY-MM-DD and returns midnight UTC.
func parseOptionalDate(raw string) (*time.Time, error) {
	return optional(raw, func(s string) (time.Time, error) {
		t, err := time.Parse(dateOnlyLayout, s)
		if err != nil {
			return time.Time{}, errBadDate
		}
		return t, nil
	})
}

// parseOptionalTime takes RFC3339 or a bare date. A bare date used as an
// upper bound covers the whole day.
func parseOptionalTime(raw string, endOfDay bool) (*time.Time, error) {
	return optional(raw, func(s string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		t, err := time.Parse(dateOnlyLayout, s)
		if err != nil {
			return time.Time{}, errBadTime
		}
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	})
}

// parseSkipLimit returns zero for absent values so services apply their own
// defaults.
func parseSkipLimit(c *gin.Context) (skip, limit int, err error) {
	s, err := parseOptionalInt(c.Query("skip"))
	if err != nil || (s != nil && *s < 0) {
		return 0, 0, newValidationError("skip", "invalid_skip", "skip must be a non-negative integer")
	}
	l, err := parseOptionalInt(c.Query("limit"))
	if err != nil || (l != nil && *l < 1) {
		return 0, 0, newValidationError("limit", "invalid_limit", "limit must be a positive integer")
	}
	if s != nil {
		skip = *s
	}
	if l != nil {
		limit = *l
	}
	return skip, limit, nil
}

func pathID(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := parseOptionalSnowflakeID(c.Param(name))
	if err != nil || id == nil {
		return 0, newValidationError(name, "invalid_id", "invalid id")
	}
	return *id, nil
}
