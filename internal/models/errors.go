package models

import "errors"

// 错误分类，调用方通过 errors.Is 判断
var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrSourceUnavailable = errors.New("source unavailable")
	ErrPublishFailure    = errors.New("publish failure")
	ErrParseSkip         = errors.New("row skipped")
)
