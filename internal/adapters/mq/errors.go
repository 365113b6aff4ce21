package mq

import "errors"

// Sentinel kinds for broker errors.
var (
	ErrEncode        = errors.New("encode message")
	ErrEmptyKey      = errors.New("message key must not be empty")
	ErrNotConnected  = errors.New("broker not connected")
	ErrTopicMissing  = errors.New("topic has no partitions")
	ErrNoBrokers     = errors.New("no brokers configured")
	ErrPublishFailed = errors.New("publish failed")
)
