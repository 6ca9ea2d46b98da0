package domain

import "errors"

var (
	// ErrNotConfigured is returned when the Freqtrade connection settings are missing or invalid.
	ErrNotConfigured = errors.New("freqtrade connection is not configured")
	// ErrAuthenticationFailed is returned when Freqtrade rejects the configured credentials.
	ErrAuthenticationFailed = errors.New("freqtrade rejected the configured credentials")
	// ErrUpstreamUnavailable covers network failures and timeouts reaching Freqtrade.
	ErrUpstreamUnavailable = errors.New("freqtrade api is unavailable")
)
