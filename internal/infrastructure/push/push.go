// Package push is the capability boundary to the external push gateway.
// Exactly two implementations exist: a logging stub for development and an
// SNS-backed dispatcher for real delivery. Selection happens once at startup
// and is driven purely by configuration; a broken credential degrades to the
// stub instead of crashing the process.
package push

import (
	"context"
	"log/slog"

	"github.com/go-notify-nosql/internal/config"
)

// Message is one push payload addressed to many device tokens.
type Message struct {
	Title string
	Body  string
	// Data is the key-value payload delivered alongside the visible
	// notification. Values are already coerced to strings.
	Data map[string]string
}

// Result is the outcome for a single token within a multicast send.
type Result struct {
	Token     string
	Success   bool
	ErrorCode string
}

// Gateway error codes. These mirror the FCM taxonomy the mobile clients were
// built against; the SNS dispatcher maps its own exception types onto them.
const (
	CodeNotRegistered   = "registration-token-not-registered"
	CodeInvalidToken    = "invalid-registration-token"
	CodeInvalidArgument = "invalid-argument"
	CodeInternal        = "internal-error"
)

// IsPermanent reports whether a per-token error code means the token will
// never be deliverable again and should be pruned from the registry.
func IsPermanent(code string) bool {
	switch code {
	case CodeNotRegistered, CodeInvalidToken, CodeInvalidArgument:
		return true
	}
	return false
}

// Dispatcher sends one message to many tokens and reports per-token
// outcomes. The error return is reserved for failures of the call as a whole
// (credentials, network); per-token problems belong in the result list.
type Dispatcher interface {
	SendMulticast(ctx context.Context, msg Message, tokens []string) ([]Result, error)
}

// New selects the dispatcher implementation from configuration. No platform
// ARN, or an SNS client that cannot be built, yields the stub.
func New(cfg *config.Config, logger *slog.Logger) Dispatcher {
	if cfg.SNSPlatformARN == "" {
		logger.Warn("SNS_PLATFORM_APPLICATION_ARN not set, using stub dispatcher")
		return NewStub(logger)
	}
	d, err := NewSNSDispatcher(cfg, logger)
	if err != nil {
		logger.Warn("SNS dispatcher unavailable, using stub dispatcher", "err", err)
		return NewStub(logger)
	}
	return d
}
