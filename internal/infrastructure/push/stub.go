package push

import (
	"context"
	"log/slog"
)

// Stub performs no network call. It logs what would have been sent and
// reports every token as delivered, which keeps the rest of the pipeline
// exercisable in development.
type Stub struct {
	logger *slog.Logger
}

func NewStub(logger *slog.Logger) *Stub {
	return &Stub{logger: logger}
}

func (s *Stub) SendMulticast(_ context.Context, msg Message, tokens []string) ([]Result, error) {
	s.logger.Info("stub dispatch",
		"title", msg.Title,
		"body", msg.Body,
		"tokens", len(tokens),
	)
	results := make([]Result, len(tokens))
	for i, t := range tokens {
		results[i] = Result{Token: t, Success: true}
	}
	return results, nil
}
