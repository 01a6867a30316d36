package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/go-notify-nosql/internal/config"
)

// SNSDispatcher delivers through AWS SNS mobile push. Each device token is
// resolved to a platform endpoint and published to individually; SNS has no
// batch publish, so the multicast is assembled from per-token calls.
type SNSDispatcher struct {
	client      *sns.Client
	platformARN string
	logger      *slog.Logger
}

func NewSNSDispatcher(cfg *config.Config, logger *slog.Logger) (*SNSDispatcher, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return &SNSDispatcher{
		client:      sns.NewFromConfig(awsCfg),
		platformARN: cfg.SNSPlatformARN,
		logger:      logger,
	}, nil
}

func (d *SNSDispatcher) SendMulticast(ctx context.Context, msg Message, tokens []string) ([]Result, error) {
	payload, err := encodePayload(msg)
	if err != nil {
		return nil, fmt.Errorf("encode push payload: %w", err)
	}

	results := make([]Result, 0, len(tokens))
	for _, token := range tokens {
		if err := d.publishToToken(ctx, token, payload); err != nil {
			code, callLevel := classify(err)
			if callLevel {
				// Credentials or connectivity: the whole dispatch failed,
				// not this one token.
				return nil, err
			}
			d.logger.Warn("push failed", "token", token, "code", code, "err", err)
			results = append(results, Result{Token: token, ErrorCode: code})
			continue
		}
		results = append(results, Result{Token: token, Success: true})
	}
	return results, nil
}

func (d *SNSDispatcher) publishToToken(ctx context.Context, token, payload string) error {
	// CreatePlatformEndpoint is idempotent for an unchanged token: SNS
	// returns the existing endpoint ARN.
	ep, err := d.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(d.platformARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return err
	}
	_, err = d.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        ep.EndpointArn,
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	})
	return err
}

// encodePayload builds the SNS message-structure JSON with the FCM-shaped
// notification and data blocks the mobile clients expect.
func encodePayload(msg Message) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{
			"title": msg.Title,
			"body":  msg.Body,
		},
		"data": msg.Data,
	})
	if err != nil {
		return "", err
	}
	outer, err := json.Marshal(map[string]string{
		"default": msg.Body,
		"GCM":     string(gcm),
	})
	if err != nil {
		return "", err
	}
	return string(outer), nil
}

// classify maps an SNS error onto the gateway code taxonomy. Only the
// exception types that indict a single endpoint are per-token; everything
// else (credentials, throttling, transport failures, cancellation) is
// call-level and fails the dispatch as a whole.
func classify(err error) (code string, callLevel bool) {
	var disabled *types.EndpointDisabledException
	if errors.As(err, &disabled) {
		return CodeNotRegistered, false
	}
	var invalid *types.InvalidParameterException
	if errors.As(err, &invalid) {
		return CodeInvalidArgument, false
	}
	var notFound *types.NotFoundException
	if errors.As(err, &notFound) {
		return CodeInvalidToken, false
	}
	return "", true
}
