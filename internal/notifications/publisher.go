// Package notifications publishes closure transition events to SNS.
//
// Publishing never fails the action that caused it: errors are logged and dropped.
package notifications

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const publishTimeout = 5 * time.Second

// SNSAPI is the part of the SNS client the publisher needs.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends transition events to one topic. A nil Publisher, or one
// without a topic, does nothing.
type Publisher struct {
	client   SNSAPI
	topicARN string
	logger   *zap.Logger
	now      func() time.Time
}

func NewPublisher(client SNSAPI, topicARN string, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{client: client, topicARN: topicARN, logger: logger, now: time.Now}
}

// NewSNSPublisher builds a publisher on a real SNS client.
func NewSNSPublisher(cfg aws.Config, topicARN string, logger *zap.Logger) *Publisher {
	return NewPublisher(sns.NewFromConfig(cfg), topicARN, logger)
}

// Enabled reports whether events are actually sent.
func (p *Publisher) Enabled() bool {
	return p != nil && p.client != nil && p.topicARN != ""
}

// PublishTransition sends event. It outlives a cancelled request but not publishTimeout.
func (p *Publisher) PublishTransition(ctx context.Context, event TransitionEvent) {
	if !p.Enabled() {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = p.now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("notification: failed to marshal event", zap.Int64("closure_id", event.ClosureID), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	out, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Subject:  aws.String(truncate(event.Subject(), 100)),
		Message:  aws.String(string(data)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"action": {DataType: aws.String("String"), StringValue: aws.String(string(event.Action))},
			"status": {DataType: aws.String("String"), StringValue: aws.String(string(event.To))},
			"closure_id": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(strconv.FormatInt(event.ClosureID, 10)),
			},
		},
	})
	if err != nil {
		p.logger.Warn("notification: failed to publish event (non-fatal)",
			zap.Int64("closure_id", event.ClosureID),
			zap.String("action", string(event.Action)),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("notification: event published",
		zap.Int64("closure_id", event.ClosureID),
		zap.String("action", string(event.Action)),
		zap.String("message_id", aws.ToString(out.MessageId)),
	)
}

// truncate keeps s within the SNS subject limit.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
