package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"crossing-closures/closure-portal/pkg/workflows"
)

type MockSNS struct {
	mock.Mock
}

func (m *MockSNS) Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sns.PublishOutput), args.Error(1)
}

func approvedEvent() TransitionEvent {
	return TransitionEvent{
		ClosureID:     42,
		CrossingName:  "C1",
		Action:        workflows.ActionApproveGibdd,
		ActorID:       4,
		ActorRole:     workflows.RoleTrafficPolice,
		From:          workflows.StatusPending,
		To:            workflows.StatusApproved,
		AdminApproved: true,
		GibddApproved: true,
	}
}

func TestPublishTransition(t *testing.T) {
	client := new(MockSNS)
	var input *sns.PublishInput
	client.On("Publish", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { input = args.Get(1).(*sns.PublishInput) }).
		Return(&sns.PublishOutput{MessageId: aws.String("m-1")}, nil)

	p := NewPublisher(client, "arn:aws:sns:us-east-1:000000000000:closures", nil)
	p.now = func() time.Time { return time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC) }
	p.PublishTransition(context.Background(), approvedEvent())

	require.NotNil(t, input)
	assert.Equal(t, "arn:aws:sns:us-east-1:000000000000:closures", aws.ToString(input.TopicArn))
	assert.Equal(t, "Closure Approved: C1", aws.ToString(input.Subject))
	assert.Equal(t, "approve_gibdd", aws.ToString(input.MessageAttributes["action"].StringValue))
	assert.Equal(t, "42", aws.ToString(input.MessageAttributes["closure_id"].StringValue))

	var sent TransitionEvent
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(input.Message)), &sent))
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, workflows.StatusApproved, sent.To)
	assert.True(t, sent.OccurredAt.Equal(time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)))
}

func TestPublishFailureIsSwallowed(t *testing.T) {
	client := new(MockSNS)
	client.On("Publish", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	p := NewPublisher(client, "arn:topic", nil)
	assert.NotPanics(t, func() { p.PublishTransition(context.Background(), approvedEvent()) })
	client.AssertNumberOfCalls(t, "Publish", 1)
}

func TestPublishSurvivesCancelledRequest(t *testing.T) {
	client := new(MockSNS)
	client.On("Publish", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), mock.Anything).
		Return(&sns.PublishOutput{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewPublisher(client, "arn:topic", nil).PublishTransition(ctx, approvedEvent())
	client.AssertExpectations(t)
}

func TestDisabledPublisher(t *testing.T) {
	client := new(MockSNS)

	NewPublisher(client, "", nil).PublishTransition(context.Background(), approvedEvent())
	var nilPublisher *Publisher
	nilPublisher.PublishTransition(context.Background(), approvedEvent())

	assert.False(t, nilPublisher.Enabled())
	client.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}
