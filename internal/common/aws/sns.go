package aws

import (
	"context"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// SNSAPI is the subset of the SNS client used for notifications.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type TopicNotifier struct {
	client   SNSAPI
	topicARN string
	log      logger.Logger
}

func NewTopicNotifier(client SNSAPI, topicARN string, log logger.Logger) *TopicNotifier {
	return &TopicNotifier{
		client:   client,
		topicARN: topicARN,
		log:      log.With(map[string]interface{}{"notifier": "sns"}),
	}
}

func (t *TopicNotifier) Notify(ctx context.Context, n Notification) error {
	status := "success"
	if !n.Success {
		status = "failure"
	}
	_, err := t.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(t.topicARN),
		Subject:  aws.String(subject(n)),
		Message:  aws.String(body(n)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"operation": {DataType: aws.String("String"), StringValue: aws.String(n.Operation)},
			"status":    {DataType: aws.String("String"), StringValue: aws.String(status)},
		},
	})
	if err != nil {
		t.log.Warn("topic notification failed", map[string]interface{}{
			"operation": n.Operation,
			"error":     err.Error(),
		})
		return apperrors.NewNotificationError("sns", err)
	}
	return nil
}
