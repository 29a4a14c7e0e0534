package aws

import (
	"context"

	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// SESAPI is the subset of the SES client used for notifications.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type EmailNotifier struct {
	client SESAPI
	from   string
	to     []string
	log    logger.Logger
}

func NewEmailNotifier(client SESAPI, from string, to []string, log logger.Logger) *EmailNotifier {
	return &EmailNotifier{
		client: client,
		from:   from,
		to:     to,
		log:    log.With(map[string]interface{}{"notifier": "ses"}),
	}
}

func (e *EmailNotifier) Notify(ctx context.Context, n Notification) error {
	out, err := e.client.SendEmail(ctx, &ses.SendEmailInput{
		Source:      aws.String(e.from),
		Destination: &types.Destination{ToAddresses: e.to},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject(n)), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body(n)), Charset: aws.String("UTF-8")},
			},
		},
	})
	if err != nil {
		e.log.Warn("email notification failed", map[string]interface{}{
			"operation": n.Operation,
			"error":     err.Error(),
		})
		return apperrors.NewNotificationError("ses", err)
	}

	e.log.Debug("email notification sent", map[string]interface{}{
		"operation": n.Operation,
		"messageId": aws.ToString(out.MessageId),
	})
	return nil
}
