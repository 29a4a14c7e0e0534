package aws

import (
	"context"
	"errors"
	"testing"

	"agency-assistant/internal/common/config"
	apperrors "agency-assistant/internal/common/errors"
	"agency-assistant/internal/common/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSES struct {
	input *ses.SendEmailInput
	err   error
}

func (f *fakeSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &ses.SendEmailOutput{MessageId: aws.String("m-1")}, nil
}

type fakeSNS struct {
	input *sns.PublishInput
	err   error
}

func (f *fakeSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.input = in
	return &sns.PublishOutput{}, f.err
}

func TestEmailNotifier(t *testing.T) {
	client := &fakeSES{}
	n := NewEmailNotifier(client, "bot@agency.test", []string{"team@agency.test"}, logger.NewTestLogger(t))

	err := n.Notify(context.Background(), Notification{Operation: "run_veille", Body: "3 sources", Success: true, Ref: "report-1"})
	require.NoError(t, err)

	require.NotNil(t, client.input)
	assert.Equal(t, "bot@agency.test", aws.ToString(client.input.Source))
	assert.Equal(t, []string{"team@agency.test"}, client.input.Destination.ToAddresses)
	assert.Equal(t, "run_veille succeeded", aws.ToString(client.input.Message.Subject.Data))
	assert.Contains(t, aws.ToString(client.input.Message.Body.Text.Data), "ref: report-1")
}

func TestTopicNotifier(t *testing.T) {
	client := &fakeSNS{}
	n := NewTopicNotifier(client, "arn:aws:sns:eu-west-1:1:agency", logger.NewTestLogger(t))

	require.NoError(t, n.Notify(context.Background(), Notification{Operation: "process_brief", Body: "b"}))
	assert.Equal(t, "process_brief failed", aws.ToString(client.input.Subject))
	assert.Equal(t, "failure", aws.ToString(client.input.MessageAttributes["status"].StringValue))
}

func TestMulti_JoinsErrors(t *testing.T) {
	okTopic := &fakeSNS{}
	badMail := &fakeSES{err: errors.New("throttled")}
	m := Multi{
		NewEmailNotifier(badMail, "a", nil, logger.NewNoOpLogger()),
		NewTopicNotifier(okTopic, "arn", logger.NewNoOpLogger()),
	}

	err := m.Notify(context.Background(), Notification{Operation: "op", Success: true})
	require.Error(t, err)
	assert.NotNil(t, okTopic.input)

	var se *apperrors.StandardError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, apperrors.ErrCodeNotificationSendError, se.Code)
}

func TestNew_DisabledIsNop(t *testing.T) {
	n, err := New(context.Background(), config.AWSConfig{}, logger.NewNoOpLogger())
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), Notification{}))
}
