// Package aws sends pipeline completion notifications through SES e-mail
// and SNS topics.
package aws

import (
	"context"
	"errors"
	"fmt"

	"agency-assistant/internal/common/config"
	"agency-assistant/internal/common/logger"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// Notification is a short message about a finished operation.
type Notification struct {
	Operation string
	Subject   string
	Body      string
	Success   bool
	Ref       string
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Notify(context.Context, Notification) error { return nil }

// Multi fans a notification out to several notifiers and joins their errors.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// New builds the notifiers enabled in cfg. It returns Nop when none are.
func New(ctx context.Context, cfg config.AWSConfig, log logger.Logger) (Notifier, error) {
	if !cfg.SES.Enabled && !cfg.SNS.Enabled {
		return Nop{}, nil
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	var out Multi
	if cfg.SES.Enabled {
		out = append(out, NewEmailNotifier(ses.NewFromConfig(awsCfg), cfg.SES.FromEmail, cfg.SES.To, log))
	}
	if cfg.SNS.Enabled {
		out = append(out, NewTopicNotifier(sns.NewFromConfig(awsCfg), cfg.SNS.TopicARN, log))
	}
	return out, nil
}

func subject(n Notification) string {
	if n.Subject != "" {
		return n.Subject
	}
	status := "succeeded"
	if !n.Success {
		status = "failed"
	}
	return fmt.Sprintf("%s %s", n.Operation, status)
}

func body(n Notification) string {
	if n.Ref == "" {
		return n.Body
	}
	return fmt.Sprintf("%s\n\nref: %s", n.Body, n.Ref)
}
