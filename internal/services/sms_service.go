package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/johkker/delice/pkg/logger"
)

// SMSSender sends text messages to E.164 phone numbers.
type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

// SNSSMSSender publishes transactional SMS through AWS SNS.
type SNSSMSSender struct {
	client   *sns.Client
	senderID string
	logger   *slog.Logger
}

func NewSNSSMSSender(awsCfg aws.Config, senderID string, logger *slog.Logger) *SNSSMSSender {
	return &SNSSMSSender{
		client:   sns.NewFromConfig(awsCfg),
		senderID: senderID,
		logger:   logger,
	}
}

func (s *SNSSMSSender) SendSMS(ctx context.Context, to, message string) error {
	attrs := map[string]types.MessageAttributeValue{
		"AWS.SNS.SMS.SMSType": {
			DataType:    aws.String("String"),
			StringValue: aws.String("Transactional"),
		},
	}
	if s.senderID != "" {
		attrs["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	result, err := s.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber:       aws.String(to),
		Message:           aws.String(message),
		MessageAttributes: attrs,
	})
	if err != nil {
		s.logger.Error("failed to send SMS via SNS",
			slog.String("phone", logger.SanitizedPhone(to)),
			slog.Any("error", err))
		return fmt.Errorf("failed to send sms: %w", err)
	}

	s.logger.Info("sms sent",
		slog.String("phone", logger.SanitizedPhone(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
