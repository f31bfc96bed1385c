// internal/push/sns.go
package push

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// SNSService is the subset of the SNS client used here.
type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSNotifier publishes to SNS platform endpoints. The device token is the
// endpoint ARN.
type SNSNotifier struct {
	client SNSService
	logger logger.Logger
}

func NewSNSNotifier(client SNSService, log logger.Logger) *SNSNotifier {
	return &SNSNotifier{
		client: client,
		logger: logger.Component(log, "push-sns"),
	}
}

func (n *SNSNotifier) Send(ctx context.Context, token string, msg Message) error {
	payload, err := buildPayload(msg)
	if err != nil {
		metrics.PushNotifications.WithLabelValues(StatusFailed).Inc()
		return apperrors.NewNotificationSendFailedError(msg.Data["type"], err)
	}

	out, err := n.client.Publish(ctx, &sns.PublishInput{
		TargetArn:        aws.String(token),
		Message:          aws.String(payload),
		MessageStructure: aws.String("json"),
	})
	if err != nil {
		metrics.PushNotifications.WithLabelValues(StatusFailed).Inc()
		return apperrors.NewNotificationSendFailedError(msg.Data["type"], err)
	}

	metrics.PushNotifications.WithLabelValues(StatusSent).Inc()
	fields := map[string]interface{}{"notificationId": msg.Data["notificationId"]}
	if out != nil && out.MessageId != nil {
		fields["messageId"] = *out.MessageId
	}
	n.logger.Debug("push published", fields)
	return nil
}

// buildPayload renders the per-platform JSON envelope SNS expects with
// MessageStructure=json.
func buildPayload(msg Message) (string, error) {
	gcm, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": msg.Title, "body": msg.Body},
		"data":         msg.Data,
	})
	if err != nil {
		return "", fmt.Errorf("marshal gcm payload: %w", err)
	}

	apnsBody := map[string]interface{}{
		"aps": map[string]interface{}{
			"alert": map[string]string{"title": msg.Title, "body": msg.Body},
			"sound": "default",
		},
	}
	for k, v := range msg.Data {
		apnsBody[k] = v
	}
	apns, err := json.Marshal(apnsBody)
	if err != nil {
		return "", fmt.Errorf("marshal apns payload: %w", err)
	}

	envelope, err := json.Marshal(map[string]string{
		"default": msg.Body,
		"GCM":     string(gcm),
		"APNS":    string(apns),
	})
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(envelope), nil
}

// LogNotifier logs messages instead of sending them. Used when push is
// disabled.
type LogNotifier struct {
	logger logger.Logger
}

func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.Component(log, "push-log")}
}

func (n *LogNotifier) Send(ctx context.Context, token string, msg Message) error {
	metrics.PushNotifications.WithLabelValues(StatusDisabled).Inc()
	n.logger.Info("push disabled, message not sent", map[string]interface{}{
		"title":          msg.Title,
		"body":           msg.Body,
		"notificationId": msg.Data["notificationId"],
	})
	return nil
}
