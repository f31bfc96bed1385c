// internal/feed/actions/handler.go
package actions

import (
	"context"
	"fmt"
	"time"

	apperrors "feed-sync/internal/common/errors"
	"feed-sync/internal/common/logger"
	"feed-sync/internal/common/metrics"
	"feed-sync/internal/common/observability"
	"feed-sync/internal/models"
	"feed-sync/internal/push"
	"feed-sync/internal/store"
	"feed-sync/pkg/registry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// Handler writes a donor's accept/decline onto the Request and notifies the
// requester.
type Handler struct {
	config   *Config
	store    store.DocStore
	schemas  *registry.SchemaRegistry
	notifier push.Notifier
	tokens   push.TokenLookup
	obs      *observability.Observability
	logger   logger.Logger
	now      func() time.Time
}

func NewHandler(config *Config, st store.DocStore, notifier push.Notifier, tokens push.TokenLookup, obs *observability.Observability, log logger.Logger) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:   config,
		store:    st,
		schemas:  registry.Default(),
		notifier: notifier,
		tokens:   tokens,
		obs:      obs,
		logger:   logger.Component(log, "actions"),
		now:      time.Now,
	}
}

// Execute records the decision. onWritten, if set, runs after the write
// landed and before the requester is notified.
func (h *Handler) Execute(ctx context.Context, input *Input, onWritten func()) (*Output, error) {
	start := h.now()
	ctx, span := h.obs.StartSpan(ctx, "actions."+Verb(input.Decision),
		attribute.String("requestId", input.RequestID),
		attribute.String("decision", input.Decision))
	defer span.End()

	output, err := h.execute(ctx, input, onWritten)
	result := "success"
	if err != nil {
		result = "error"
		span.RecordError(err)
	}
	elapsed := h.now().Sub(start)
	metrics.Actions.WithLabelValues(input.Decision, result).Inc()
	metrics.ActionDuration.WithLabelValues(input.Decision).Observe(elapsed.Seconds())
	h.obs.RecordAction(ctx, input.Decision, result, elapsed)
	return output, err
}

func (h *Handler) execute(ctx context.Context, input *Input, onWritten func()) (*Output, error) {
	if input.Decision != DecisionAccept && input.Decision != DecisionDecline {
		return nil, fmt.Errorf("unknown decision %q", input.Decision)
	}
	if input.Item == nil || input.Item.UID == "" {
		h.logger.Warn("request unavailable", map[string]interface{}{"requestId": input.RequestID})
		return nil, apperrors.NewRequestUnavailableError(input.RequestID)
	}

	response := h.buildResponse(input)
	if err := h.schemas.Validate(registry.SchemaResponse, response.ToMap()); err != nil {
		return nil, apperrors.NewResponseValidationFailedError(err.Error())
	}

	fields := map[string]interface{}{
		models.FieldResponses:   store.ArrayUnion(response.ToMap()),
		models.FieldSeenBy:      store.ArrayUnion(input.DonorUID),
		models.FieldLastUpdated: store.ServerTimestamp(),
	}
	if input.Decision == DecisionAccept {
		fields[models.FieldStatus] = models.StatusAccepted
		fields[models.FieldRespondedBy] = response.DonorName
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	err := h.store.Update(writeCtx, h.config.Collection, input.RequestID, fields)
	cancel()
	if err != nil {
		h.logger.WithError(err).Error("donor response write failed", map[string]interface{}{
			"requestId": input.RequestID,
			"decision":  input.Decision,
		})
		return nil, apperrors.NewActionWriteFailedError(Verb(input.Decision), err)
	}

	h.logger.Info("donor response recorded", map[string]interface{}{
		"requestId": input.RequestID,
		"decision":  input.Decision,
	})
	if onWritten != nil {
		onWritten()
	}

	notificationID, pushStatus := h.notifyRequester(ctx, input.Item.UID, input.RequestID, response)

	return &Output{
		RequestID:      input.RequestID,
		Response:       response,
		Message:        successMessage(input.Decision),
		NotificationID: notificationID,
		PushStatus:     pushStatus,
	}, nil
}

func (h *Handler) buildResponse(input *Input) models.Response {
	name := input.Profile.Name
	if name == "" {
		name = defaultDonorName
	}
	bloodGroup := input.Profile.BloodGroup
	if bloodGroup == "" {
		bloodGroup = input.BloodGroup
	}
	city := input.Profile.City
	if city == "" {
		city = input.City
	}
	return models.Response{
		DonorUID:        input.DonorUID,
		DonorName:       name,
		DonorMobile:     input.Profile.ContactNumber(),
		Status:          input.Decision,
		RespondedAt:     h.now().UTC().Format(time.RFC3339),
		SeenByReceiver:  false,
		DonorBloodGroup: bloodGroup,
		DonorCity:       city,
	}
}

// notifyRequester is best effort: every failure is logged and swallowed.
func (h *Handler) notifyRequester(ctx context.Context, receiverUID, requestID string, response models.Response) (string, string) {
	notificationID := uuid.New().String()
	if h.notifier == nil || h.tokens == nil {
		return notificationID, push.StatusDisabled
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.PushTimeout)
	defer cancel()

	token, err := h.tokens.FetchToken(ctx, receiverUID)
	if err != nil {
		h.logger.WithError(err).Warn("push token lookup failed", map[string]interface{}{"receiverUid": receiverUID})
		return notificationID, push.StatusFailed
	}
	if token == "" {
		metrics.PushNotifications.WithLabelValues(push.StatusNoToken).Inc()
		return notificationID, push.StatusNoToken
	}

	msg := BuildMessage(requestID, response)
	msg.Data["notificationId"] = notificationID
	if err := h.notifier.Send(ctx, token, msg); err != nil {
		h.logger.WithError(err).Warn("failed to notify receiver about donor response", map[string]interface{}{
			"receiverUid": receiverUID,
			"requestId":   requestID,
		})
		return notificationID, push.StatusFailed
	}
	return notificationID, push.StatusSent
}

// BuildMessage renders the push copy for a donor response.
func BuildMessage(requestID string, response models.Response) push.Message {
	msg := push.Message{
		Data: map[string]string{
			"type":      push.TypeDonorResponse,
			"requestId": requestID,
			"status":    response.Status,
			"donorName": response.DonorName,
		},
	}
	if response.Status == DecisionAccept {
		msg.Title = "A donor accepted your request"
		msg.Body = fmt.Sprintf("%s can donate %s blood in %s.", response.DonorName, response.DonorBloodGroup, response.DonorCity)
	} else {
		msg.Title = "Update on your blood request"
		msg.Body = fmt.Sprintf("%s is unavailable right now.", response.DonorName)
	}
	return msg
}
