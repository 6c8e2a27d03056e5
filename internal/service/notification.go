package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tuition/internal/domain"
)

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationPaymentSuccess NotificationType = "PAYMENT_SUCCESS"
	NotificationPaymentFailed  NotificationType = "PAYMENT_FAILED"
)

// Notification represents a notification to be sent.
type Notification struct {
	Type        NotificationType
	RecipientID int64 // Parent ID
	Title       string
	Message     string
	Data        map[string]any
	CreatedAt   time.Time
}

// NotificationService delivers notifications to parents. Delivery is a
// structured log line per recipient.
type NotificationService struct {
	logger *slog.Logger
}

// NewNotificationService creates a new NotificationService.
func NewNotificationService(logger *slog.Logger) *NotificationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{logger: logger.With("component", "notifications")}
}

// NotifyPaymentSucceeded tells every charged parent what they paid.
func (s *NotificationService) NotifyPaymentSucceeded(ctx context.Context, payment *domain.Payment, payerIDs []int64) {
	if len(payerIDs) == 0 {
		return
	}
	share := payment.ChargedAmount.Div(decimalFromInt(len(payerIDs)))

	for _, parentID := range payerIDs {
		message := fmt.Sprintf("Payment of %s for student %d was successful. You were charged %s.",
			payment.Amount.StringFixed(2), payment.StudentID, share.StringFixed(2))
		if parentID != payment.ParentID {
			message = fmt.Sprintf("Parent %d paid %s for student %d. Your share of %s was charged.",
				payment.ParentID, payment.Amount.StringFixed(2), payment.StudentID, share.StringFixed(2))
		}

		s.send(ctx, Notification{
			Type:        NotificationPaymentSuccess,
			RecipientID: parentID,
			Title:       "Payment Successful",
			Message:     message,
			Data: map[string]any{
				"payment_id": payment.ID,
				"reference":  payment.Reference,
				"student_id": payment.StudentID,
				"charged":    share.String(),
			},
			CreatedAt: time.Now(),
		})
	}
}

// NotifyPaymentFailed tells the requesting parent that the payment was rejected.
func (s *NotificationService) NotifyPaymentFailed(ctx context.Context, payment *domain.Payment) {
	s.send(ctx, Notification{
		Type:        NotificationPaymentFailed,
		RecipientID: payment.ParentID,
		Title:       "Payment Failed",
		Message:     payment.Description,
		Data: map[string]any{
			"payment_id": payment.ID,
			"reference":  payment.Reference,
			"student_id": payment.StudentID,
			"reason":     string(payment.Reason),
		},
		CreatedAt: time.Now(),
	})
}

func (s *NotificationService) send(ctx context.Context, notification Notification) {
	s.logger.InfoContext(ctx, "notification",
		"type", notification.Type,
		"recipient_id", notification.RecipientID,
		"title", notification.Title,
		"message", notification.Message,
		"data", notification.Data,
	)
}
