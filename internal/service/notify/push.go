package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"mobile-home-delivery/internal/domain"
)

type messageSender interface {
	Send(ctx context.Context, m *messaging.Message) (string, error)
}

// PushNotifier sends status changes to the delivery's FCM topic.
type PushNotifier struct {
	client messageSender
}

// NewPushNotifier initializes Firebase from a service account file. It
// returns nil, nil when no credentials are configured.
func NewPushNotifier(ctx context.Context, credentialsFile, projectID string) (*PushNotifier, error) {
	if credentialsFile == "" {
		return nil, nil
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}
	return &PushNotifier{client: client}, nil
}

// Topic is the FCM topic customers and dispatchers subscribe to for a delivery.
func Topic(deliveryID int64) string {
	return fmt.Sprintf("delivery-%d", deliveryID)
}

// Name implements Notifier.
func (p *PushNotifier) Name() string { return "push" }

// Handles implements Notifier.
func (p *PushNotifier) Handles(n domain.Notification) bool {
	return n.Event == domain.EventStatusChanged
}

// Send implements Notifier.
func (p *PushNotifier) Send(ctx context.Context, n domain.Notification) error {
	to := payloadString(n, "to")
	data := map[string]string{
		"event":       string(n.Event),
		"delivery_id": fmt.Sprint(n.DeliveryID),
		"from":        payloadString(n, "from"),
		"to":          to,
	}
	_, err := p.client.Send(ctx, &messaging.Message{
		Topic: Topic(n.DeliveryID),
		Notification: &messaging.Notification{
			Title: "Delivery " + orDash(payloadString(n, "delivery_number")),
			Body:  "Status: " + statusLabel(domain.DeliveryStatus(to)),
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

func statusLabel(s domain.DeliveryStatus) string {
	switch s {
	case domain.StatusScheduled:
		return "scheduled"
	case domain.StatusFactoryPickupInProgress:
		return "pickup in progress"
	case domain.StatusFactoryPickupCompleted:
		return "picked up"
	case domain.StatusInTransit:
		return "on the road"
	case domain.StatusDeliveryInProgress:
		return "arrived on site"
	case domain.StatusDelivered:
		return "delivered"
	case domain.StatusDelayed:
		return "delayed"
	default:
		return string(s)
	}
}
