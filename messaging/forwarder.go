package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"

	"github.com/better-analytics/better-analytics-go/config"
	"github.com/better-analytics/better-analytics-go/models"
)

// Forwarder publishes accepted events to an Azure Service Bus queue for
// downstream consumers such as aggregation workers. Forwarding is
// optional and strictly after the persistence write.
type Forwarder struct {
	client *azservicebus.Client
	sender *azservicebus.Sender
}

// NewForwarder connects to the configured service bus queue.
func NewForwarder(cfg config.Config) (*Forwarder, error) {
	client, err := azservicebus.NewClientFromConnectionString(cfg.AzureQueueConnStr, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating service bus client: %w", err)
	}

	sender, err := client.NewSender(cfg.AzureEventsQueueName, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating service bus sender: %w", err)
	}

	return &Forwarder{client: client, sender: sender}, nil
}

// Forward publishes one processed event.
func (f *Forwarder) Forward(ctx context.Context, event *models.ProcessedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error marshaling event %s: %w", event.ID, err)
	}

	contentType := "application/json"
	message := &azservicebus.Message{
		Body:        data,
		ContentType: &contentType,
		MessageID:   &event.ID,
	}

	if err := f.sender.SendMessage(ctx, message, nil); err != nil {
		return fmt.Errorf("error forwarding event %s: %w", event.ID, err)
	}
	return nil
}

// Close releases the sender and the underlying connection.
func (f *Forwarder) Close(ctx context.Context) error {
	if err := f.sender.Close(ctx); err != nil {
		return err
	}
	return f.client.Close(ctx)
}
