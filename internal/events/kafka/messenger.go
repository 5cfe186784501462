package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
)

// SMSRequest is what an outbound gateway consumes from the SMS topic.
type SMSRequest struct {
	Phone       string    `json:"phone"`
	Text        string    `json:"text"`
	RequestedAt time.Time `json:"requested_at"`
}

// Messenger hands reminders to an external gateway through a Kafka topic.
// A send succeeds once the broker has acknowledged the request.
type Messenger struct {
	writer messageWriter
	now    func() time.Time
}

func NewMessenger(brokers []string, topic string) *Messenger {
	return &Messenger{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		now: time.Now,
	}
}

func (m *Messenger) Send(ctx context.Context, phone, text string) error {
	phone = models.NormalizePhone(phone)
	data, err := json.Marshal(SMSRequest{Phone: phone, Text: text, RequestedAt: m.now().UTC()})
	if err != nil {
		return err
	}

	// keyed by phone so one recipient's messages stay in order
	if err := m.writer.WriteMessages(ctx, kafka.Message{Key: []byte(phone), Value: data}); err != nil {
		return fmt.Errorf("queue sms to %s: %w", phone, err)
	}
	return nil
}

func (m *Messenger) Close() error {
	return m.writer.Close()
}

var _ interfaces.Messenger = (*Messenger)(nil)
