// Package messaging renders reminder texts and provides a Messenger that only
// logs, for installs without an outbound gateway.
package messaging

import (
	"context"
	"io"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
)

// DefaultTemplate is the reminder sent when no custom text is configured.
const DefaultTemplate = "مرحبًا {name},\n" +
	"تذكير بدفع قسط بقيمة {value} ريال في تاريخ {date}.\n" +
	"شكرًا لتعاملك معنا!"

// Render fills the {name}, {date} and {value} placeholders of template.
// An empty template falls back to DefaultTemplate.
func Render(template, name string, date models.Date, value decimal.Decimal) string {
	if strings.TrimSpace(template) == "" {
		template = DefaultTemplate
	}
	return strings.NewReplacer(
		"{name}", name,
		"{date}", date.String(),
		"{value}", value.StringFixed(2),
	).Replace(template)
}

// LogMessenger writes every message to the log and reports success.
type LogMessenger struct {
	logger *log.Logger
}

func NewLogMessenger(logger *log.Logger) *LogMessenger {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) Send(ctx context.Context, phone, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.logger.Info("reminder", "phone", models.NormalizePhone(phone), "text", text)
	return nil
}

var _ interfaces.Messenger = (*LogMessenger)(nil)
