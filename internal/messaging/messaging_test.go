package messaging

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/HgH7/installment-tracker-2.0/internal/models"
)

func TestRender(t *testing.T) {
	date := models.MustParseDate("2024-06-03")
	value := decimal.RequireFromString("333.3")

	t.Run("custom template", func(t *testing.T) {
		got := Render("Hi {name}, {value} is due on {date}. Thanks {name}", "Ahmed", date, value)
		assert.Equal(t, "Hi Ahmed, 333.30 is due on 2024-06-03. Thanks Ahmed", got)
	})

	t.Run("default template", func(t *testing.T) {
		got := Render("  ", "Ahmed", date, value)
		assert.Contains(t, got, "Ahmed")
		assert.Contains(t, got, "333.30")
		assert.Contains(t, got, "2024-06-03")
		assert.NotContains(t, got, "{")
	})
}

func TestLogMessenger_Send(t *testing.T) {
	var buf bytes.Buffer
	m := NewLogMessenger(log.New(&buf))

	err := m.Send(context.Background(), "966500000001", "hello")

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "+966500000001")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, m.Send(ctx, "+966500000001", "hello"), context.Canceled)
}
