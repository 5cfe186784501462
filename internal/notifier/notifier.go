// Package notifier periodically reminds customers of installments that fall
// due soon and records each reminder that went out.
package notifier

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-playground/validator/v10"
	"github.com/rs/xid"

	interfaces "github.com/HgH7/installment-tracker-2.0/internal/interfaces"
	"github.com/HgH7/installment-tracker-2.0/internal/ledger"
	"github.com/HgH7/installment-tracker-2.0/internal/messaging"
	"github.com/HgH7/installment-tracker-2.0/internal/models"
	"github.com/HgH7/installment-tracker-2.0/internal/models/events"
	"github.com/HgH7/installment-tracker-2.0/internal/schedule"
)

const (
	DefaultInterval     = time.Hour
	DefaultWindowDays   = 3
	DefaultMaxAttempts  = 2
	DefaultRetryBackoff = 10 * time.Second
	DefaultSendGap      = 2 * time.Second
)

var (
	// ErrSendFailed is returned when every attempt to deliver a reminder failed.
	ErrSendFailed = errors.New("reminder not delivered")
	// ErrScanInProgress is returned by Scan while another scan is running.
	ErrScanInProgress = errors.New("already scanning")

	errNoLongerDue = errors.New("installment no longer due")
)

// Ledger is the part of the ledger the notifier reads and writes back to.
type Ledger interface {
	ReadAll(ctx context.Context) ([]models.Customer, error)
	Get(ctx context.Context, key string) (models.Customer, error)
	MarkNotified(ctx context.Context, key string, date models.Date) error
}

// Config for New. Zero durations and counts take the Default values.
type Config struct {
	Ledger    Ledger               `validate:"required"`
	Messenger interfaces.Messenger `validate:"required"`
	Publisher interfaces.EventPublisher
	Logger    *log.Logger

	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error

	Interval     time.Duration
	WindowDays   int `validate:"gte=0"`
	MaxAttempts  int `validate:"gte=0"`
	RetryBackoff time.Duration
	SendGap      time.Duration
	Template     string
	Enabled      bool
}

type Notifier struct {
	ledger    Ledger
	messenger interfaces.Messenger
	publisher interfaces.EventPublisher
	logger    *log.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error

	interval     time.Duration
	window       int
	maxAttempts  int
	retryBackoff time.Duration
	sendGap      time.Duration
	template     atomic.Value // string

	enabled atomic.Bool
	wake    chan struct{}

	// scanMu is held for a whole scan, so the background loop and a manual
	// scan never remind from the same snapshot.
	scanMu sync.Mutex
}

var validate = validator.New()

func New(conf Config) (*Notifier, error) {
	if err := validate.Struct(conf); err != nil {
		return nil, fmt.Errorf("bad config: %w", err)
	}
	n := &Notifier{
		ledger:       conf.Ledger,
		messenger:    conf.Messenger,
		publisher:    conf.Publisher,
		logger:       conf.Logger,
		now:          conf.Now,
		sleep:        conf.Sleep,
		interval:     cmp.Or(conf.Interval, DefaultInterval),
		window:       cmp.Or(conf.WindowDays, DefaultWindowDays),
		maxAttempts:  cmp.Or(conf.MaxAttempts, DefaultMaxAttempts),
		retryBackoff: cmp.Or(conf.RetryBackoff, DefaultRetryBackoff),
		sendGap:      cmp.Or(conf.SendGap, DefaultSendGap),
		wake:         make(chan struct{}, 1),
	}
	if n.publisher == nil {
		n.publisher = interfaces.NopPublisher{}
	}
	if n.logger == nil {
		n.logger = log.New(io.Discard)
	}
	if n.now == nil {
		n.now = time.Now
	}
	if n.sleep == nil {
		n.sleep = sleep
	}
	n.template.Store(conf.Template)
	n.enabled.Store(conf.Enabled)
	return n, nil
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (n *Notifier) Enabled() bool { return n.enabled.Load() }

// SetEnabled pauses or resumes scanning. Re-enabling a paused notifier
// starts a scan right away instead of waiting out the interval.
func (n *Notifier) SetEnabled(on bool) {
	was := n.enabled.Swap(on)
	n.logger.Info("notifications toggled", "enabled", on)
	if on && !was {
		select {
		case n.wake <- struct{}{}:
		default:
		}
	}
}

// Window is the look-ahead in days used to select due installments.
func (n *Notifier) Window() int { return n.window }

func (n *Notifier) Template() string { return n.template.Load().(string) }

// SetTemplate changes the text used by scheduled reminders.
func (n *Notifier) SetTemplate(template string) { n.template.Store(template) }

// Run scans on every interval until ctx is cancelled. While disabled it
// idles without scanning.
func (n *Notifier) Run(ctx context.Context) {
	n.logger.Info("notifier started", "interval", n.interval, "window_days", n.window, "enabled", n.Enabled())
	for {
		if n.Enabled() {
			_, err := n.Scan(ctx)
			switch {
			case errors.Is(err, ErrScanInProgress):
				n.logger.Info("scan skipped, another scan is running")
			case err != nil && ctx.Err() == nil:
				n.logger.Error("scan abandoned", "err", err)
			}
		}

		timer := time.NewTimer(n.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			n.logger.Info("notifier stopped")
			return
		case <-timer.C:
		case <-n.wake:
			timer.Stop()
		}
	}
}

// Report counts the outcome of one scan.
type Report struct {
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"` // paid or reminded since the ledger was read
}

// Scan runs one cycle: it reads the ledger once, then reminds each due
// installment in turn. A failed reminder is logged and skipped; only a
// failed ledger read or cancellation ends the cycle early. Only one scan runs
// at a time; a concurrent call returns ErrScanInProgress.
func (n *Notifier) Scan(ctx context.Context) (Report, error) {
	if !n.scanMu.TryLock() {
		return Report{}, ErrScanInProgress
	}
	defer n.scanMu.Unlock()

	customers, err := n.ledger.ReadAll(ctx)
	if err != nil {
		n.logger.Error("failed to read ledger, skipping cycle", "err", err)
		return Report{}, err
	}

	due := DueInstallments(customers, models.DateOf(n.now()), n.window)
	rep := Report{Due: len(due)}
	n.logger.Info("checking due installments", "customers", len(customers), "due", len(due))

	for i, item := range due {
		if i > 0 {
			if err := n.sleep(ctx, n.sendGap); err != nil {
				return rep, err
			}
		}
		err := n.remind(ctx, item.Customer, item.Date, n.Template(), false)
		if errors.Is(err, errNoLongerDue) {
			rep.Skipped++
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return rep, ctx.Err()
			}
			rep.Failed++
			continue
		}
		rep.Sent++
	}

	n.logger.Info("notification check completed", "sent", rep.Sent, "failed", rep.Failed, "skipped", rep.Skipped)
	return rep, nil
}

// SendReminder sends a reminder for one installment on demand, with the same
// retry policy as the scan, and records it as notified on success. An empty
// template uses the configured one.
func (n *Notifier) SendReminder(ctx context.Context, key string, date models.Date, template string) error {
	c, err := n.ledger.Get(ctx, key)
	if err != nil {
		return err
	}
	if !c.HasInstallment(date) {
		return fmt.Errorf("%s on %s: %w", c.Name, date, ledger.ErrInstallmentNotFound)
	}
	if template == "" {
		template = n.Template()
	}
	return n.remind(ctx, c, date, template, true)
}

// remind sends one reminder and records it. A scheduled reminder first
// re-reads the customer and is dropped with errNoLongerDue when the date was
// paid or reminded after the scan read the ledger.
func (n *Notifier) remind(ctx context.Context, c models.Customer, date models.Date, template string, manual bool) error {
	if !manual {
		fresh, err := n.ledger.Get(ctx, c.ID)
		if err != nil {
			n.logger.Error("failed to re-read customer", "customer", c.Name, "err", err)
			return err
		}
		if fresh.IsNotified(date) || fresh.IsPaid(date) {
			n.logger.Debug("reminder already handled", "customer", c.Name, "date", date)
			return errNoLongerDue
		}
		c = fresh
	}

	value := schedule.EffectiveValue(c, date)
	text := messaging.Render(template, c.Name, date, value)
	phone := models.NormalizePhone(c.Phone)

	var err error
	for attempt := 1; attempt <= n.maxAttempts; attempt++ {
		n.logger.Debug("sending reminder", "customer", c.Name, "phone", phone, "date", date, "attempt", attempt)
		if err = n.messenger.Send(ctx, phone, text); err == nil {
			break
		}
		n.logger.Warn("reminder attempt failed", "customer", c.Name, "phone", phone, "attempt", attempt, "err", err)
		if attempt < n.maxAttempts {
			if serr := n.sleep(ctx, n.retryBackoff); serr != nil {
				return serr
			}
		}
	}
	if err != nil {
		n.logger.Error("reminder not delivered", "customer", c.Name, "date", date, "attempts", n.maxAttempts, "err", err)
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	if err := n.ledger.MarkNotified(ctx, c.ID, date); err != nil {
		n.logger.Error("reminder sent but not recorded", "customer", c.Name, "date", date, "err", err)
		return err
	}
	n.logger.Info("reminder sent", "customer", c.Name, "phone", phone, "date", date)

	event := events.InstallmentReminded{
		EventID:      xid.New().String(),
		CustomerID:   c.ID,
		CustomerName: c.Name,
		Phone:        phone,
		DueDate:      date.String(),
		Amount:       value,
		Manual:       manual,
		OccurredAt:   n.now(),
	}
	if err := n.publisher.Publish(ctx, events.TopicInstallmentReminded, event); err != nil {
		n.logger.Warn("failed to publish reminder event", "customer", c.ID, "err", err)
	}
	return nil
}
