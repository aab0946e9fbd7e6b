// Package console implements the agent-side client: the live queue,
// the per-customer thread view and optimistic agent sends.
package console

import (
	"context"
	"errors"
	"sync"
	"time"

	"leaddesk/client/poll"
	"leaddesk/internal/models"

	"github.com/rs/zerolog"
)

const (
	taskQueue  = "queue"
	taskThread = "thread"

	// Displayed sender for visitor messages; the wire value is "user".
	senderCustomer = "customer"
)

var ErrNoSelection = errors.New("no conversation selected")

type backend interface {
	AgentQueue(ctx context.Context) ([]models.Lead, error)
	Messages(ctx context.Context, customerID int64) ([]models.Message, error)
	AgentSendMessage(ctx context.Context, customerID int64, text string) error
	SetStatus(ctx context.Context, customerID int64, status string) error
}

// Message is one thread entry as the agent sees it. Local is true for
// an optimistic send not yet observed in a fetch; Failed marks a send
// whose persist call errored.
type Message struct {
	ID     int64
	Text   string
	Sender string
	Time   time.Time
	Local  bool
	Failed bool
}

type Config struct {
	QueueInterval  time.Duration // default 5s
	ThreadInterval time.Duration // default 3s
	Log            zerolog.Logger
}

type Console struct {
	api   backend
	cfg   Config
	sched *poll.Scheduler

	mu       sync.Mutex
	queue    []models.Lead
	selected int64
	thread   []Message // backend-derived, rebuilt per fetch
	local    []Message // optimistic sends awaiting their fetched copy
	lastID   int64     // change detection over the fetched list
	lastLen  int
	nextID   int64 // local ids count down from -1

	sends sync.WaitGroup
}

func New(api backend, cfg Config) *Console {
	if cfg.QueueInterval <= 0 {
		cfg.QueueInterval = 5 * time.Second
	}
	if cfg.ThreadInterval <= 0 {
		cfg.ThreadInterval = 3 * time.Second
	}
	return &Console{
		api:   api,
		cfg:   cfg,
		sched: poll.NewScheduler(cfg.Log),
	}
}

// Start begins the queue poll. The thread poll starts on Select.
func (c *Console) Start() {
	c.sched.Start(taskQueue, c.cfg.QueueInterval, c.refreshQueue)
}

func (c *Console) refreshQueue(ctx context.Context) error {
	leads, err := c.api.AgentQueue(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.queue = leads
	c.mu.Unlock()
	return nil
}

// Select opens the conversation with the given customer. A lead still
// in "new" is claimed by moving it to "in_progress" before the thread
// poll starts; switching targets resets all per-thread state so the
// new thread never shows the previous customer's messages.
func (c *Console) Select(ctx context.Context, customerID int64) error {
	c.mu.Lock()
	var lead *models.Lead
	for i := range c.queue {
		if c.queue[i].ID == customerID {
			lead = &c.queue[i]
			break
		}
	}
	claim := lead != nil && lead.Status == models.StatusNew
	c.mu.Unlock()

	if claim {
		if err := c.api.SetStatus(ctx, customerID, models.StatusInProgress); err != nil {
			return err
		}
		c.mu.Lock()
		if lead.ID == customerID {
			lead.Status = models.StatusInProgress
		}
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.selected = customerID
	c.thread = nil
	c.local = nil
	c.lastID = 0
	c.lastLen = 0
	c.mu.Unlock()

	// Same key: selecting another customer replaces the running loop.
	c.sched.Start(taskThread, c.cfg.ThreadInterval, c.refreshThread)
	return nil
}

func (c *Console) refreshThread(ctx context.Context) error {
	c.mu.Lock()
	customerID := c.selected
	c.mu.Unlock()
	if customerID == 0 {
		return nil
	}

	msgs, err := c.api.Messages(ctx, customerID)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected != customerID {
		// Selection moved while the fetch was in flight.
		return nil
	}

	// Skip the rebuild when nothing changed since the last fetch.
	var last int64
	if len(msgs) > 0 {
		last = msgs[len(msgs)-1].ID
	}
	if last == c.lastID && len(msgs) == c.lastLen {
		return nil
	}
	c.lastID = last
	c.lastLen = len(msgs)

	thread := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		sender := m.Sender
		if sender == models.SenderUser {
			sender = senderCustomer
		}
		thread = append(thread, Message{
			ID:     m.ID,
			Text:   m.Text,
			Sender: sender,
			Time:   m.Timestamp,
		})
	}
	c.thread = thread

	// Drop optimistic entries whose canonical copy arrived. Failed
	// sends stay visible so the agent can see the loss.
	kept := c.local[:0]
	for _, lm := range c.local {
		if !lm.Failed && fetchedContains(msgs, lm.Text) {
			continue
		}
		kept = append(kept, lm)
	}
	c.local = kept
	return nil
}

func fetchedContains(msgs []models.Message, text string) bool {
	for _, m := range msgs {
		if m.Sender == models.SenderAgent && m.Text == text {
			return true
		}
	}
	return false
}

// Send appends the message locally right away and persists it in the
// background; a persist failure marks the local entry Failed instead of
// removing it.
func (c *Console) Send(ctx context.Context, text string) error {
	if text == "" {
		return errors.New("empty message")
	}

	c.mu.Lock()
	if c.selected == 0 {
		c.mu.Unlock()
		return ErrNoSelection
	}
	customerID := c.selected
	c.nextID--
	id := c.nextID
	c.local = append(c.local, Message{
		ID:     id,
		Text:   text,
		Sender: models.SenderAgent,
		Time:   time.Now(),
		Local:  true,
	})
	c.mu.Unlock()

	c.sends.Add(1)
	go func() {
		defer c.sends.Done()
		if err := c.api.AgentSendMessage(ctx, customerID, text); err != nil {
			c.cfg.Log.Error().Err(err).Int64("customer_id", customerID).Msg("agent send failed")
			c.mu.Lock()
			for i := range c.local {
				if c.local[i].ID == id {
					c.local[i].Failed = true
				}
			}
			c.mu.Unlock()
		}
	}()
	return nil
}

// SetStatus changes the selected customer's status. Closing the
// conversation clears the selection and stops the thread poll; a closed
// lead drops out of the queue on the next queue fetch.
func (c *Console) SetStatus(ctx context.Context, status string) error {
	c.mu.Lock()
	customerID := c.selected
	c.mu.Unlock()
	if customerID == 0 {
		return ErrNoSelection
	}

	if err := c.api.SetStatus(ctx, customerID, status); err != nil {
		return err
	}

	c.mu.Lock()
	for i := range c.queue {
		if c.queue[i].ID == customerID {
			c.queue[i].Status = status
		}
	}
	if status == models.StatusClosed {
		c.selected = 0
		c.thread = nil
		c.local = nil
		c.lastID = 0
		c.lastLen = 0
	}
	c.mu.Unlock()

	if status == models.StatusClosed {
		c.sched.Stop(taskThread)
	}
	return nil
}

func (c *Console) Queue() []models.Lead {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Lead, len(c.queue))
	copy(out, c.queue)
	return out
}

// Thread returns the fetched messages followed by optimistic sends not
// yet confirmed.
func (c *Console) Thread() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, 0, len(c.thread)+len(c.local))
	out = append(out, c.thread...)
	out = append(out, c.local...)
	return out
}

func (c *Console) Selected() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Close stops both polls and waits for in-flight sends.
func (c *Console) Close() {
	c.sched.Close()
	c.sends.Wait()
}
