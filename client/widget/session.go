// Package widget implements the customer side of the conversation:
// identity bootstrap, the bot-to-agent hand-off, optimistic sends and
// the agent-reply poll loop.
package widget

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"leaddesk/client"
	"leaddesk/client/poll"
	"leaddesk/internal/models"

	"github.com/rs/zerolog"
)

const (
	ModeBot   = "bot"
	ModeAgent = "agent"

	taskAgentReplies = "agent-replies"
	taskHeartbeat    = "heartbeat"
)

// triggerPhrases flip the session to agent mode on a case-insensitive
// substring match anywhere in an outgoing message.
var triggerPhrases = []string{
	"agent",
	"human",
	"support",
	"representative",
	"person",
	"talk to someone",
	"customer support",
	"help desk",
}

const handOffConfirmation = "Perfect! I'm connecting you with a customer support agent now. They'll be with you shortly!"

var (
	ErrAlreadyIdentified = errors.New("identity already submitted")
	ErrEmptyField        = errors.New("name, contact and source are required")
)

type backend interface {
	SaveCustomer(ctx context.Context, name, contact, source string, dev models.DeviceInfo, timeSpentSec int) (*client.SaveCustomerResult, error)
	UpdateTime(ctx context.Context, customerID int64, timeSpentSec int) error
	EndSession(ctx context.Context, sessionID string) error
	RequestAgent(ctx context.Context, customerID int64, sessionID string) error
	BotMessage(ctx context.Context, message string) (*client.BotReply, error)
	SaveMessage(ctx context.Context, customerID int64, sessionID, text, sender string) error
	Messages(ctx context.Context, customerID int64) ([]models.Message, error)
}

// Message is one transcript entry as the visitor sees it. Agent replies
// are displayed under the assistant avatar, so Sender is "bot" for both
// bot and agent originated messages.
type Message struct {
	ID     int64
	Text   string
	Sender string
	Time   time.Time
}

type Config struct {
	PollInterval      time.Duration // agent-reply poll, default 2s
	HeartbeatInterval time.Duration // time-on-site updates, default 30s
	IdentifyWait      time.Duration // hand-off wait for in-flight identity, default 500ms
	Log               zerolog.Logger
}

// Session holds all per-visit state that used to live in module-level
// flags: the one-way mode flip, the seen-set, the pending buffer. One
// Session per widget instance; Close tears every loop down.
type Session struct {
	api   backend
	cfg   Config
	sched *poll.Scheduler

	mu            sync.Mutex
	mode          string
	identifying   bool // save call in flight
	customerID    int64
	sessionID     string
	agentNotified bool
	transcript    []Message
	pending       []string // composed before identity completed
	seen          map[int64]bool
	nextID        int64
	startedAt     time.Time

	identified chan struct{} // closed once the save call succeeds
}

func NewSession(api backend, cfg Config) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 30 * time.Second
	}
	if cfg.IdentifyWait <= 0 {
		cfg.IdentifyWait = 500 * time.Millisecond
	}
	return &Session{
		api:        api,
		cfg:        cfg,
		sched:      poll.NewScheduler(cfg.Log),
		mode:       ModeBot,
		seen:       make(map[int64]bool),
		startedAt:  time.Now(),
		identified: make(chan struct{}),
	}
}

// Identify submits the visitor's identity exactly once. Until it
// succeeds no message is durable. A failed call leaves the session
// usable: the visitor keeps typing and the caller may retry.
func (s *Session) Identify(ctx context.Context, name, contact, source string, dev models.DeviceInfo) error {
	name = strings.TrimSpace(name)
	contact = strings.TrimSpace(contact)
	source = strings.TrimSpace(source)
	if name == "" || contact == "" || source == "" {
		return ErrEmptyField
	}

	// The in-flight flag claims the save before the lock is dropped, so
	// overlapping calls cannot create two backend customers.
	s.mu.Lock()
	if s.customerID != 0 || s.identifying {
		s.mu.Unlock()
		return ErrAlreadyIdentified
	}
	s.identifying = true
	spent := int(time.Since(s.startedAt).Seconds())
	s.mu.Unlock()

	res, err := s.api.SaveCustomer(ctx, name, contact, source, dev, spent)
	if err != nil {
		s.mu.Lock()
		s.identifying = false
		s.mu.Unlock()
		return fmt.Errorf("save customer: %w", err)
	}

	s.mu.Lock()
	s.identifying = false
	s.customerID = res.CustomerID
	s.sessionID = res.SessionID
	pending := s.pending
	s.pending = nil
	notifyAgent := s.mode == ModeAgent && !s.agentNotified
	close(s.identified)
	s.mu.Unlock()

	// Flush messages composed before the identity save. Best effort:
	// they were only ever transient.
	for _, text := range pending {
		if err := s.api.SaveMessage(ctx, res.CustomerID, res.SessionID, text, models.SenderUser); err != nil {
			s.cfg.Log.Warn().Err(err).Msg("pending message flush failed")
		}
	}
	if notifyAgent {
		s.notifyAgentRequested(ctx)
		s.startAgentPoll()
	}

	s.sched.Start(taskHeartbeat, s.cfg.HeartbeatInterval, func(ctx context.Context) error {
		return s.api.UpdateTime(ctx, res.CustomerID, int(time.Since(s.startedAt).Seconds()))
	})
	return nil
}

// Send handles one outgoing visitor message: optimistic local append,
// persistence when identified, trigger-phrase hand-off, and in bot mode
// the assistant round trip.
func (s *Session) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("empty message")
	}

	s.mu.Lock()
	s.appendLocked(text, models.SenderUser)
	identified := s.customerID != 0
	customerID, sessionID := s.customerID, s.sessionID
	mode := s.mode
	if !identified {
		s.pending = append(s.pending, text)
	}
	s.mu.Unlock()

	if identified {
		if err := s.api.SaveMessage(ctx, customerID, sessionID, text, models.SenderUser); err != nil {
			s.cfg.Log.Warn().Err(err).Msg("message save failed")
		}
	}

	if mode == ModeBot && matchesTrigger(text) {
		s.handOff(ctx)
		return nil
	}
	if mode == ModeAgent {
		// Delivery to the human agent happens through the save above;
		// replies arrive via the poll loop.
		return nil
	}

	reply, err := s.api.BotMessage(ctx, text)
	if err != nil {
		s.cfg.Log.Warn().Err(err).Msg("assistant unavailable")
		s.mu.Lock()
		s.appendLocked("I apologize, but I'm having trouble connecting right now. Please try again in a moment.", models.SenderBot)
		s.mu.Unlock()
		return nil
	}

	s.mu.Lock()
	s.appendLocked(reply.Response, models.SenderBot)
	s.mu.Unlock()
	if identified {
		if err := s.api.SaveMessage(ctx, customerID, sessionID, reply.Response, models.SenderBot); err != nil {
			s.cfg.Log.Warn().Err(err).Msg("bot message save failed")
		}
	}
	return nil
}

// handOff flips the session to agent mode. The flip is one-way: no
// path back to bot mode for this session.
func (s *Session) handOff(ctx context.Context) {
	s.mu.Lock()
	if s.mode == ModeAgent {
		s.mu.Unlock()
		return
	}
	s.mode = ModeAgent
	s.appendLocked(handOffConfirmation, models.SenderBot)
	s.mu.Unlock()

	// Best-effort ordering: give an in-flight identity save a bounded
	// window to finish so the notification carries real ids.
	select {
	case <-s.identified:
	case <-time.After(s.cfg.IdentifyWait):
	case <-ctx.Done():
	}

	s.mu.Lock()
	identified := s.customerID != 0
	s.mu.Unlock()
	if !identified {
		// Identify notices the agent-mode flag and notifies later.
		s.cfg.Log.Warn().Msg("agent requested before identity completed")
		return
	}

	s.notifyAgentRequested(ctx)
	s.startAgentPoll()
}

// notifyAgentRequested marks the hand-off on the backend. Safe to call
// repeatedly; falls back to the customer-id-only form when the session
// call fails.
func (s *Session) notifyAgentRequested(ctx context.Context) {
	s.mu.Lock()
	customerID, sessionID := s.customerID, s.sessionID
	s.mu.Unlock()

	err := s.api.RequestAgent(ctx, customerID, sessionID)
	if err != nil {
		s.cfg.Log.Warn().Err(err).Msg("agent request failed, retrying without session")
		err = s.api.RequestAgent(ctx, customerID, "")
	}
	if err != nil {
		s.cfg.Log.Error().Err(err).Msg("agent request failed")
		return
	}
	s.mu.Lock()
	s.agentNotified = true
	s.mu.Unlock()
}

// startAgentPoll begins (or restarts) the 2s agent-reply loop. The loop
// runs until Close; dedup by backend message id makes re-fetching an
// unchanged list a no-op.
func (s *Session) startAgentPoll() {
	s.sched.Start(taskAgentReplies, s.cfg.PollInterval, func(ctx context.Context) error {
		s.mu.Lock()
		customerID := s.customerID
		s.mu.Unlock()
		if customerID == 0 {
			return nil
		}

		msgs, err := s.api.Messages(ctx, customerID)
		if err != nil {
			return err
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, m := range msgs {
			if m.Sender != models.SenderAgent || s.seen[m.ID] {
				continue
			}
			s.seen[m.ID] = true
			s.transcript = append(s.transcript, Message{
				ID:     m.ID,
				Text:   m.Text,
				Sender: models.SenderBot,
				Time:   m.Timestamp,
			})
		}
		return nil
	})
}

func (s *Session) appendLocked(text, sender string) {
	s.nextID++
	s.transcript = append(s.transcript, Message{
		ID:     s.nextID,
		Text:   text,
		Sender: sender,
		Time:   time.Now(),
	})
}

func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

func (s *Session) Identified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerID != 0
}

func (s *Session) CustomerID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.customerID
}

func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// Close cancels the reply poll and the heartbeat and ends the chat
// session on the backend. Mandatory on view teardown; an orphaned loop
// would keep polling a stale customer.
func (s *Session) Close() {
	s.sched.Close()

	s.mu.Lock()
	sessionID := s.sessionID
	s.mu.Unlock()
	if sessionID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.api.EndSession(ctx, sessionID); err != nil {
		s.cfg.Log.Warn().Err(err).Msg("end session failed")
	}
}

func matchesTrigger(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range triggerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
