package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"leaddesk/client"
	"leaddesk/internal/models"

	"github.com/rs/zerolog"
)

type agentReq struct {
	customerID int64
	sessionID  string
}

type savedMsg struct {
	customerID int64
	sessionID  string
	text       string
	sender     string
}

type fakeAPI struct {
	mu sync.Mutex

	customerID int64
	sessionID  string
	saveErr    error
	saveDelay  time.Duration
	saveCalls  int

	saved      []savedMsg
	agentReqs  []agentReq
	sessionErr error // fail RequestAgent calls that carry a session id

	botReply string
	botErr   error
	botCalls int

	messages     []models.Message
	messageCalls int

	timeUpdates []int
	endedSess   []string
}

func (f *fakeAPI) SaveCustomer(ctx context.Context, name, contact, source string, dev models.DeviceInfo, timeSpentSec int) (*client.SaveCustomerResult, error) {
	f.mu.Lock()
	f.saveCalls++
	delay := f.saveDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &client.SaveCustomerResult{CustomerID: f.customerID, SessionID: f.sessionID}, nil
}

func (f *fakeAPI) UpdateTime(ctx context.Context, customerID int64, timeSpentSec int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.timeUpdates = append(f.timeUpdates, timeSpentSec)
	return nil
}

func (f *fakeAPI) EndSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endedSess = append(f.endedSess, sessionID)
	return nil
}

func (f *fakeAPI) RequestAgent(ctx context.Context, customerID int64, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sessionID != "" && f.sessionErr != nil {
		return f.sessionErr
	}
	f.agentReqs = append(f.agentReqs, agentReq{customerID, sessionID})
	return nil
}

func (f *fakeAPI) BotMessage(ctx context.Context, message string) (*client.BotReply, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.botCalls++
	if f.botErr != nil {
		return nil, f.botErr
	}
	return &client.BotReply{Response: f.botReply}, nil
}

func (f *fakeAPI) SaveMessage(ctx context.Context, customerID int64, sessionID, text, sender string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedMsg{customerID, sessionID, text, sender})
	return nil
}

func (f *fakeAPI) Messages(ctx context.Context, customerID int64) ([]models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messageCalls++
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out, nil
}

func (f *fakeAPI) requests() []agentReq {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]agentReq, len(f.agentReqs))
	copy(out, f.agentReqs)
	return out
}

func (f *fakeAPI) savedMessages() []savedMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]savedMsg, len(f.saved))
	copy(out, f.saved)
	return out
}

func newTestSession(api *fakeAPI) *Session {
	return NewSession(api, Config{
		PollInterval:      5 * time.Millisecond,
		HeartbeatInterval: time.Hour,
		IdentifyWait:      10 * time.Millisecond,
		Log:               zerolog.Nop(),
	})
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestIdentifyValidatesFields(t *testing.T) {
	s := newTestSession(&fakeAPI{})
	defer s.Close()

	if err := s.Identify(context.Background(), "  ", "jo@x.com", "Website", models.DeviceInfo{}); !errors.Is(err, ErrEmptyField) {
		t.Fatalf("expected ErrEmptyField, got %v", err)
	}
	if s.Identified() {
		t.Fatal("session should not be identified after a rejected form")
	}
}

func TestIdentifyOnce(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1"}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if got := s.CustomerID(); got != 42 {
		t.Fatalf("customer id = %d, want 42", got)
	}
	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); !errors.Is(err, ErrAlreadyIdentified) {
		t.Fatalf("expected ErrAlreadyIdentified, got %v", err)
	}
}

func TestIdentifyConcurrentCallsSaveOnce(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1", saveDelay: 50 * time.Millisecond}
	s := newTestSession(api)
	defer s.Close()

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			errs <- s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{})
		}()
	}

	var ok, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyIdentified):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || rejected != 1 {
		t.Fatalf("ok=%d rejected=%d, want 1/1", ok, rejected)
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	if api.saveCalls != 1 {
		t.Fatalf("save calls = %d, want 1", api.saveCalls)
	}
}

func TestCloseEndsSession(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1"}
	s := newTestSession(api)

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	s.Close()

	api.mu.Lock()
	defer api.mu.Unlock()
	if len(api.endedSess) != 1 || api.endedSess[0] != "s1" {
		t.Fatalf("ended sessions = %v", api.endedSess)
	}
}

func TestIdentifyFailureLeavesSessionUsable(t *testing.T) {
	api := &fakeAPI{saveErr: errors.New("boom")}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err == nil {
		t.Fatal("expected identify error")
	}
	api.saveErr = nil
	api.customerID = 42
	api.sessionID = "s1"
	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
}

func TestBotRoundTrip(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1", botReply: "Check-in is at 3pm."}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if err := s.Send(context.Background(), "when is check-in?"); err != nil {
		t.Fatalf("send: %v", err)
	}

	tr := s.Transcript()
	if len(tr) != 2 {
		t.Fatalf("transcript length = %d, want 2", len(tr))
	}
	if tr[0].Sender != models.SenderUser || tr[1].Sender != models.SenderBot {
		t.Fatalf("unexpected senders: %s, %s", tr[0].Sender, tr[1].Sender)
	}
	if tr[1].Text != "Check-in is at 3pm." {
		t.Fatalf("bot text = %q", tr[1].Text)
	}

	saved := api.savedMessages()
	if len(saved) != 2 || saved[0].sender != models.SenderUser || saved[1].sender != models.SenderBot {
		t.Fatalf("unexpected saves: %+v", saved)
	}
	if saved[0].sessionID != "s1" {
		t.Fatalf("save session id = %q, want s1", saved[0].sessionID)
	}
}

func TestBotFailureShowsApology(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1", botErr: errors.New("llm down")}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if err := s.Send(context.Background(), "hello there"); err != nil {
		t.Fatalf("send should swallow responder errors, got %v", err)
	}

	tr := s.Transcript()
	last := tr[len(tr)-1]
	if last.Sender != models.SenderBot || !strings.Contains(last.Text, "trouble connecting") {
		t.Fatalf("expected apology, got %+v", last)
	}
}

func TestTriggerPhrasesFlipMode(t *testing.T) {
	for _, text := range []string{
		"I want to talk to a HUMAN",
		"can i speak with an agent",
		"Customer Support please",
		"is there a real PERSON here",
	} {
		if !matchesTrigger(text) {
			t.Errorf("%q should trigger hand-off", text)
		}
	}
	if matchesTrigger("what time is breakfast") {
		t.Error("plain question should not trigger hand-off")
	}
}

func TestHandOff(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1", botReply: "hi"}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if err := s.Send(context.Background(), "I need a human"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if s.Mode() != ModeAgent {
		t.Fatal("expected agent mode after trigger phrase")
	}
	reqs := api.requests()
	if len(reqs) != 1 || reqs[0] != (agentReq{42, "s1"}) {
		t.Fatalf("agent requests = %+v", reqs)
	}
	if api.botCalls != 0 {
		t.Fatal("trigger message must not reach the assistant")
	}

	tr := s.Transcript()
	last := tr[len(tr)-1]
	if last.Sender != models.SenderBot || !strings.Contains(last.Text, "connecting you") {
		t.Fatalf("expected hand-off confirmation, got %+v", last)
	}

	// One-way: later messages go to the agent only.
	if err := s.Send(context.Background(), "are you there"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if api.botCalls != 0 {
		t.Fatal("agent-mode message reached the assistant")
	}
	saved := api.savedMessages()
	if saved[len(saved)-1].sender != models.SenderUser {
		t.Fatalf("expected user save, got %+v", saved[len(saved)-1])
	}
}

func TestHandOffSessionFallback(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1", sessionErr: errors.New("stale session")}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if err := s.Send(context.Background(), "agent please"); err != nil {
		t.Fatalf("send: %v", err)
	}

	reqs := api.requests()
	if len(reqs) != 1 || reqs[0] != (agentReq{42, ""}) {
		t.Fatalf("expected fallback request without session, got %+v", reqs)
	}
}

func TestHandOffBeforeIdentity(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1"}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Send(context.Background(), "talk to someone"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if s.Mode() != ModeAgent {
		t.Fatal("expected agent mode")
	}
	if len(api.requests()) != 0 {
		t.Fatal("no request should go out before identity")
	}

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}

	reqs := api.requests()
	if len(reqs) != 1 || reqs[0] != (agentReq{42, "s1"}) {
		t.Fatalf("expected deferred agent request, got %+v", reqs)
	}

	// The message composed before identity is flushed after it.
	saved := api.savedMessages()
	if len(saved) != 1 || saved[0].text != "talk to someone" || saved[0].sender != models.SenderUser {
		t.Fatalf("expected pending flush, got %+v", saved)
	}
}

func TestAgentReplyDedup(t *testing.T) {
	api := &fakeAPI{customerID: 42, sessionID: "s1"}
	api.messages = []models.Message{
		{ID: 1, Sender: models.SenderUser, Text: "agent please"},
		{ID: 2, Sender: models.SenderAgent, Text: "Hi, how can I help?"},
		{ID: 3, Sender: models.SenderAgent, Text: "Still there?"},
	}
	s := newTestSession(api)
	defer s.Close()

	if err := s.Identify(context.Background(), "Jo", "jo@x.com", "Website", models.DeviceInfo{}); err != nil {
		t.Fatalf("identify: %v", err)
	}
	if err := s.Send(context.Background(), "agent please"); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Wait for several poll rounds, then check each agent message
	// appears exactly once.
	waitFor(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.messageCalls >= 3
	}, "poll loop never ran")

	counts := map[string]int{}
	for _, m := range s.Transcript() {
		counts[m.Text]++
	}
	if counts["Hi, how can I help?"] != 1 || counts["Still there?"] != 1 {
		t.Fatalf("agent replies duplicated or missing: %v", counts)
	}

	// User's own stored messages never re-enter the transcript from a
	// fetch.
	if counts["agent please"] != 1 {
		t.Fatalf("user message duplicated from fetch: %v", counts)
	}
}
