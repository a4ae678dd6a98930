package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/neurosupport/carechat/internal/ai"
	"github.com/neurosupport/carechat/internal/common"
	"github.com/neurosupport/carechat/internal/emotion"
	"github.com/neurosupport/carechat/internal/ws"
)

// Booker is the external appointment collaborator. It is invoked
// at-most-once per escalation record.
type Booker interface {
	Book(ctx context.Context, sessionID, visitorID string) (BookingResult, error)
}

type BookingResult struct {
	AppointmentID string
	StartTime     time.Time
}

// Escalation lifecycle events, published for therapist notification.
const (
	EventEscalationCreated  = "escalation_created"
	EventEscalationAccepted = "escalation_accepted"
)

type EscalationEvent struct {
	Kind          string `json:"kind"`
	SessionID     string `json:"session_id"`
	RecordID      string `json:"record_id"`
	Reason        Reason `json:"reason"`
	AppointmentID string `json:"appointment_id,omitempty"`
}

// EventPublisher delivers escalation events to interested consumers.
// Publishing is best-effort: a broker outage never blocks a chat turn.
type EventPublisher interface {
	PublishEscalation(ctx context.Context, ev EscalationEvent) error
}

type Options struct {
	WindowSize     int
	Sentinel       string
	AITimeout      time.Duration
	BookingTimeout time.Duration
	FallbackText   string

	AcceptTokens  []string
	DeclineTokens []string

	SuggestionIntent string
	SuggestionHealth string
	AcceptedText     string
	DeclinedText     string
	BookingErrorText string

	DefaultProvider string
	DefaultModel    string
}

func (o *Options) withDefaults() {
	if o.WindowSize <= 0 || o.WindowSize > 100 {
		o.WindowSize = 5
	}
	if o.Sentinel == "" {
		o.Sentinel = "<<ESCALATE>>"
	}
	if o.AITimeout <= 0 {
		o.AITimeout = 30 * time.Second
	}
	if o.BookingTimeout <= 0 {
		o.BookingTimeout = 10 * time.Second
	}
	if o.FallbackText == "" {
		o.FallbackText = "I'm having a little trouble answering right now. I'm still here with you - could you tell me more?"
	}
	if len(o.AcceptTokens) == 0 {
		o.AcceptTokens = []string{"yes", "okay", "ok", "sure", "book", "please", "confirm"}
	}
	if len(o.DeclineTokens) == 0 {
		o.DeclineTokens = []string{"no", "not now", "later", "maybe later", "decline", "nope"}
	}
	if o.DefaultProvider == "" {
		o.DefaultProvider = "ollama"
	}
	if o.DefaultModel == "" {
		o.DefaultModel = "llama3:latest"
	}
}

// Service owns the message dispatch loop and the escalation state
// machine. All per-session state decisions run under a session lock;
// the slow collaborators (classifier, responder) run outside it.
type Service struct {
	repo       *Repo
	registry   *ws.Registry
	providers  *ai.Registry
	classifier emotion.Classifier
	booking    Booker
	events     EventPublisher
	eval       *Evaluator
	opts       Options
	locks      *sessionLocks
	log        *slog.Logger
}

func NewService(
	repo *Repo,
	registry *ws.Registry,
	providers *ai.Registry,
	classifier emotion.Classifier,
	booking Booker,
	events EventPublisher,
	eval *Evaluator,
	opts Options,
	log *slog.Logger,
) *Service {
	opts.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:       repo,
		registry:   registry,
		providers:  providers,
		classifier: classifier,
		booking:    booking,
		events:     events,
		eval:       eval,
		opts:       opts,
		locks:      newSessionLocks(),
		log:        log,
	}
}

func (s *Service) Registry() *ws.Registry { return s.registry }

// CreateSession bootstraps a visitor plus session pair.
func (s *Service) CreateSession(ctx context.Context, visitorName, provider, model string) (*Session, *Visitor, error) {
	if provider == "" {
		provider = s.opts.DefaultProvider
	}
	if model == "" {
		model = s.opts.DefaultModel
	}

	visitor := &Visitor{ID: uuid.NewString()}
	if visitorName = strings.TrimSpace(visitorName); visitorName != "" {
		visitor.Name = &visitorName
	}
	if err := s.repo.CreateVisitor(ctx, visitor); err != nil {
		return nil, nil, err
	}

	sid, err := NewSessionID()
	if err != nil {
		return nil, nil, err
	}
	session := &Session{
		SessionID: sid,
		VisitorID: visitor.ID,
		Provider:  provider,
		Model:     model,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, nil, err
	}
	return session, visitor, nil
}

// Typing relays an ephemeral typing indicator; nothing is persisted.
func (s *Service) Typing(conn *ws.Conn, isTyping bool) {
	s.registry.Broadcast(conn.SessionID(), ws.TypingFrame(conn.SessionID(), conn.Role(), isTyping))
}

// HandleInbound runs the dispatch loop for one inbound frame. The
// sender role comes from the connection's registration, never from
// frame content.
func (s *Service) HandleInbound(ctx context.Context, conn *ws.Conn, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	sessionID := conn.SessionID()
	role := conn.Role()

	session, err := s.repo.GetSessionBySessionID(ctx, sessionID)
	if err != nil {
		return err
	}

	// classify before taking the session lock; a slow or failing
	// classifier must not stall the session, and a failure just means
	// no label
	var label *string
	var confidence *float64
	if role == ws.RoleUser && s.classifier != nil {
		if res, cerr := s.classifier.Classify(ctx, content); cerr == nil {
			label = &res.Label
			confidence = &res.Confidence
		} else {
			s.log.Warn("emotion classify failed", "session_id", sessionID, "err", cerr)
		}
	}

	unlock := s.locks.lock(sessionID)

	msg := &Message{
		SessionID:  sessionID,
		Role:       string(role),
		Content:    content,
		Emotion:    label,
		Confidence: confidence,
	}
	if err := s.repo.InsertMessage(ctx, msg); err != nil {
		unlock()
		return err
	}

	humanHandled := s.registry.HumanHandled(sessionID)
	frame := s.messageFrame(msg)
	if humanHandled {
		// relay-only: the sender's own side already renders the input
		s.registry.SendToOthers(sessionID, role, frame)
	} else {
		s.registry.Broadcast(sessionID, frame)
	}

	rec, err := s.repo.GetEscalationBySession(ctx, sessionID)
	if err != nil {
		unlock()
		return err
	}

	// an unresolved suggestion consumes the turn, matched or not
	if rec != nil && rec.Status == EscalationPending {
		if role == ws.RoleUser {
			s.resolvePending(ctx, session, rec, content)
		}
		unlock()
		return nil
	}

	// human-handled sessions never reach a responder; this branch has
	// no AI call to skip
	if humanHandled {
		unlock()
		return nil
	}

	if role != ws.RoleUser {
		unlock()
		return nil
	}

	window, err := s.repo.RecentWindow(ctx, sessionID, s.opts.WindowSize)
	if err != nil {
		unlock()
		return err
	}

	if rec == nil {
		if d := s.eval.Evaluate(window, content); d.ShouldEscalate {
			s.openEscalation(ctx, sessionID, d.Reason)
			unlock()
			return nil
		}
	}

	// responder turn: snapshot the context and release the session
	// lock so other arrivals keep persisting and broadcasting
	history := make([]ai.Message, 0, len(window))
	for _, m := range window {
		r := "assistant"
		if m.Role == string(ws.RoleUser) {
			r = "user"
		}
		history = append(history, ai.Message{Role: r, Content: m.Content})
	}
	unlock()

	reply, conf, rerr := s.respond(ctx, session, history)
	if rerr != nil {
		// fixed fallback, no retry within the turn
		s.log.Error("ai responder failed", "session_id", sessionID, "err", rerr)
		reply, conf = s.opts.FallbackText, nil
	}

	if strings.Contains(reply, s.opts.Sentinel) {
		// the responder judged escalation necessary; the sentinel is
		// discarded, never persisted or displayed
		unlock := s.locks.lock(sessionID)
		s.openEscalation(ctx, sessionID, ReasonAISignal)
		unlock()
		return nil
	}

	unlock = s.locks.lock(sessionID)
	defer unlock()

	// a therapist may have connected while the responder was running;
	// once human-handled, no ai message is ever appended again
	if s.registry.HumanHandled(sessionID) {
		s.log.Info("dropping ai reply, session human-handled", "session_id", sessionID)
		return nil
	}

	aiMsg := &Message{
		SessionID:  sessionID,
		Role:       string(ws.RoleAI),
		Content:    reply,
		Confidence: conf,
	}
	if err := s.repo.InsertMessage(ctx, aiMsg); err != nil {
		return err
	}
	s.registry.Broadcast(sessionID, s.messageFrame(aiMsg))
	return nil
}

func (s *Service) respond(ctx context.Context, session *Session, history []ai.Message) (string, *float64, error) {
	provider, err := s.providers.Get(ctx, session.Provider, session.Model)
	if err != nil {
		return "", nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.AITimeout)
	defer cancel()

	if sp, ok := provider.(ai.ScoredProvider); ok {
		reply, conf, err := sp.ChatScored(cctx, history)
		if err != nil {
			return "", nil, err
		}
		return reply, &conf, nil
	}
	reply, err := provider.Chat(cctx, history)
	if err != nil {
		return "", nil, err
	}
	return reply, nil, nil
}

// openEscalation performs NONE -> PENDING. A concurrent trigger loses
// the create race and does nothing: no record, no duplicate suggestion.
func (s *Service) openEscalation(ctx context.Context, sessionID string, reason Reason) {
	id, err := common.NewULID()
	if err != nil {
		s.log.Error("escalation id", "err", err)
		return
	}
	rec := &EscalationRecord{
		ID:          id,
		SessionID:   sessionID,
		Reason:      reason,
		Status:      EscalationPending,
		TriggeredAt: time.Now().UTC(),
	}
	_, created, err := s.repo.CreateEscalationIfAbsent(ctx, rec)
	if err != nil {
		s.log.Error("escalation create", "session_id", sessionID, "err", err)
		return
	}
	if !created {
		// already suggested for this session
		return
	}

	text := s.opts.SuggestionHealth
	if reason == ReasonUserRequest {
		text = s.opts.SuggestionIntent
	}
	s.registry.SendToRole(sessionID, ws.RoleUser, ws.Frame{
		Type:      ws.FrameSystemSuggestion,
		SessionID: sessionID,
		Reason:    string(reason),
		Content:   text,
	})
	s.publish(ctx, EscalationEvent{
		Kind:      EventEscalationCreated,
		SessionID: sessionID,
		RecordID:  rec.ID,
		Reason:    reason,
	})
	s.log.Info("escalation suggested", "session_id", sessionID, "reason", reason)
}

// resolvePending attempts PENDING -> ACCEPTED/DECLINED from an enduser
// reply. Unmatched replies leave the record pending.
func (s *Service) resolvePending(ctx context.Context, session *Session, rec *EscalationRecord, content string) {
	lower := strings.ToLower(strings.TrimSpace(content))

	switch {
	case containsAny(lower, s.opts.AcceptTokens):
		s.accept(ctx, session, rec)
	case containsAny(lower, s.opts.DeclineTokens):
		s.decline(ctx, session, rec)
	}
}

func (s *Service) accept(ctx context.Context, session *Session, rec *EscalationRecord) {
	appointmentID := ""
	var startTime *time.Time

	if rec.AppointmentID != nil {
		// a previous acceptance already booked; never book twice
		appointmentID = *rec.AppointmentID
	} else {
		bctx, cancel := context.WithTimeout(ctx, s.opts.BookingTimeout)
		booked, err := s.booking.Book(bctx, session.SessionID, session.VisitorID)
		cancel()
		if err != nil {
			// record stays pending; the user may retry by accepting again
			s.log.Error("booking failed", "session_id", session.SessionID, "err", err)
			s.registry.SendToRole(session.SessionID, ws.RoleUser, ws.Frame{
				Type:      ws.FrameError,
				SessionID: session.SessionID,
				Content:   s.opts.BookingErrorText,
			})
			return
		}
		appointmentID = booked.AppointmentID
		t := booked.StartTime
		startTime = &t
	}

	if err := s.repo.MarkEscalationAccepted(ctx, rec.ID, appointmentID); err != nil {
		s.log.Error("escalation accept update", "session_id", session.SessionID, "err", err)
		return
	}

	s.registry.SendToRole(session.SessionID, ws.RoleUser, ws.Frame{
		Type:          ws.FrameEscalationAccepted,
		SessionID:     session.SessionID,
		Content:       s.opts.AcceptedText,
		AppointmentID: appointmentID,
		StartTime:     startTime,
	})
	s.publish(ctx, EscalationEvent{
		Kind:          EventEscalationAccepted,
		SessionID:     session.SessionID,
		RecordID:      rec.ID,
		Reason:        rec.Reason,
		AppointmentID: appointmentID,
	})
	s.log.Info("escalation accepted", "session_id", session.SessionID, "appointment_id", appointmentID)
}

func (s *Service) decline(ctx context.Context, session *Session, rec *EscalationRecord) {
	if err := s.repo.MarkEscalationDeclined(ctx, rec.ID); err != nil {
		s.log.Error("escalation decline update", "session_id", session.SessionID, "err", err)
		return
	}
	s.registry.SendToRole(session.SessionID, ws.RoleUser,
		ws.SystemMessageFrame(session.SessionID, s.opts.DeclinedText))
	s.log.Info("escalation declined", "session_id", session.SessionID)
}

func (s *Service) publish(ctx context.Context, ev EscalationEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishEscalation(ctx, ev); err != nil {
		s.log.Error("publish escalation event", "kind", ev.Kind, "session_id", ev.SessionID, "err", err)
	}
}

func (s *Service) messageFrame(m *Message) ws.Frame {
	created := m.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return ws.Frame{
		Type:       ws.FrameMessage,
		SessionID:  m.SessionID,
		Sender:     ws.Role(m.Role),
		Content:    m.Content,
		Emotion:    m.Emotion,
		Confidence: m.Confidence,
		CreatedAt:  &created,
	}
}

func containsAny(haystack string, tokens []string) bool {
	for _, t := range tokens {
		if strings.Contains(haystack, strings.ToLower(t)) {
			return true
		}
	}
	return false
}
