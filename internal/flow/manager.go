// internal/flow/manager.go
package flow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"convocore/internal/catalog"
	domainerrors "convocore/internal/common/errors"
	"convocore/internal/common/logger"
	"convocore/internal/common/metrics"
	"convocore/internal/intent"
	"convocore/internal/models"
	"convocore/internal/provider"
	"convocore/internal/session"
)

const defaultNotFound = "No encontré información para tu consulta."

// CatalogSource loads tenant snapshots for the manager. The catalog cache
// implements it.
type CatalogSource interface {
	GetSnapshot(ctx context.Context, tenantID string) (*catalog.Snapshot, error)
}

// EscalationNotifier pages a human agent when a conversation escalates.
type EscalationNotifier interface {
	NotifyEscalation(ctx context.Context, tenant *models.Tenant, sess *models.ConversationSession, reason string) error
}

// Options carries the manager's global timing defaults. Tenant policies
// override the session values.
type Options struct {
	AITimeout        time.Duration
	DataTimeout      time.Duration
	MessagingTimeout time.Duration
	SessionTTL       time.Duration
	MemoryWindow     int
}

// Manager drives one conversation turn end to end: load state, score the
// message, run the pure transition, perform the decided side effects through
// the bound gateways, persist and reply. All provider I/O happens here, at
// the boundary, never inside the transition.
type Manager struct {
	catalogs CatalogSource
	sessions session.Store
	engine   *intent.Engine
	registry *provider.Registry
	notifier EscalationNotifier
	options  Options
	logger   logger.Logger
	now      func() time.Time
	newID    func() string
}

func NewManager(
	catalogs CatalogSource,
	sessions session.Store,
	engine *intent.Engine,
	registry *provider.Registry,
	notifier EscalationNotifier,
	options Options,
	log logger.Logger,
) *Manager {
	if options.AITimeout <= 0 {
		options.AITimeout = 10 * time.Second
	}
	if options.DataTimeout <= 0 {
		options.DataTimeout = 5 * time.Second
	}
	if options.MessagingTimeout <= 0 {
		options.MessagingTimeout = 5 * time.Second
	}
	if options.SessionTTL <= 0 {
		options.SessionTTL = 30 * time.Minute
	}
	if options.MemoryWindow <= 0 {
		options.MemoryWindow = 10
	}
	return &Manager{
		catalogs: catalogs,
		sessions: sessions,
		engine:   engine,
		registry: registry,
		notifier: notifier,
		options:  options,
		logger:   log.WithFields(map[string]interface{}{"component": "flow-manager"}),
		now:      time.Now,
		newID:    func() string { return uuid.NewString() },
	}
}

// HandleMessage processes one inbound message and returns the reply that was
// (or should be) delivered. A nil reply with nil error means automation is
// intentionally silent, e.g. during a human handoff.
func (m *Manager) HandleMessage(ctx context.Context, msg *models.InboundMessage) (*models.OutboundMessage, error) {
	start := m.now()

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil, domainerrors.NewEmptyMessageError()
	}

	snapshot, err := m.catalogs.GetSnapshot(ctx, msg.TenantID)
	if err != nil {
		m.logger.Error("catalog unavailable for turn", map[string]interface{}{
			"tenantId": msg.TenantID,
			"error":    err.Error(),
		})
		return nil, err
	}
	tenant := snapshot.Tenant

	var decision *models.FlowDecision
	var sess *models.ConversationSession

	// Optimistic concurrency: one conflicted save gets a reload and a full
	// re-decide against the fresh state; a second conflict drops the turn.
	for attempt := 0; ; attempt++ {
		sess, err = m.loadSession(ctx, msg, tenant)
		if err != nil {
			return nil, err
		}

		scoring := m.score(sess, snapshot, text)
		decision = Transition(sess, snapshot, text, scoring)
		metrics.IntentDecisions.WithLabelValues(tenant.ID, string(scoring.Decision)).Inc()

		reply := m.perform(ctx, snapshot, sess, decision, text)
		decision.Reply = reply

		sess.Remember(models.RoleUser, text, m.memoryWindow(tenant), msg.Timestamp)
		if reply != "" && !decision.Silent {
			sess.Remember(models.RoleAssistant, reply, m.memoryWindow(tenant), m.now())
		}
		sess.LastActivity = m.now()

		err = m.sessions.Save(ctx, sess, m.sessionTTL(tenant))
		if err == nil {
			break
		}
		if domainerrors.CodeOf(err) == domainerrors.ErrCodeSessionConflict && attempt == 0 && idempotentTurn(decision) {
			m.logger.Warn("session conflict, retrying turn against fresh state", map[string]interface{}{
				"sessionKey": sess.Key(),
			})
			continue
		}
		if domainerrors.CodeOf(err) == domainerrors.ErrCodeSessionConflict {
			metrics.DroppedTurns.WithLabelValues(tenant.ID).Inc()
		}
		return nil, err
	}

	if decision.Notify {
		m.notifyEscalation(ctx, tenant, sess)
	}

	var outbound *models.OutboundMessage
	if decision.Reply != "" && !decision.Silent {
		outbound = &models.OutboundMessage{
			TenantID:      tenant.ID,
			ChannelUserID: msg.ChannelUserID,
			Text:          decision.Reply,
		}
		if err := m.deliver(ctx, tenant, outbound); err != nil {
			m.logger.Error("reply delivery failed", map[string]interface{}{
				"tenantId":   tenant.ID,
				"sessionKey": sess.Key(),
				"error":      err.Error(),
			})
			metrics.ProviderFailures.WithLabelValues("messaging", string(domainerrors.CodeOf(err))).Inc()
			return outbound, err
		}
	}

	metrics.TurnsProcessed.WithLabelValues(tenant.ID).Inc()
	metrics.TurnDuration.WithLabelValues(tenant.ID).Observe(m.now().Sub(start).Seconds())

	return outbound, nil
}

// CloseConversation ends a conversation on behalf of an operator, e.g. when
// an agent finishes a handoff through the management endpoint.
// readOnlyQueryTypes marks the data source queries that can safely run again
// after a session conflict. A write-style query type must be left out so the
// retry path never reprocesses its message.
var readOnlyQueryTypes = map[string]bool{
	"menu_items":         true,
	"business_hours":     true,
	"table_availability": true,
	"order_status":       true,
}

// idempotentTurn reports whether the side effects already performed for this
// decision can run a second time for the same message.
func idempotentTurn(decision *models.FlowDecision) bool {
	if decision.Action == models.ActionRequestData {
		return readOnlyQueryTypes[decision.QueryType]
	}
	return true
}

func (m *Manager) CloseConversation(ctx context.Context, tenantID, channelUserID string) error {
	snapshot, err := m.catalogs.GetSnapshot(ctx, tenantID)
	if err != nil {
		return err
	}

	sess, err := m.sessions.Load(ctx, tenantID, channelUserID)
	if err != nil {
		return err
	}
	if sess == nil {
		return nil
	}

	sess.ResetPursuit()
	sess.Escalated = false
	sess.State = models.StateClosed
	sess.LastActivity = m.now()
	if err := m.sessions.Save(ctx, sess, m.sessionTTL(snapshot.Tenant)); err != nil {
		return err
	}

	outbound := &models.OutboundMessage{
		TenantID:      tenantID,
		ChannelUserID: channelUserID,
		Text:          snapshot.Tenant.TemplateOr(models.TemplateClosed, defaultClosed),
	}
	if err := m.deliver(ctx, snapshot.Tenant, outbound); err != nil {
		m.logger.Warn("close notice delivery failed", map[string]interface{}{
			"tenantId": tenantID,
			"error":    err.Error(),
		})
	}
	return nil
}

func (m *Manager) loadSession(ctx context.Context, msg *models.InboundMessage, tenant *models.Tenant) (*models.ConversationSession, error) {
	sess, err := m.sessions.Load(ctx, msg.TenantID, msg.ChannelUserID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return models.NewSession(m.newID(), msg.TenantID, msg.ChannelUserID, m.now()), nil
	}
	if sess.Expired(m.sessionTTL(tenant), m.now()) {
		// Stale state must not leak into a new conversation; keep the stored
		// version so the save still detects races.
		sess.ResetPursuit()
		sess.Escalated = false
		sess.State = models.StateIdle
		sess.Memory = nil
	}
	return sess, nil
}

func (m *Manager) score(sess *models.ConversationSession, snapshot *catalog.Snapshot, text string) *models.ScoringResult {
	if sess.Escalated {
		// Automation is out of the loop; no scoring needed for a handoff.
		return &models.ScoringResult{Decision: models.DecisionNone}
	}
	return m.engine.Score(text, snapshot.Intents, snapshot.Tenant.Scoring, sess.ActiveIntentID)
}

// perform executes the decision's side effects and returns the final reply
// text. Provider failures are converted here into the tenant's configured
// degradation: a fallback message or an escalation. Every path yields a
// user-visible reply unless the decision is silent.
func (m *Manager) perform(ctx context.Context, snapshot *catalog.Snapshot, sess *models.ConversationSession, decision *models.FlowDecision, text string) string {
	tenant := snapshot.Tenant

	switch decision.Action {
	case models.ActionRequestData:
		return m.performDataRequest(ctx, tenant, sess, decision, text)
	case models.ActionInvokeAI:
		return m.performAIReply(ctx, tenant, sess, decision, text, nil)
	default:
		return decision.Reply
	}
}

func (m *Manager) performDataRequest(ctx context.Context, tenant *models.Tenant, sess *models.ConversationSession, decision *models.FlowDecision, text string) string {
	source, err := m.registry.ResolveData(tenant.Bindings)
	if err != nil {
		return m.degrade(tenant, sess, decision, "data", err)
	}

	var result *provider.QueryResult
	err = m.withRetry(ctx, tenant, m.options.DataTimeout, func(callCtx context.Context) error {
		var qerr error
		result, qerr = source.Query(callCtx, &provider.QueryRequest{
			TenantID:  tenant.ID,
			QueryType: decision.QueryType,
			Params:    sess.Slots,
		})
		return qerr
	})
	if err != nil {
		if domainerrors.CodeOf(err) == domainerrors.ErrCodeDataNotFound {
			m.completePursuit(sess)
			return defaultNotFound
		}
		return m.degrade(tenant, sess, decision, "data", err)
	}

	if decision.Intent != nil && decision.Intent.Fulfillment.UseAI {
		return m.performAIReply(ctx, tenant, sess, decision, text, result.Data)
	}

	m.completePursuit(sess)
	return formatResult(result.Data)
}

func (m *Manager) performAIReply(ctx context.Context, tenant *models.Tenant, sess *models.ConversationSession, decision *models.FlowDecision, text string, data interface{}) string {
	ai, err := m.registry.ResolveAI(tenant.Bindings)
	if err != nil {
		return m.degrade(tenant, sess, decision, "ai", err)
	}

	intentLabel := ""
	if decision.Intent != nil {
		intentLabel = decision.Intent.Label
	}

	var resp *provider.GenerateResponse
	err = m.withRetry(ctx, tenant, m.options.AITimeout, func(callCtx context.Context) error {
		var gerr error
		resp, gerr = ai.Generate(callCtx, &provider.GenerateRequest{
			TenantID: tenant.ID,
			Intent:   intentLabel,
			Message:  text,
			History:  sess.Memory,
			Context:  data,
		})
		return gerr
	})
	if err != nil {
		return m.degrade(tenant, sess, decision, "ai", err)
	}

	m.completePursuit(sess)
	return resp.Text
}

// degrade applies the tenant's failure policy after a provider gave up:
// either escalate the conversation or answer with the unavailable notice.
func (m *Manager) degrade(tenant *models.Tenant, sess *models.ConversationSession, decision *models.FlowDecision, capability string, err error) string {
	metrics.ProviderFailures.WithLabelValues(capability, string(domainerrors.CodeOf(err))).Inc()
	m.logger.Error("provider failed past retry budget", map[string]interface{}{
		"tenantId":   tenant.ID,
		"capability": capability,
		"error":      err.Error(),
	})

	if tenant.Escalation.OnProviderTimeout == models.TimeoutEscalate {
		fallback := escalate(sess, tenant)
		decision.Next = fallback.Next
		decision.Notify = fallback.Notify
		metrics.Escalations.WithLabelValues(tenant.ID, "provider_failure").Inc()
		return fallback.Reply
	}

	m.completePursuit(sess)
	return tenant.TemplateOr(models.TemplateUnavailable, defaultUnavailable)
}

func (m *Manager) completePursuit(sess *models.ConversationSession) {
	sess.ResetPursuit()
	sess.State = models.StateIdle
}

// withRetry runs fn under the tenant's retry policy, each attempt with its
// own timeout. Non-retryable errors stop immediately.
func (m *Manager) withRetry(ctx context.Context, tenant *models.Tenant, timeout time.Duration, fn func(ctx context.Context) error) error {
	maxRetries := tenant.Retry.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 2
	}
	backoffBase := time.Duration(tenant.Retry.BackoffBase) * time.Millisecond
	if backoffBase <= 0 {
		backoffBase = 100 * time.Millisecond
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := backoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return lastErr
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, timeout)
		lastErr = fn(callCtx)
		cancel()

		if lastErr == nil {
			return nil
		}
		if !domainerrors.IsRetryable(lastErr) {
			return lastErr
		}
		if ctx.Err() != nil {
			return lastErr
		}
	}
	return lastErr
}

func (m *Manager) deliver(ctx context.Context, tenant *models.Tenant, msg *models.OutboundMessage) error {
	messenger, err := m.registry.ResolveMessaging(tenant.Bindings)
	if err != nil {
		return err
	}
	return m.withRetry(ctx, tenant, m.options.MessagingTimeout, func(callCtx context.Context) error {
		return messenger.Send(callCtx, msg)
	})
}

func (m *Manager) notifyEscalation(ctx context.Context, tenant *models.Tenant, sess *models.ConversationSession) {
	metrics.Escalations.WithLabelValues(tenant.ID, "intent").Inc()
	if m.notifier == nil {
		return
	}
	if err := m.notifier.NotifyEscalation(ctx, tenant, sess, "conversation escalated"); err != nil {
		// Notification is best effort: the user already got the handoff
		// reply, the agent just has to find the conversation another way.
		m.logger.Warn("escalation notification failed", map[string]interface{}{
			"tenantId":   tenant.ID,
			"sessionKey": sess.Key(),
			"error":      err.Error(),
		})
	}
}

func (m *Manager) sessionTTL(tenant *models.Tenant) time.Duration {
	if tenant.Session.InactivityWindow > 0 {
		return time.Duration(tenant.Session.InactivityWindow) * time.Second
	}
	return m.options.SessionTTL
}

func (m *Manager) memoryWindow(tenant *models.Tenant) int {
	if tenant.Session.MemoryWindow > 0 {
		return tenant.Session.MemoryWindow
	}
	return m.options.MemoryWindow
}

// formatResult renders structured fulfillment data as plain chat text for
// tenants that skip the AI rewrite step.
func formatResult(data interface{}) string {
	switch v := data.(type) {
	case []map[string]interface{}:
		var b strings.Builder
		b.WriteString("Esto es lo que encontré:")
		for _, item := range v {
			b.WriteString("\n- " + formatEntry(item))
		}
		return b.String()
	case map[string]interface{}:
		return "Esto es lo que encontré: " + formatEntry(v)
	default:
		raw, err := json.Marshal(data)
		if err != nil {
			return defaultNotFound
		}
		return "Esto es lo que encontré: " + string(raw)
	}
}

func formatEntry(item map[string]interface{}) string {
	if name, ok := item["name"].(string); ok {
		parts := []string{name}
		if desc, ok := item["description"].(string); ok && desc != "" {
			parts = append(parts, desc)
		}
		if price, ok := item["price"].(float64); ok {
			parts = append(parts, fmt.Sprintf("$%.2f", price))
		}
		return strings.Join(parts, " - ")
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return ""
	}
	return string(raw)
}
