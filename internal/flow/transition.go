// internal/flow/transition.go
package flow

import (
	"strings"

	"convocore/internal/catalog"
	"convocore/internal/models"
)

// CloseCommand ends a conversation from the channel side. Agents send it
// after finishing a handoff; users can send it to start over.
const CloseCommand = "/cerrar"

// Default reply texts, overridable per tenant via catalog templates.
const (
	defaultGreeting    = "¡Hola! ¿En qué puedo ayudarte?"
	defaultFallback    = "Disculpa, no entendí tu mensaje. ¿Puedes decirlo de otra forma?"
	defaultClarify     = "¿Te refieres a alguna de estas opciones?"
	defaultEscalated   = "Te comunico con una persona del equipo, en breve te atienden."
	defaultUnavailable = "Estamos teniendo problemas técnicos. Por favor intenta de nuevo en unos minutos."
	defaultClosed      = "La conversación ha sido cerrada. ¡Gracias por escribirnos!"
)

// Transition computes the next state and required side effects for one turn.
// It mutates only the in-memory session and performs no I/O, so the same
// session, snapshot, message and scoring always yield the same decision.
func Transition(sess *models.ConversationSession, snapshot *catalog.Snapshot, message string, scoring *models.ScoringResult) *models.FlowDecision {
	tenant := snapshot.Tenant

	if strings.TrimSpace(message) == CloseCommand {
		sess.ResetPursuit()
		sess.Escalated = false
		sess.State = models.StateClosed
		return &models.FlowDecision{
			Next:   models.StateClosed,
			Action: models.ActionReply,
			Reply:  tenant.TemplateOr(models.TemplateClosed, defaultClosed),
		}
	}

	// A closed conversation starts over on the next message.
	if sess.State == models.StateClosed {
		sess.ResetPursuit()
		sess.Escalated = false
		sess.State = models.StateIdle
	}

	// Escalation is sticky: once a human owns the conversation, automation
	// stays out of it until the close command.
	if sess.Escalated {
		return &models.FlowDecision{
			Next:   models.StateEscalated,
			Action: models.ActionReply,
			Silent: true,
		}
	}

	switch scoring.Decision {
	case models.DecisionResolved:
		return transitionResolved(sess, snapshot, message, scoring)
	case models.DecisionAmbiguous:
		// Mid-collection the message is read as a slot answer first; only a
		// resolved different intent overrides the pursuit, and clarification
		// is for messages that fit no pending slot.
		if answersPendingSlot(sess, snapshot, message) {
			return collectSlot(sess, snapshot, message)
		}
		return transitionAmbiguous(sess, tenant, scoring)
	default:
		return transitionNone(sess, snapshot, message)
	}
}

func transitionResolved(sess *models.ConversationSession, snapshot *catalog.Snapshot, message string, scoring *models.ScoringResult) *models.FlowDecision {
	tenant := snapshot.Tenant
	def := scoring.Top().Intent

	// Mid-collection, an answer that still scores for the active intent is a
	// slot answer, not a restart. A different intent is a topic switch.
	if sess.State == models.StateSlotCollection && def.ID == sess.ActiveIntentID {
		return collectSlot(sess, snapshot, message)
	}

	if def.Escalate {
		return escalate(sess, tenant)
	}

	// Re-resolving the pursued intent (after a clarification round) keeps the
	// answers already collected; only a different intent restarts the pursuit.
	if def.ID == sess.ActiveIntentID {
		sess.ClarifyCount = 0
	} else {
		sess.ResetPursuit()
	}
	sess.ActiveIntentID = def.ID
	sess.ActiveIntentVersion = def.Version
	prefillSlots(sess, def, message)

	if unmet := def.UnmetSlots(sess.Slots); len(unmet) > 0 {
		sess.State = models.StateSlotCollection
		sess.PendingSlot = unmet[0].Name
		return &models.FlowDecision{
			Next:   models.StateSlotCollection,
			Action: models.ActionReply,
			Reply:  unmet[0].Prompt,
			Intent: def,
		}
	}

	return fulfill(sess, tenant, def)
}

func transitionAmbiguous(sess *models.ConversationSession, tenant *models.Tenant, scoring *models.ScoringResult) *models.FlowDecision {
	limit := tenant.Scoring.ClarifyLimit
	if limit <= 0 {
		limit = 2
	}
	if sess.ClarifyCount >= limit {
		// Clarification is not converging; hand the conversation over.
		return escalate(sess, tenant)
	}

	sess.ClarifyCount++
	sess.State = models.StateIntentPending

	labels := make([]string, 0, len(scoring.Candidates))
	for _, c := range scoring.Candidates {
		labels = append(labels, c.Intent.Label)
	}

	reply := tenant.TemplateOr(models.TemplateClarify, defaultClarify)
	for _, label := range labels {
		reply += "\n- " + label
	}

	return &models.FlowDecision{
		Next:       models.StateIntentPending,
		Action:     models.ActionClarify,
		Reply:      reply,
		Candidates: labels,
	}
}

func transitionNone(sess *models.ConversationSession, snapshot *catalog.Snapshot, message string) *models.FlowDecision {
	tenant := snapshot.Tenant

	if sess.State == models.StateSlotCollection {
		return collectSlot(sess, snapshot, message)
	}

	// First contact gets a greeting instead of the fallback.
	reply := tenant.TemplateOr(models.TemplateFallback, defaultFallback)
	if sess.State == models.StateIdle && len(sess.Memory) == 0 {
		reply = tenant.TemplateOr(models.TemplateGreeting, defaultGreeting)
	}

	sess.State = models.StateIdle
	return &models.FlowDecision{
		Next:   models.StateIdle,
		Action: models.ActionReply,
		Reply:  reply,
	}
}

// prefillSlots extracts slot values already present in the intent-triggering
// message, so a user who says "quiero una pizza grande" is not asked for the
// size again. Only option and number slots are extracted; a free-text slot
// would swallow the whole message.
func prefillSlots(sess *models.ConversationSession, def *models.IntentDefinition, message string) {
	for _, slot := range def.RequiredSlots {
		if slot.Type != models.SlotOption && slot.Type != models.SlotNumber {
			continue
		}
		if _, filled := sess.Slots[slot.Name]; filled {
			continue
		}
		value, verr := ValidateSlot(slot, message)
		if verr != nil {
			continue
		}
		if sess.Slots == nil {
			sess.Slots = make(map[string]string)
		}
		sess.Slots[slot.Name] = value
	}
}

// answersPendingSlot reports whether the message is a valid answer for the
// slot currently being collected.
func answersPendingSlot(sess *models.ConversationSession, snapshot *catalog.Snapshot, message string) bool {
	if sess.State != models.StateSlotCollection {
		return false
	}
	def := findIntent(sess, snapshot)
	if def == nil {
		return false
	}
	slot, ok := def.SlotByName(sess.PendingSlot)
	if !ok {
		return false
	}
	_, verr := ValidateSlot(slot, message)
	return verr == nil
}

func collectSlot(sess *models.ConversationSession, snapshot *catalog.Snapshot, message string) *models.FlowDecision {
	tenant := snapshot.Tenant
	def := findIntent(sess, snapshot)
	if def == nil {
		// The active intent vanished from the catalog; start over.
		sess.ResetPursuit()
		sess.State = models.StateIdle
		return &models.FlowDecision{
			Next:   models.StateIdle,
			Action: models.ActionReply,
			Reply:  tenant.TemplateOr(models.TemplateFallback, defaultFallback),
		}
	}

	slot, ok := def.SlotByName(sess.PendingSlot)
	if !ok {
		sess.ResetPursuit()
		sess.State = models.StateIdle
		return &models.FlowDecision{
			Next:   models.StateIdle,
			Action: models.ActionReply,
			Reply:  tenant.TemplateOr(models.TemplateFallback, defaultFallback),
		}
	}

	value, verr := ValidateSlot(slot, message)
	if verr != nil {
		// Re-prompt with the original question so collection always moves
		// toward termination or an explicit topic switch.
		return &models.FlowDecision{
			Next:   models.StateSlotCollection,
			Action: models.ActionReply,
			Reply:  slot.Prompt,
			Intent: def,
		}
	}

	if sess.Slots == nil {
		sess.Slots = make(map[string]string)
	}
	sess.Slots[slot.Name] = value

	if unmet := def.UnmetSlots(sess.Slots); len(unmet) > 0 {
		sess.PendingSlot = unmet[0].Name
		return &models.FlowDecision{
			Next:   models.StateSlotCollection,
			Action: models.ActionReply,
			Reply:  unmet[0].Prompt,
			Intent: def,
		}
	}

	sess.PendingSlot = ""
	return fulfill(sess, tenant, def)
}

func fulfill(sess *models.ConversationSession, tenant *models.Tenant, def *models.IntentDefinition) *models.FlowDecision {
	switch {
	case def.Fulfillment.UseDataSource:
		sess.State = models.StateAwaitingProvider
		return &models.FlowDecision{
			Next:      models.StateAwaitingProvider,
			Action:    models.ActionRequestData,
			QueryType: def.Fulfillment.QueryType,
			Intent:    def,
		}
	case def.Fulfillment.UseAI:
		sess.State = models.StateAwaitingProvider
		return &models.FlowDecision{
			Next:   models.StateAwaitingProvider,
			Action: models.ActionInvokeAI,
			Intent: def,
		}
	default:
		reply := tenant.TemplateOr(def.Fulfillment.ReplyTemplate, "")
		if reply == "" {
			reply = tenant.TemplateOr(models.TemplateFallback, defaultFallback)
		}
		sess.ResetPursuit()
		sess.State = models.StateIdle
		return &models.FlowDecision{
			Next:   models.StateIdle,
			Action: models.ActionReply,
			Reply:  reply,
			Intent: def,
		}
	}
}

func escalate(sess *models.ConversationSession, tenant *models.Tenant) *models.FlowDecision {
	sess.ResetPursuit()
	sess.Escalated = true
	sess.State = models.StateEscalated
	return &models.FlowDecision{
		Next:   models.StateEscalated,
		Action: models.ActionEscalate,
		Reply:  tenant.TemplateOr(models.TemplateEscalated, defaultEscalated),
		Notify: tenant.Escalation.NotifyAgent,
	}
}

func findIntent(sess *models.ConversationSession, snapshot *catalog.Snapshot) *models.IntentDefinition {
	for _, def := range snapshot.Intents {
		if def.ID == sess.ActiveIntentID {
			return def
		}
	}
	return nil
}
