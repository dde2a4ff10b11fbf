// internal/notify/ses.go
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	commonaws "convocore/internal/common/aws"
	domainerrors "convocore/internal/common/errors"
	"convocore/internal/common/logger"
	"convocore/internal/models"
)

// SESService is the slice of the SES API the notifier uses.
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SESNotifier emails the tenant's agent when a conversation escalates. The
// email carries the client identity and the recent exchange so the agent can
// pick up mid-conversation.
type SESNotifier struct {
	client    SESService
	fromEmail string
	logger    logger.Logger
}

func NewSESNotifier(ctx context.Context, region, fromEmail string, log logger.Logger) (*SESNotifier, error) {
	client, err := commonaws.NewSESClient(ctx, region)
	if err != nil {
		return nil, fmt.Errorf("init SES client: %w", err)
	}
	return &SESNotifier{
		client:    client,
		fromEmail: fromEmail,
		logger:    log.WithFields(map[string]interface{}{"component": "escalation-notifier"}),
	}, nil
}

// NewSESNotifierWithClient wires an existing client, mainly for tests.
func NewSESNotifierWithClient(client SESService, fromEmail string, log logger.Logger) *SESNotifier {
	return &SESNotifier{client: client, fromEmail: fromEmail, logger: log}
}

func (n *SESNotifier) NotifyEscalation(ctx context.Context, tenant *models.Tenant, sess *models.ConversationSession, reason string) error {
	if tenant.Escalation.AgentEmail == "" {
		n.logger.Warn("escalation without agent email configured", map[string]interface{}{
			"tenantId": tenant.ID,
		})
		return nil
	}

	subject := fmt.Sprintf("[%s] Conversación escalada: %s", tenant.Name, sess.ChannelUserID)
	body := buildEscalationBody(tenant, sess, reason)

	_, err := n.client.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{tenant.Escalation.AgentEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(n.fromEmail),
	})
	if err != nil {
		return domainerrors.NewDeliveryFailedError("ses", err)
	}

	n.logger.Info("escalation notification sent", map[string]interface{}{
		"tenantId":   tenant.ID,
		"agentEmail": tenant.Escalation.AgentEmail,
	})
	return nil
}

func buildEscalationBody(tenant *models.Tenant, sess *models.ConversationSession, reason string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Negocio: %s\n", tenant.Name)
	fmt.Fprintf(&b, "Cliente: %s\n", sess.ChannelUserID)
	fmt.Fprintf(&b, "Motivo: %s\n", reason)
	fmt.Fprintf(&b, "Sesión: %s\n\n", sess.ID)

	if len(sess.Memory) > 0 {
		b.WriteString("Últimos mensajes:\n")
		for _, turn := range sess.Memory {
			who := "Cliente"
			if turn.Role == models.RoleAssistant {
				who = "Bot"
			}
			fmt.Fprintf(&b, "[%s] %s: %s\n", turn.Timestamp.Format("15:04"), who, turn.Text)
		}
	}

	b.WriteString("\nResponde al cliente por el canal habitual y cierra la conversación con /cerrar cuando termines.")
	return b.String()
}
