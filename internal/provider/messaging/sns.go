// internal/provider/messaging/sns.go
package messaging

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonaws "convocore/internal/common/aws"
	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
)

const snsProviderName = "sns"

// snsPublisher is the slice of the SNS API the provider uses.
type snsPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput) (*sns.PublishOutput, error)
}

// SNSProvider delivers replies over SMS via AWS SNS. Tenants whose channel
// users are plain phone numbers bind this gateway.
type SNSProvider struct {
	client snsPublisher
}

func NewSNSProvider(ctx context.Context, region string) (*SNSProvider, error) {
	client, err := commonaws.NewSNSClient(ctx, region)
	if err != nil {
		return nil, err
	}
	return &SNSProvider{client: client}, nil
}

// NewSNSProviderWithClient wires an existing client, mainly for tests.
func NewSNSProviderWithClient(client snsPublisher) *SNSProvider {
	return &SNSProvider{client: client}
}

func (p *SNSProvider) Send(ctx context.Context, msg *models.OutboundMessage) error {
	_, err := p.client.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(msg.ChannelUserID),
		Message:     aws.String(msg.Text),
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return domainerrors.NewProviderTimeoutError(snsProviderName)
		}
		return domainerrors.NewDeliveryFailedError(snsProviderName, err)
	}
	return nil
}
