// internal/provider/messaging/sns_test.go
package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"

	domainerrors "convocore/internal/common/errors"
	"convocore/internal/models"
)

type stubPublisher struct {
	input *sns.PublishInput
	err   error
}

func (s *stubPublisher) Publish(ctx context.Context, params *sns.PublishInput) (*sns.PublishOutput, error) {
	s.input = params
	if s.err != nil {
		return nil, s.err
	}
	return &sns.PublishOutput{}, nil
}

func TestSNSSend(t *testing.T) {
	stub := &stubPublisher{}
	p := NewSNSProviderWithClient(stub)

	err := p.Send(context.Background(), &models.OutboundMessage{
		TenantID:      "pizzashop",
		ChannelUserID: "+15550001111",
		Text:          "Su reserva quedo confirmada",
	})

	assert.NoError(t, err)
	assert.Equal(t, "+15550001111", *stub.input.PhoneNumber)
	assert.Equal(t, "Su reserva quedo confirmada", *stub.input.Message)
}

func TestSNSSendFailure(t *testing.T) {
	stub := &stubPublisher{err: errors.New("throttled")}
	p := NewSNSProviderWithClient(stub)

	err := p.Send(context.Background(), &models.OutboundMessage{ChannelUserID: "+15550001111", Text: "hola"})

	assert.Error(t, err)
	assert.Equal(t, domainerrors.ErrCodeDeliveryFailed, domainerrors.CodeOf(err))
}
