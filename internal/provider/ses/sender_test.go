package ses

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
)

type fakeAPI struct {
	inputs []*sesv2.SendEmailInput
	err    error
}

func (f *fakeAPI) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("ses-1")}, nil
}

func TestSend(t *testing.T) {
	api := &fakeAPI{}
	s := NewSenderWithAPI(api, "mailengine")

	res, err := s.Send(context.Background(), delivery.Message{
		From:    delivery.DefaultFrom,
		To:      "jan@example.nl",
		Subject: "Welkom",
		HTML:    "<p>Hallo</p>",
		Text:    "Hallo",
		ReplyTo: "contact@rijksuitgaven.nl",
		Headers: map[string]string{
			"List-Unsubscribe-Post": "List-Unsubscribe=One-Click",
			"List-Unsubscribe":      "<https://x/unsubscribe?token=t>",
		},
		Tags: map[string]string{"campaign_id": "c1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ses-1", res.MessageID)

	require.Len(t, api.inputs, 1)
	in := api.inputs[0]
	assert.Equal(t, delivery.DefaultFrom, aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"jan@example.nl"}, in.Destination.ToAddresses)
	assert.Equal(t, []string{"contact@rijksuitgaven.nl"}, in.ReplyToAddresses)
	assert.Equal(t, "mailengine", aws.ToString(in.ConfigurationSetName))

	simple := in.Content.Simple
	assert.Equal(t, "Welkom", aws.ToString(simple.Subject.Data))
	assert.Equal(t, "<p>Hallo</p>", aws.ToString(simple.Body.Html.Data))
	assert.Equal(t, "Hallo", aws.ToString(simple.Body.Text.Data))

	require.Len(t, simple.Headers, 2)
	assert.Equal(t, "List-Unsubscribe", aws.ToString(simple.Headers[0].Name))
	assert.Equal(t, "List-Unsubscribe-Post", aws.ToString(simple.Headers[1].Name))

	require.Len(t, in.EmailTags, 1)
	assert.Equal(t, "campaign_id", aws.ToString(in.EmailTags[0].Name))
	assert.Equal(t, "c1", aws.ToString(in.EmailTags[0].Value))
}

func TestSend_OmitsEmptyOptionalFields(t *testing.T) {
	api := &fakeAPI{}
	_, err := NewSenderWithAPI(api, "").Send(context.Background(), delivery.Message{To: "a@example.nl", HTML: "x"})
	require.NoError(t, err)

	in := api.inputs[0]
	assert.Nil(t, in.Content.Simple.Body.Text)
	assert.Nil(t, in.ConfigurationSetName)
	assert.Empty(t, in.ReplyToAddresses)
	assert.Empty(t, in.EmailTags)
}

func TestSend_Error(t *testing.T) {
	api := &fakeAPI{err: errors.New("throttled")}
	_, err := NewSenderWithAPI(api, "").Send(context.Background(), delivery.Message{To: "a@example.nl"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestSend_NotConfigured(t *testing.T) {
	var s *Sender
	_, err := s.Send(context.Background(), delivery.Message{})
	assert.ErrorIs(t, err, delivery.ErrNotConfigured)
}
