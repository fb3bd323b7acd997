// Package ses sends mail through Amazon SES v2. It is the fallback provider
// when no Resend key is configured.
package ses

import (
	"context"
	"fmt"
	"sort"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
)

// API is the subset of the SES v2 client the sender uses.
type API interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, opts ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Config holds SES credentials. Empty keys fall back to the default AWS
// credential chain.
type Config struct {
	Region           string
	AccessKey        string
	SecretKey        string
	ConfigurationSet string
}

// Sender implements delivery.Sender on SES. SES has no bulk endpoint for
// individually rendered messages so the pipeline sends one at a time.
type Sender struct {
	api              API
	configurationSet string
}

// NewSender loads the AWS config and builds an SES client.
func NewSender(ctx context.Context, cfg Config) (*Sender, error) {
	if cfg.Region == "" {
		cfg.Region = "eu-west-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return NewSenderWithAPI(sesv2.NewFromConfig(awsCfg), cfg.ConfigurationSet), nil
}

// NewSenderWithAPI wraps an existing client.
func NewSenderWithAPI(api API, configurationSet string) *Sender {
	return &Sender{api: api, configurationSet: configurationSet}
}

// Send delivers one message.
func (s *Sender) Send(ctx context.Context, msg delivery.Message) (delivery.SendResult, error) {
	if s == nil || s.api == nil {
		return delivery.SendResult{}, delivery.ErrNotConfigured
	}

	out, err := s.api.SendEmail(ctx, buildInput(msg, s.configurationSet))
	if err != nil {
		return delivery.SendResult{}, fmt.Errorf("ses send: %w", err)
	}

	id := aws.ToString(out.MessageId)
	logger.Debug("ses: sent", "to", logger.RedactEmail(msg.To), "message_id", id)
	return delivery.SendResult{MessageID: id}, nil
}

func buildInput(msg delivery.Message, configurationSet string) *sesv2.SendEmailInput {
	simple := &types.Message{
		Subject: utf8(msg.Subject),
		Body:    &types.Body{Html: utf8(msg.HTML)},
	}
	if msg.Text != "" {
		simple.Body.Text = utf8(msg.Text)
	}
	for _, name := range sortedKeys(msg.Headers) {
		simple.Headers = append(simple.Headers, types.MessageHeader{
			Name:  aws.String(name),
			Value: aws.String(msg.Headers[name]),
		})
	}

	in := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(msg.From),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content:          &types.EmailContent{Simple: simple},
	}
	for _, name := range sortedKeys(msg.Tags) {
		in.EmailTags = append(in.EmailTags, types.MessageTag{
			Name:  aws.String(name),
			Value: aws.String(msg.Tags[name]),
		})
	}
	if msg.ReplyTo != "" {
		in.ReplyToAddresses = []string{msg.ReplyTo}
	}
	if configurationSet != "" {
		in.ConfigurationSetName = aws.String(configurationSet)
	}
	return in
}

func utf8(s string) *types.Content {
	return &types.Content{Data: aws.String(s), Charset: aws.String("UTF-8")}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
