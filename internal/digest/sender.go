package digest

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/funnellens/funnellens/internal/config"
	"github.com/funnellens/funnellens/internal/pkg/logger"
)

// ErrNoRecipient is returned for messages without a destination address.
var ErrNoRecipient = errors.New("digest has no recipient")

// Sender delivers rendered digests and returns the provider message ID.
type Sender interface {
	Send(ctx context.Context, msg *Message) (string, error)
}

type sendEmailAPI interface {
	SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends digests with the SES v2 API.
type SESSender struct {
	client sendEmailAPI
	from   string
}

// NewSESSender builds an SES client. Static keys are used when configured,
// otherwise the default credential chain.
func NewSESSender(ctx context.Context, cfg config.DigestConfig) (*SESSender, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(awsCfg), from: cfg.FromEmail}, nil
}

func (s *SESSender) Send(ctx context.Context, msg *Message) (string, error) {
	if msg.To == "" {
		return "", ErrNoRecipient
	}
	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(msg.Subject), Charset: aws.String("UTF-8")},
				Body: &types.Body{
					Text: &types.Content{Data: aws.String(msg.Text), Charset: aws.String("UTF-8")},
					Html: &types.Content{Data: aws.String(msg.HTML), Charset: aws.String("UTF-8")},
				},
			},
		},
		EmailTags: []types.MessageTag{
			{Name: aws.String("kind"), Value: aws.String("recommendation_digest")},
		},
	})
	if err != nil {
		return "", fmt.Errorf("send digest: %w", err)
	}
	id := aws.ToString(out.MessageId)
	logger.Info("digest sent", "email", msg.To, "message_id", id)
	return id, nil
}
