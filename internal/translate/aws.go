package translate

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/translate"
)

// AWSBackend calls Amazon Translate through a typed aws-sdk-go-v2 service
// client, with credentials resolved by the SDK's default chain.
type AWSBackend struct {
	client *translate.Client
}

// NewAWSBackend loads the default AWS config for region and constructs an
// Amazon Translate client.
func NewAWSBackend(ctx context.Context, region string) (*AWSBackend, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("translate/aws: load config: %w", err)
	}
	return &AWSBackend{client: translate.NewFromConfig(cfg)}, nil
}

func (b *AWSBackend) Name() string { return "aws" }

func (b *AWSBackend) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	out, err := b.client.TranslateText(ctx, &translate.TranslateTextInput{
		Text:               aws.String(text),
		SourceLanguageCode: aws.String(sourceLang),
		TargetLanguageCode: aws.String(targetLang),
	})
	if err != nil {
		return "", fmt.Errorf("translate/aws: TranslateText: %w", err)
	}
	return aws.ToString(out.TranslatedText), nil
}
