package sns

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/tablemend/tablemend-api/internal/config"
)

// Note is one push notification: human-readable title/body, flattened data
// payload, and platform delivery hints.
type Note struct {
	Title          string
	Body           string
	Data           map[string]string
	BadgeIncrement bool
	HighPriority   bool
}

// SendResult is the outcome for a single token within a multicast.
type SendResult struct {
	Token string
	Err   error
}

// MulticastResult aggregates per-token outcomes of one multicast send.
type MulticastResult struct {
	SuccessCount int
	FailureCount int
	Results      []SendResult
}

// PushSender delivers notes to device push tokens (SNS platform-endpoint
// ARNs) and registers raw platform tokens as endpoints. SendMulticast
// returns an error only when the send as a whole could not be attempted;
// per-token failures land in the result instead.
type PushSender interface {
	SendMulticast(ctx context.Context, tokens []string, note Note) (*MulticastResult, error)
	Send(ctx context.Context, token string, note Note) error
	CreateEndpoint(ctx context.Context, token string) (string, error)
}

type sender struct {
	client         *sns.Client
	platformAppARN string
}

func NewSender(cfg *config.Config) (PushSender, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.SNSRegion),
	)
	if err != nil {
		return nil, err
	}
	return &sender{
		client:         sns.NewFromConfig(awsCfg),
		platformAppARN: cfg.SNSPlatformAppARN,
	}, nil
}

// CreateEndpoint registers a raw APNS/FCM device token under the platform
// application and returns the endpoint ARN deliveries target.
func (s *sender) CreateEndpoint(ctx context.Context, token string) (string, error) {
	if s.platformAppARN == "" {
		return "", fmt.Errorf("no SNS platform application configured")
	}
	out, err := s.client.CreatePlatformEndpoint(ctx, &sns.CreatePlatformEndpointInput{
		PlatformApplicationArn: aws.String(s.platformAppARN),
		Token:                  aws.String(token),
	})
	if err != nil {
		return "", fmt.Errorf("create platform endpoint: %w", err)
	}
	return aws.ToString(out.EndpointArn), nil
}

// SendMulticast fans one payload out to every endpoint. The payload is built
// once; if that fails nothing has been sent and the caller may fall back.
// Individual endpoint failures are recorded per token, never returned as the
// call's error.
func (s *sender) SendMulticast(ctx context.Context, tokens []string, note Note) (*MulticastResult, error) {
	payload, err := buildPayload(note)
	if err != nil {
		return nil, fmt.Errorf("build push payload: %w", err)
	}

	res := &MulticastResult{Results: make([]SendResult, len(tokens))}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			err := s.publish(ctx, token, payload, note)
			mu.Lock()
			defer mu.Unlock()
			res.Results[i] = SendResult{Token: token, Err: err}
			if err != nil {
				res.FailureCount++
			} else {
				res.SuccessCount++
			}
		}(i, token)
	}
	wg.Wait()
	return res, nil
}

// Send delivers to a single endpoint. Used by the dispatcher's fallback loop.
func (s *sender) Send(ctx context.Context, token string, note Note) error {
	payload, err := buildPayload(note)
	if err != nil {
		return fmt.Errorf("build push payload: %w", err)
	}
	return s.publish(ctx, token, payload, note)
}

func (s *sender) publish(ctx context.Context, endpointARN, payload string, note Note) error {
	structure := "json"
	input := &sns.PublishInput{
		TargetArn:        &endpointARN,
		Message:          &payload,
		MessageStructure: &structure,
	}
	if note.HighPriority {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.MOBILE.APNS.PRIORITY": {
				DataType:    aws.String("String"),
				StringValue: aws.String("10"),
			},
		}
	}
	_, err := s.client.Publish(ctx, input)
	return err
}

// buildPayload renders the platform-specific message structure: an alert
// with title/body, the data payload flattened to string fields, and a badge
// increment directive for iOS.
func buildPayload(note Note) (string, error) {
	aps := map[string]interface{}{
		"alert": map[string]string{"title": note.Title, "body": note.Body},
		"sound": "default",
	}
	if note.BadgeIncrement {
		aps["mutable-content"] = 1
		aps["badge-increment"] = 1
	}
	apns := map[string]interface{}{"aps": aps}
	for k, v := range note.Data {
		apns[k] = v
	}
	apnsJSON, err := json.Marshal(apns)
	if err != nil {
		return "", err
	}

	fcmData := map[string]string{"title": note.Title, "body": note.Body}
	for k, v := range note.Data {
		fcmData[k] = v
	}
	fcmJSON, err := json.Marshal(map[string]interface{}{
		"notification": map[string]string{"title": note.Title, "body": note.Body},
		"data":         fcmData,
	})
	if err != nil {
		return "", err
	}

	wrapper := map[string]string{
		"default":      note.Body,
		"APNS":         string(apnsJSON),
		"APNS_SANDBOX": string(apnsJSON),
		"GCM":          string(fcmJSON),
	}
	out, err := json.Marshal(wrapper)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
