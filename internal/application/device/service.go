package device

import (
	"context"
	"fmt"
	"time"

	"github.com/tablemend/tablemend-api/internal/domain"
	"github.com/tablemend/tablemend-api/internal/pkg/id"
)

type Service interface {
	// Register upserts the caller's device and its push token. Clients call
	// this on login and whenever the platform rotates the token.
	Register(ctx context.Context, req RegisterRequest) (*domain.Device, error)
	// Disable stops deliveries to the device without deleting its record.
	Disable(ctx context.Context, deviceID string) error
	// List returns the caller's enabled devices.
	List(ctx context.Context, userID string) ([]domain.Device, error)
}

type deviceStore interface {
	Put(ctx context.Context, d *domain.Device) error
	ListByUser(ctx context.Context, userID string) ([]domain.Device, error)
	SoftDelete(ctx context.Context, deviceID string) error
}

// endpointRegistrar exchanges a raw APNS/FCM token for the platform-endpoint
// ARN the dispatcher delivers to. Nil when no platform application is
// configured; tokens are then stored as given.
type endpointRegistrar interface {
	CreateEndpoint(ctx context.Context, token string) (string, error)
}

type service struct {
	devices   deviceStore
	endpoints endpointRegistrar
}

func NewService(devices deviceStore, endpoints endpointRegistrar) Service {
	return &service{devices: devices, endpoints: endpoints}
}

type RegisterRequest struct {
	DeviceID string // empty on first registration
	UserID   string
	Platform string
	Token    *string
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (*domain.Device, error) {
	switch req.Platform {
	case "ios", "android":
	default:
		return nil, fmt.Errorf("unknown platform %q: %w", req.Platform, domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	d := &domain.Device{
		DeviceID:  req.DeviceID,
		UserID:    req.UserID,
		Platform:  req.Platform,
		Token:     req.Token,
		Enable:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if d.DeviceID == "" {
		d.DeviceID = id.New()
	}
	if req.Token != nil && s.endpoints != nil {
		arn, err := s.endpoints.CreateEndpoint(ctx, *req.Token)
		if err != nil {
			return nil, fmt.Errorf("register push endpoint: %w", err)
		}
		d.Token = &arn
	}
	if err := s.devices.Put(ctx, d); err != nil {
		return nil, fmt.Errorf("persist device: %w", err)
	}
	return d, nil
}

func (s *service) Disable(ctx context.Context, deviceID string) error {
	return s.devices.SoftDelete(ctx, deviceID)
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Device, error) {
	return s.devices.ListByUser(ctx, userID)
}
