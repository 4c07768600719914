package device

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/satriahrh/tutur/domain/entities"
	"github.com/satriahrh/tutur/domain/repositories"
)

var (
	ErrDeviceNotFound     = errors.New("device not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrDeviceExists       = errors.New("device with this serial number already exists")
)

// deviceNamespace scopes the deterministic ids derived from serial numbers
var deviceNamespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("tutur.device"))

// DefaultModel is recorded for devices seeded from configuration
const DefaultModel = "generic"

// MemoryDeviceRepository keeps registered devices and their secrets in memory
type MemoryDeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]*entities.Device // id -> device
	serials map[string]*entities.Device // serial_number -> device
	secrets map[string]string           // serial_number -> secret
}

var _ repositories.DeviceRepository = (*MemoryDeviceRepository)(nil)

// NewMemoryDeviceRepository creates an empty repository
func NewMemoryDeviceRepository() *MemoryDeviceRepository {
	return &MemoryDeviceRepository{
		devices: make(map[string]*entities.Device),
		serials: make(map[string]*entities.Device),
		secrets: make(map[string]string),
	}
}

// IDForSerial returns the stable device id of a serial number
func IDForSerial(serialNumber string) string {
	return uuid.NewSHA1(deviceNamespace, []byte(serialNumber)).String()
}

// Seed registers every serial:secret pair, in serial order
func Seed(ctx context.Context, repo repositories.DeviceRepository, credentials map[string]string, logger *zap.Logger) error {
	serials := make([]string, 0, len(credentials))
	for serial := range credentials {
		serials = append(serials, serial)
	}
	sort.Strings(serials)

	for _, serial := range serials {
		d := &entities.Device{SerialNumber: serial, Model: DefaultModel}
		if err := repo.Create(ctx, d, credentials[serial]); err != nil {
			return fmt.Errorf("failed to register device %s: %w", serial, err)
		}
		logger.Info("Device registered", zap.String("serialNumber", serial), zap.String("deviceID", d.ID))
	}
	return nil
}

// Create registers device with its secret. The id is derived from the serial number.
func (m *MemoryDeviceRepository) Create(ctx context.Context, device *entities.Device, secret string) error {
	if device == nil {
		return errors.New("device cannot be nil")
	}
	if err := device.Validate(); err != nil {
		return err
	}
	if secret == "" {
		return errors.New("secret cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.serials[device.SerialNumber]; exists {
		return ErrDeviceExists
	}

	device.ID = IDForSerial(device.SerialNumber)
	now := time.Now()
	device.CreatedAt = now
	device.UpdatedAt = now

	deviceCopy := *device
	m.devices[device.ID] = &deviceCopy
	m.serials[device.SerialNumber] = &deviceCopy
	m.secrets[device.SerialNumber] = secret
	return nil
}

// GetByID implements DeviceRepository
func (m *MemoryDeviceRepository) GetByID(ctx context.Context, id string) (*entities.Device, error) {
	if id == "" {
		return nil, errors.New("device ID cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.devices[id]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	deviceCopy := *device
	return &deviceCopy, nil
}

// GetBySerialNumber implements DeviceRepository
func (m *MemoryDeviceRepository) GetBySerialNumber(ctx context.Context, serialNumber string) (*entities.Device, error) {
	if serialNumber == "" {
		return nil, errors.New("serial number cannot be empty")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	device, exists := m.serials[serialNumber]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	deviceCopy := *device
	return &deviceCopy, nil
}

// ValidateDevice checks a serial number + secret pair
func (m *MemoryDeviceRepository) ValidateDevice(serialNumber, secret string) (*entities.Device, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	storedSecret, exists := m.secrets[serialNumber]
	if !exists {
		return nil, ErrDeviceNotFound
	}
	if subtle.ConstantTimeCompare([]byte(storedSecret), []byte(secret)) != 1 {
		return nil, ErrInvalidCredentials
	}

	deviceCopy := *m.serials[serialNumber]
	return &deviceCopy, nil
}
