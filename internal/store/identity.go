package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/appshell/internal/schema"
)

// DeviceIdentity returns the device token kept in the identity table, or ""
// when this installation has not been registered yet.
func (s *Store) DeviceIdentity(ctx context.Context) (string, error) {
	rec, err := s.Get(ctx, schema.IdentityTable, schema.DeviceKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("device identity: %w", err)
	}
	device, _ := rec["value"].(string)
	return device, nil
}

// SetDeviceIdentity stores the device token in the identity table.
func (s *Store) SetDeviceIdentity(ctx context.Context, device string) error {
	t, _ := s.schema.Table(schema.IdentityTable)
	_, err := s.Put(ctx, schema.IdentityTable, Record{
		t.KeyField: schema.DeviceKey,
		"value":    device,
	})
	if err != nil {
		return fmt.Errorf("set device identity: %w", err)
	}
	return nil
}
