//go:build !linux

package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/bluetuith-org/gatt-exchange/api/config"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
)

func TestNewRejectsBluez(t *testing.T) {
	cfg := config.New()
	cfg.Backend = config.BackendBluez

	transport, _, err := New(context.Background(), cfg, nil)
	if !errors.Is(err, errorkinds.ErrNotSupported) {
		t.Errorf("New() error = %v, want ErrNotSupported", err)
	}
	if transport != nil {
		t.Errorf("New() returned a transport for an unsupported backend")
	}
}
