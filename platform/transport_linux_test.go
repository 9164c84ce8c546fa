//go:build linux

package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/bluetuith-org/gatt-exchange/api/config"
	"github.com/bluetuith-org/gatt-exchange/api/errorkinds"
)

func TestNewRejectsTinygo(t *testing.T) {
	cfg := config.New()
	cfg.Backend = config.BackendTinygo

	transport, info, err := New(context.Background(), cfg, nil)
	if !errors.Is(err, errorkinds.ErrNotSupported) {
		t.Errorf("New() error = %v, want ErrNotSupported", err)
	}
	if transport != nil || info != (PlatformInfo{}) {
		t.Errorf("New() = %v, %+v for an unsupported backend", transport, info)
	}
}
