package stargate

import (
	"strings"
	"testing"
	"time"
)

func TestParseConfig(t *testing.T) {
	const doc = `
role = "responder"
chevrons = 7
lock_order = [1, 2, 3, 4, 5, 6, 0]
poll_interval = "10ms"
seed = 42

[trigger]
chip = "gpiochip0"
line = 17
active_low = true
debounce = "80ms"

[link]
device = "/dev/ttyS0"
baud = 38400
reconnect_interval = "5s"

[lights.ws281x]
pin = 18
pixels_per_chevron = 3
brightness = 200

[animation]
wormhole_timeout = "45s"
`

	cfg, err := ParseConfig(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.Role != RoleResponder {
		t.Errorf("Role = %q, want responder", cfg.Role)
	}
	if cfg.Chevrons != 7 {
		t.Errorf("Chevrons = %d, want 7", cfg.Chevrons)
	}
	if len(cfg.LockOrder) != 7 || cfg.LockOrder[6] != 0 {
		t.Errorf("LockOrder = %v", cfg.LockOrder)
	}
	if got := time.Duration(cfg.PollInterval); got != 10*time.Millisecond {
		t.Errorf("PollInterval = %v, want 10ms", got)
	}
	if !cfg.Trigger.ActiveLow {
		t.Error("Trigger.ActiveLow = false, want true")
	}
	if got := time.Duration(cfg.Trigger.Debounce); got != 80*time.Millisecond {
		t.Errorf("Trigger.Debounce = %v, want 80ms", got)
	}
	if got := time.Duration(cfg.Link.ReconnectInterval); got != 5*time.Second {
		t.Errorf("Link.ReconnectInterval = %v, want 5s", got)
	}
	if cfg.Lights.WS281x == nil || cfg.Lights.WS281x.Pin != 18 {
		t.Errorf("Lights.WS281x = %+v", cfg.Lights.WS281x)
	}
	if cfg.Lights.Serial != nil {
		t.Errorf("Lights.Serial = %+v, want nil", cfg.Lights.Serial)
	}
	if got := time.Duration(cfg.Animation.WormholeTimeout); got != 45*time.Second {
		t.Errorf("Animation.WormholeTimeout = %v, want 45s", got)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}

	if cfg.Role != RoleStandalone {
		t.Errorf("Role = %q, want standalone", cfg.Role)
	}
	if cfg.Chevrons != 9 {
		t.Errorf("Chevrons = %d, want 9", cfg.Chevrons)
	}
	if got := time.Duration(cfg.PollInterval); got != 5*time.Millisecond {
		t.Errorf("PollInterval = %v, want 5ms", got)
	}
	if got := time.Duration(cfg.Trigger.Debounce); got != 50*time.Millisecond {
		t.Errorf("Trigger.Debounce = %v, want 50ms", got)
	}
	if got := time.Duration(cfg.Link.ReconnectInterval); got != 8*time.Second {
		t.Errorf("Link.ReconnectInterval = %v, want 8s", got)
	}
	if cfg.Link.Baud != 9600 {
		t.Errorf("Link.Baud = %d, want 9600", cfg.Link.Baud)
	}
}

func TestParseConfigBadRole(t *testing.T) {
	cfg, err := ParseConfig(strings.NewReader(`role = "primary"`))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Role != RoleStandalone {
		t.Errorf("Role = %q, want standalone fallback", cfg.Role)
	}
}
