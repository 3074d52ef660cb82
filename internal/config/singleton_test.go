package config

import "testing"

func TestSetAndGetConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	SetConfig(cfg)

	got := GetConfig()
	if got != cfg {
		t.Fatalf("expected GetConfig to return the value set by SetConfig")
	}
}

func TestMustGetConfigPanicsWhenUnset(t *testing.T) {
	SetConfig(nil)
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustGetConfig to panic when unset")
		}
	}()
	MustGetConfig()
}
