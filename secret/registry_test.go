package secret

import (
	"errors"
	"reflect"
	"testing"
)

func TestRegistry_RegisterAndCreate(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Register("stub", func(cfg map[string]any) (Provider, error) {
		return &stubProvider{name: "stub"}, nil
	}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	p, err := reg.Create("stub", map[string]any{"k": "v"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if p == nil || p.Name() != "stub" {
		t.Fatalf("unexpected provider: %#v", p)
	}
}

func TestRegistry_RegisterInvalid(t *testing.T) {
	reg := NewRegistry()
	factory := func(cfg map[string]any) (Provider, error) { return &stubProvider{name: "stub"}, nil }

	_ = reg.Register("stub", factory)
	if err := reg.Register("stub", factory); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if err := reg.Register("  ", factory); err == nil {
		t.Fatalf("expected error for blank name")
	}
	if err := reg.Register("other", nil); err == nil {
		t.Fatalf("expected error for nil factory")
	}
}

func TestRegistry_CreateUnknown(t *testing.T) {
	reg := NewRegistry()
	if _, err := reg.Create("missing", nil); !errors.Is(err, ErrProviderNotRegistered) {
		t.Fatalf("expected ErrProviderNotRegistered, got %v", err)
	}
}

func TestDefaultRegistry_Builtins(t *testing.T) {
	if got, want := DefaultRegistry.List(), []string{"env", "file"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("List() = %v, want %v", got, want)
	}

	p, err := DefaultRegistry.Create("file", map[string]any{"dir": "/run/secrets"})
	if err != nil {
		t.Fatalf("Create(file) error = %v", err)
	}
	if p.Name() != "file" {
		t.Fatalf("Name() = %q, want file", p.Name())
	}
}
