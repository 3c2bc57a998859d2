package snapshot

import (
	"context"
	"testing"

	"github.com/virt-do/kaps/config"
)

func TestMount_NoLayersReturnsError(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.RootDir = t.TempDir()
	o := New(cfg)

	_, err := o.Mount(context.Background(), 1, nil, t.TempDir(), false)
	if err == nil {
		t.Fatal("expected ErrNoLayers for an empty layer list")
	}
}

func TestOverlayOptions_ReversesLayerOrder(t *testing.T) {
	got := overlayOptions([]string{"base", "middle", "top"}, "/up", "/work")
	want := "lowerdir=top:middle:base,upperdir=/up,workdir=/work"
	if got != want {
		t.Fatalf("options = %q, want %q", got, want)
	}
}

func TestOverlayOptions_SingleLayer(t *testing.T) {
	got := overlayOptions([]string{"only"}, "/up", "/work")
	want := "lowerdir=only,upperdir=/up,workdir=/work"
	if got != want {
		t.Fatalf("options = %q, want %q", got, want)
	}
}
