package devnet

import (
	"testing"

	"go.uber.org/zap"

	"github.com/branched-services/go-devnet/felt"
)

func TestCallConfigDefaults(t *testing.T) {
	cfg := newCallConfig(nil)
	if !cfg.caller.IsZero() {
		t.Errorf("Expected the zero caller by default, got %s", cfg.caller.Hex())
	}
	if !cfg.maxFee.IsZero() {
		t.Errorf("Expected a zero max fee by default, got %s", cfg.maxFee.Dec())
	}
	if cfg.signature != nil {
		t.Error("Expected no signature by default")
	}
}

func TestCallOptions(t *testing.T) {
	t.Run("WithCaller", func(t *testing.T) {
		cfg := newCallConfig([]CallOption{WithCaller(felt.New(7))})
		if !cfg.caller.Eq(felt.New(7)) {
			t.Errorf("Expected caller 7, got %s", cfg.caller.Dec())
		}
	})

	t.Run("WithCaller ignores nil", func(t *testing.T) {
		cfg := newCallConfig([]CallOption{WithCaller(nil)})
		if cfg.caller == nil || !cfg.caller.IsZero() {
			t.Error("Expected the default caller to survive a nil option")
		}
	})

	t.Run("WithMaxFee clones", func(t *testing.T) {
		fee := felt.New(100)
		cfg := newCallConfig([]CallOption{WithMaxFee(fee)})
		fee.SetUint64(999)
		if !cfg.maxFee.Eq(felt.New(100)) {
			t.Errorf("Expected the config to keep its own copy, got %s", cfg.maxFee.Dec())
		}
	})

	t.Run("WithSignature clones", func(t *testing.T) {
		sig := felt.New(1)
		cfg := newCallConfig([]CallOption{WithSignature(sig, felt.New(2))})
		sig.SetUint64(5)
		if len(cfg.signature) != 2 || !cfg.signature[0].Eq(felt.New(1)) {
			t.Errorf("Expected an independent [1, 2] signature, got %v", felt.HexSlice(cfg.signature))
		}
	})

	t.Run("options compose", func(t *testing.T) {
		cfg := newCallConfig([]CallOption{
			WithCaller(felt.New(1)),
			WithMaxFee(felt.New(2)),
			WithSignature(felt.New(3)),
		})
		if !cfg.caller.Eq(felt.New(1)) || !cfg.maxFee.Eq(felt.New(2)) || len(cfg.signature) != 1 {
			t.Error("Expected all three options applied")
		}
	})
}

func TestWithLogger(t *testing.T) {
	log := zap.NewExample()
	d := New(newStubExecutor(), WithLogger(log))
	if d.log != log {
		t.Error("Expected the supplied logger")
	}

	d = New(newStubExecutor(), WithLogger(nil))
	if d.log == nil {
		t.Error("Expected a nil logger to leave the no-op default")
	}
}
