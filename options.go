package devnet

import (
	"go.uber.org/zap"

	"github.com/branched-services/go-devnet/felt"
)

// Option configures a Devnet.
type Option func(*Devnet)

// WithLogger sets the structured logger. The default is a no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(d *Devnet) {
		if log != nil {
			d.log = log
		}
	}
}

// CallOption configures one call, invoke or estimate.
type CallOption func(*callConfig)

// callConfig holds per-call configuration.
type callConfig struct {
	caller    *felt.Felt
	maxFee    *felt.Felt
	signature []*felt.Felt
}

// newCallConfig applies opts over the defaults: external origin (zero
// caller), zero max fee, no signature.
func newCallConfig(opts []CallOption) *callConfig {
	cfg := &callConfig{
		caller: felt.Zero(),
		maxFee: felt.Zero(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithCaller sets the calling address. The default zero caller marks an
// external origin.
func WithCaller(caller *felt.Felt) CallOption {
	return func(c *callConfig) {
		if caller != nil {
			c.caller = caller.Clone()
		}
	}
}

// WithMaxFee declares the fee bound an invoke is willing to pay. The
// default is zero, which accepts only a zero actual fee; it never
// disables fee checks.
func WithMaxFee(maxFee *felt.Felt) CallOption {
	return func(c *callConfig) {
		if maxFee != nil {
			c.maxFee = maxFee.Clone()
		}
	}
}

// WithSignature attaches a transaction signature. Signatures are
// recorded, not verified.
func WithSignature(sig ...*felt.Felt) CallOption {
	return func(c *callConfig) {
		c.signature = felt.CloneSlice(sig)
	}
}
