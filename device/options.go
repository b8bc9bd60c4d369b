package device

import (
	"time"

	"github.com/rs/zerolog"
)

// Config holds the session tuning knobs.
type Config struct {
	// SynAckTimeout bounds the wait for the vendor syn-ack before the
	// broadcast fallback fires.
	SynAckTimeout time.Duration

	// InquiryTimeout bounds the wait for an identity reply.
	InquiryTimeout time.Duration

	// ConnectTimeout is the absolute ceiling on a whole Connect call,
	// measured from call start.
	ConnectTimeout time.Duration

	// PageTimeout bounds the wait for each transfer page or ack,
	// measured from the last frame received.
	PageTimeout time.Duration

	// SlotReportTimeout bounds the wait for an active-slot report on the
	// channel-message pair.
	SlotReportTimeout time.Duration

	// WriteRetries is how many times one page is resent after a missing
	// or failed ack before the transfer gives up.
	WriteRetries int

	// Logger receives protocol-level events (optional)
	Logger zerolog.Logger
}

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		SynAckTimeout:     500 * time.Millisecond,
		InquiryTimeout:    time.Second,
		ConnectTimeout:    5 * time.Second,
		PageTimeout:       time.Second,
		SlotReportTimeout: time.Second,
		WriteRetries:      2,
		Logger:            zerolog.Nop(),
	}
}

// Option is a functional option for configuring a Device.
type Option func(*Config)

// WithLogger sets the logger for session events.
//
// Example:
//
//	dev := device.New(port, daw, device.WithLogger(log.Logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSynAckTimeout sets how long Connect waits for the vendor syn-ack
// before falling back to the broadcast inquiry.
func WithSynAckTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.SynAckTimeout = d
		}
	}
}

// WithInquiryTimeout sets how long Connect waits for an identity reply.
func WithInquiryTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.InquiryTimeout = d
		}
	}
}

// WithConnectTimeout sets the absolute ceiling on a whole Connect call.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.ConnectTimeout = d
		}
	}
}

// WithPageTimeout sets how long transfers wait for each page or ack.
func WithPageTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PageTimeout = d
		}
	}
}

// WithSlotReportTimeout sets how long ActiveSlot waits for the unit to
// report its slot.
func WithSlotReportTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.SlotReportTimeout = d
		}
	}
}

// WithWriteRetries sets the number of resend attempts per page.
//
// Example:
//
//	dev := device.New(port, daw, device.WithWriteRetries(0))
func WithWriteRetries(retries int) Option {
	return func(c *Config) {
		if retries >= 0 {
			c.WriteRetries = retries
		}
	}
}
