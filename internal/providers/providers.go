// Package providers defines the extraction provider interface and the error
// taxonomy shared by its implementations.
package providers

import (
	"context"
)

// Part is one base64-encoded image payload in an extraction request. Parts
// are sent in page order.
type Part struct {
	MIMEType string
	Data     string
}

// Config is the per-request provider configuration, snapshotted from the
// settings at the moment a batch is built.
type Config struct {
	APIKey      string
	Model       string
	Temperature float64
}

// Provider performs one extraction call over a batch of image parts and a
// prompt. Implementations never retry on their own; retry is an explicit
// user action.
type Provider interface {
	ExtractText(ctx context.Context, config Config, prompt string, parts []Part) (string, error)
}
