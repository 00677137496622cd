//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/oshokin/alert-relay/internal/version"
)

// DetectHostname returns the machine name the relay runs on.
func DetectHostname() (string, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}

	return hostname, nil
}

// Identity returns the first line of every combined message.
func Identity(hostname string) string {
	return version.Name + " on " + hostname
}

// CallContext returns a child context bounded by timeout,
// or a cancel-only child when timeout is not positive.
func CallContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, timeout)
}
