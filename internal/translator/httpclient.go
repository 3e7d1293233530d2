package translator

import (
	"context"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	defaultDotenv    = ".env"
)

func newRESTClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetLogger(zap.L().Sugar())
}

// withTimeout narrows ctx when the caller configured a per-provider timeout.
func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// checkResponse maps a finished resty call onto the transport/rejected kinds.
func checkResponse(service string, resp *resty.Response, err error) error {
	if err != nil {
		return TransportFailure(service, err)
	}
	if !resp.IsSuccess() {
		return Rejected(service, resp.StatusCode(), resp.String())
	}
	return nil
}

// lookupCredential returns the configured value, falling back to the process
// environment and then to the dotenv file.
func lookupCredential(configured, envKey, dotenvPath string) string {
	if configured != "" {
		return configured
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if dotenvPath == "" {
		return ""
	}
	values, err := godotenv.Read(dotenvPath)
	if err != nil {
		return ""
	}
	return values[envKey]
}

func fail(result *Result, err error) (*Result, error) {
	result.Text = ""
	result.Error = err.Error()
	return result, err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
