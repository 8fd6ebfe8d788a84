package crowdbuilding

import (
	"log"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

type retryLog struct{}

// retries show up as client errors; log them as warnings instead
func (retryLog) Error(msg string, keysAndValues ...interface{}) {
	log.Printf("[CB] WARN %s %v", msg, keysAndValues)
}

func (retryLog) Warn(msg string, keysAndValues ...interface{}) {
	log.Printf("[CB] WARN %s %v", msg, keysAndValues)
}

func (retryLog) Info(msg string, keysAndValues ...interface{})  {}
func (retryLog) Debug(msg string, keysAndValues ...interface{}) {}

// RobustHTTPClient returns an HTTP client with general-purpose defaults for
// talking to the CrowdBuilding API: it retries connection errors, 5xx (except
// 501) and 429 responses, respecting Retry-After. The returned client has the
// stdlib http.Client interface with retryablehttp logic inside.
func RobustHTTPClient() *http.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(retryLog{})
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second
	return client
}
