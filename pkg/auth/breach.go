package auth

import (
	"bufio"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultBreachAPIURL is the public k-anonymity range endpoint.
	DefaultBreachAPIURL = "https://api.pwnedpasswords.com"
	// DefaultBreachTimeout bounds a single range lookup.
	DefaultBreachTimeout = 5 * time.Second

	hashPrefixLength = 5
)

// Breach check outcomes, as reported to metrics.
const (
	BreachResultClean       = "clean"
	BreachResultBreached    = "breached"
	BreachResultUnavailable = "unavailable"
)

// BreachChecker reports whether a password is known to be compromised.
// Implementations must fail open: an unavailable service means false.
type BreachChecker interface {
	IsBreached(ctx context.Context, password string) bool
}

// RangeClient queries a k-anonymity range API. Only the first five
// characters of the password's SHA-1 leave the process.
type RangeClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *logrus.Logger
	metrics Metrics
}

// RangeClientOption configures a RangeClient.
type RangeClientOption func(*RangeClient)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(c *http.Client) RangeClientOption {
	return func(rc *RangeClient) { rc.client = c }
}

// WithBreachTimeout overrides the per-lookup timeout.
func WithBreachTimeout(d time.Duration) RangeClientOption {
	return func(rc *RangeClient) { rc.timeout = d }
}

// WithBreachMetrics records lookup outcomes.
func WithBreachMetrics(m Metrics) RangeClientOption {
	return func(rc *RangeClient) { rc.metrics = m }
}

// NewRangeClient creates a breach checker against baseURL.
func NewRangeClient(baseURL string, logger *logrus.Logger, opts ...RangeClientOption) *RangeClient {
	if baseURL == "" {
		baseURL = DefaultBreachAPIURL
	}
	rc := &RangeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultBreachTimeout,
		logger:  logger,
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(rc)
	}
	if rc.client == nil {
		rc.client = &http.Client{Timeout: rc.timeout}
	}
	return rc
}

// IsBreached is the fail-open boundary: any lookup error is logged and
// treated as not breached.
func (rc *RangeClient) IsBreached(ctx context.Context, password string) bool {
	breached, err := rc.Lookup(ctx, password)
	if err != nil {
		rc.logger.WithError(err).Warn("breach check unavailable, allowing password")
		rc.metrics.RecordBreachCheck(BreachResultUnavailable)
		return false
	}
	if breached {
		rc.metrics.RecordBreachCheck(BreachResultBreached)
	} else {
		rc.metrics.RecordBreachCheck(BreachResultClean)
	}
	return breached
}

// Lookup performs the range query and reports errors to the caller.
func (rc *RangeClient) Lookup(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password))
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:hashPrefixLength], digest[hashPrefixLength:]

	ctx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rc.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build range request: %w", err)
	}
	req.Header.Set("Add-Padding", "true")

	resp, err := rc.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("range request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("range request returned status %d", resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		hashSuffix, countStr, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(hashSuffix, suffix) {
			continue
		}
		// Padding entries carry a count of zero.
		count, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			return false, fmt.Errorf("malformed range line %q: %w", line, err)
		}
		return count > 0, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("failed to read range response: %w", err)
	}
	return false, nil
}
