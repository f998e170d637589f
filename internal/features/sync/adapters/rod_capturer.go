package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"evidence-capture/internal/core/logger"
	"evidence-capture/internal/core/proxy"
	"evidence-capture/internal/features/sync/domain"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// blockedMarkers are page titles that indicate anti-automation challenges
// rather than a real tracking page.
var blockedMarkers = []string{
	"access denied",
	"just a moment",
	"captcha",
	"verify you are human",
	"request blocked",
}

// RodCapturer captures tracking pages with a headless browser.
type RodCapturer struct {
	timeout time.Duration
	proxy   proxy.Settings
	logger  *zap.Logger
}

// NewRodCapturer creates a capturer with the given per-capture timeout and
// proxy settings.
func NewRodCapturer(timeout time.Duration, proxySettings proxy.Settings) *RodCapturer {
	return &RodCapturer{
		timeout: timeout,
		proxy:   proxySettings,
		logger:  logger.Get(),
	}
}

// Capture navigates to the URL headless and returns a full-page screenshot.
// Failures come back classified: deadline as timeout, unreachable pages as
// navigation_failed, anti-automation challenges as blocked.
func (c *RodCapturer) Capture(ctx context.Context, url string) (*domain.Screenshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("Launching browser",
		zap.String("url", url),
		zap.Bool("proxy_enabled", c.proxy.HasProxy()),
	)

	l := launcher.New().
		Context(ctx).
		Headless(true).
		NoSandbox(true)

	// Chromium does not take proxy credentials on the command line; route
	// authenticated upstreams through a local forwarder instead.
	if c.proxy.HasProxy() {
		if c.proxy.Username != "" && c.proxy.Password != "" {
			forwarder, err := proxy.NewForwardingProxy(c.proxy.FullURL())
			if err != nil {
				return nil, domain.NewAttemptError(domain.FailureNavigation, err)
			}
			localAddr, err := forwarder.Start(ctx)
			if err != nil {
				return nil, domain.NewAttemptError(domain.FailureNavigation, err)
			}
			defer forwarder.Stop()
			l = l.Proxy(localAddr)
		} else {
			l = l.Proxy(c.proxy.HostPort())
		}
	}

	u, err := l.Launch()
	if err != nil {
		return nil, c.classify(ctx, fmt.Errorf("failed to launch browser: %w", err))
	}

	browser := rod.New().Context(ctx).ControlURL(u)
	if err := browser.Connect(); err != nil {
		return nil, c.classify(ctx, fmt.Errorf("failed to connect to browser: %w", err))
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, c.classify(ctx, fmt.Errorf("failed to open page: %w", err))
	}

	var response proto.NetworkResponseReceived
	waitResponse := page.WaitEvent(&response)

	if err := page.Context(ctx).Navigate(url); err != nil {
		return nil, c.classify(ctx, fmt.Errorf("failed to navigate to %s: %w", url, err))
	}
	waitResponse()

	if err := page.WaitLoad(); err != nil {
		return nil, c.classify(ctx, fmt.Errorf("page never finished loading: %w", err))
	}
	// Let client-side rendered tracking widgets settle before the shot.
	_ = page.WaitStable(time.Second)

	if blockErr := c.checkBlocked(page, response.Response); blockErr != nil {
		return nil, blockErr
	}

	image, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, c.classify(ctx, fmt.Errorf("failed to capture screenshot: %w", err))
	}

	capturedAt := time.Now().UTC()
	c.logger.Debug("Screenshot captured",
		zap.String("url", url),
		zap.Int("bytes", len(image)),
	)

	return &domain.Screenshot{Image: image, CapturedAt: capturedAt}, nil
}

// checkBlocked inspects the document response and page title for
// anti-automation challenges.
func (c *RodCapturer) checkBlocked(page *rod.Page, response *proto.NetworkResponse) error {
	if response != nil && blockedStatus(response.Status) {
		return domain.NewAttemptError(domain.FailureBlocked,
			fmt.Errorf("carrier returned HTTP %d", response.Status))
	}

	info, err := page.Info()
	if err != nil {
		return nil
	}
	if challengeTitle(info.Title) {
		return domain.NewAttemptError(domain.FailureBlocked,
			fmt.Errorf("challenge page detected: %q", info.Title))
	}
	return nil
}

// blockedStatus reports whether the document response code signals rejection of
// the automated client.
func blockedStatus(status int) bool {
	return status == 403 || status == 429
}

// challengeTitle reports whether the page title matches a known
// anti-automation challenge page.
func challengeTitle(title string) bool {
	title = strings.ToLower(title)
	for _, marker := range blockedMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// classify maps a raw browser error to the failure taxonomy. A cancelled or
// expired context wins over whatever error it caused downstream.
func (c *RodCapturer) classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.NewAttemptError(domain.FailureTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return domain.NewAttemptError(domain.FailureCancelled, err)
	default:
		return domain.NewAttemptError(domain.FailureNavigation, err)
	}
}
