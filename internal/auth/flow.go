package auth

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/libsearch/sitecrawler/internal/crawler"
)

// Config holds credentials, endpoint signatures, selectors, and timeouts for
// the login flow.
type Config struct {
	// Primary SSO form.
	PrimaryUsername  string
	PrimaryPassword  string
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string

	// Federated secondary provider, recognized by hostname. Username and
	// password are submitted in two sequential steps.
	SecondaryUsername         string
	SecondaryPassword         string
	SecondaryHosts            []string
	SecondaryUsernameSelector string
	SecondaryPasswordSelector string
	SecondarySubmitSelector   string

	// Login endpoint recognition and success condition.
	LoginHosts     []string
	LoginPathParts []string
	TargetDomain   string

	StaySignedInSelector string
	SecondFactorMarkers  []string
	LoggedInMarkers      []string

	StepTimeout      time.Duration
	FieldWait        time.Duration
	SecondFactorPoll time.Duration
	SecondFactorWait time.Duration
}

func (c Config) withDefaults() Config {
	if c.StepTimeout <= 0 {
		c.StepTimeout = 30 * time.Second
	}
	if c.FieldWait <= 0 {
		c.FieldWait = 5 * time.Second
	}
	if c.SecondFactorPoll <= 0 {
		c.SecondFactorPoll = 15 * time.Second
	}
	if c.SecondFactorWait <= 0 {
		c.SecondFactorWait = 2 * time.Minute
	}
	if len(c.SecondFactorMarkers) == 0 {
		c.SecondFactorMarkers = []string{"approve", "verify your identity"}
	}
	return c
}

// Flow runs the authentication state machine over whichever tab hit the
// login surface. The flow itself is stateless between calls, so one Flow
// serves every concurrent fetch.
type Flow struct {
	cfg    Config
	logger *zap.Logger
}

// NewFlow builds a Flow.
func NewFlow(cfg Config, logger *zap.Logger) *Flow {
	return &Flow{cfg: cfg.withDefaults(), logger: logger}
}

// IsLoginURL reports whether the URL is a recognized login endpoint rather
// than content: a configured login or federated host, or a login path
// signature on any host.
func (f *Flow) IsLoginURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, h := range f.cfg.LoginHosts {
		if host == strings.ToLower(h) {
			return true
		}
	}
	if f.isSecondaryHost(host) {
		return true
	}
	lowerPath := strings.ToLower(u.Path)
	for _, part := range f.cfg.LoginPathParts {
		if strings.Contains(lowerPath, strings.ToLower(part)) {
			return true
		}
	}
	return false
}

// Authenticate drives the tab from a login surface to an authenticated
// state, then navigates back to the originally requested URL when the
// post-login landing differs. Any branch error returns ErrAuthFailed wrapping
// the cause; the caller treats it as a page-level failure.
func (f *Flow) Authenticate(ctx context.Context, b crawler.Browser, requestedURL string) error {
	st := StateUnauthenticated
	var cause error
	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", crawler.ErrAuthFailed, err)
		}
		f.logger.Debug("auth state", zap.Stringer("state", st))
		switch st {
		case StateUnauthenticated:
			st, cause = f.handleUnauthenticated(ctx, b)
		case StatePrimaryChallenge:
			st, cause = f.handlePrimaryChallenge(ctx, b)
		case StateSecondaryChallenge:
			st, cause = f.handleSecondaryChallenge(ctx, b)
		case StateSecondFactorPending:
			st, cause = f.handleSecondFactorPending(ctx, b)
		case StatePersisted:
			st, cause = f.handlePersisted(ctx, b)
		case StateAuthenticated:
			return f.returnToRequested(ctx, b, requestedURL)
		case StateFailed:
			return fmt.Errorf("%w: %w", crawler.ErrAuthFailed, cause)
		}
	}
}

// handleUnauthenticated decides the first challenge, or short-circuits when
// the page already shows logged-in markers from a prior session.
func (f *Flow) handleUnauthenticated(ctx context.Context, b crawler.Browser) (State, error) {
	text, err := pageText(ctx, b)
	if err == nil && f.containsAny(text, f.cfg.LoggedInMarkers) {
		f.logger.Info("session already authenticated")
		return StateAuthenticated, nil
	}

	current, err := b.CurrentURL(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("read location: %w", err)
	}
	if f.isSecondaryURL(current) {
		return StateSecondaryChallenge, nil
	}
	return StatePrimaryChallenge, nil
}

// handlePrimaryChallenge submits stored credentials into the primary SSO
// form and awaits navigation.
func (f *Flow) handlePrimaryChallenge(ctx context.Context, b crawler.Browser) (State, error) {
	if err := b.WaitVisible(ctx, f.cfg.UsernameSelector, f.cfg.FieldWait); err != nil {
		return StateFailed, fmt.Errorf("%w: %s", crawler.ErrLoginFormNotFound, f.cfg.UsernameSelector)
	}
	current, _ := b.CurrentURL(ctx)
	if err := f.typeAndSubmit(ctx, b, f.cfg.UsernameSelector, f.cfg.PrimaryUsername,
		f.cfg.PasswordSelector, f.cfg.PrimaryPassword, f.cfg.SubmitSelector); err != nil {
		return StateFailed, err
	}
	if _, err := b.WaitLocationChange(ctx, current, f.cfg.StepTimeout); err != nil {
		return StateFailed, fmt.Errorf("primary login did not navigate: %w", err)
	}
	return StateSecondaryChallenge, nil
}

// handleSecondaryChallenge walks the federated provider's two sequential
// steps. A missing field is non-fatal: the flow may already be partially
// authenticated from a prior session.
func (f *Flow) handleSecondaryChallenge(ctx context.Context, b crawler.Browser) (State, error) {
	current, err := b.CurrentURL(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("read location: %w", err)
	}
	if !f.isSecondaryURL(current) {
		return StateSecondFactorPending, nil
	}

	steps := []struct {
		name     string
		selector string
		value    string
	}{
		{"username", f.cfg.SecondaryUsernameSelector, f.cfg.SecondaryUsername},
		{"password", f.cfg.SecondaryPasswordSelector, f.cfg.SecondaryPassword},
	}
	for _, step := range steps {
		if err := b.WaitVisible(ctx, step.selector, f.cfg.FieldWait); err != nil {
			f.logger.Debug("secondary field absent, skipping step", zap.String("step", step.name))
			continue
		}
		before, _ := b.CurrentURL(ctx)
		if err := b.Type(ctx, step.selector, step.value); err != nil {
			return StateFailed, fmt.Errorf("secondary %s entry: %w", step.name, err)
		}
		if err := b.Click(ctx, f.cfg.SecondarySubmitSelector); err != nil {
			return StateFailed, fmt.Errorf("secondary %s submit: %w", step.name, err)
		}
		if _, err := b.WaitLocationChange(ctx, before, f.cfg.StepTimeout); err != nil {
			return StateFailed, fmt.Errorf("secondary %s step did not navigate: %w", step.name, err)
		}
	}
	return StateSecondFactorPending, nil
}

// handleSecondFactorPending polls the page's visible text for second-factor
// indicators. When present the whole run blocks awaiting an out-of-band human
// approval; when absent within the poll window no second factor was required.
func (f *Flow) handleSecondFactorPending(ctx context.Context, b crawler.Browser) (State, error) {
	deadline := time.Now().Add(f.cfg.SecondFactorPoll)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return StateFailed, err
		}
		text, err := pageText(ctx, b)
		if err == nil && f.containsAny(text, f.cfg.SecondFactorMarkers) {
			f.logger.Info("second factor requested, waiting for out-of-band approval",
				zap.Duration("timeout", f.cfg.SecondFactorWait))
			current, _ := b.CurrentURL(ctx)
			if _, err := b.WaitLocationChange(ctx, current, f.cfg.SecondFactorWait); err != nil {
				return StateFailed, fmt.Errorf("second factor not approved: %w", err)
			}
			return StatePersisted, nil
		}
		select {
		case <-ctx.Done():
			return StateFailed, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return StatePersisted, nil
}

// handlePersisted accepts the "stay signed in" prompt when shown, then checks
// the success condition: on the target domain and no longer on a login URL.
func (f *Flow) handlePersisted(ctx context.Context, b crawler.Browser) (State, error) {
	if f.cfg.StaySignedInSelector != "" {
		if err := b.WaitVisible(ctx, f.cfg.StaySignedInSelector, f.cfg.FieldWait); err == nil {
			before, _ := b.CurrentURL(ctx)
			if err := b.Click(ctx, f.cfg.StaySignedInSelector); err == nil {
				if _, err := b.WaitLocationChange(ctx, before, f.cfg.StepTimeout); err != nil {
					f.logger.Debug("no navigation after stay-signed-in prompt")
				}
			}
		}
	}

	current, err := b.CurrentURL(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("read location: %w", err)
	}
	if f.onTargetDomain(current) && !f.IsLoginURL(current) {
		return StateAuthenticated, nil
	}
	return StateFailed, fmt.Errorf("login flow ended on %s", current)
}

func (f *Flow) returnToRequested(ctx context.Context, b crawler.Browser, requestedURL string) error {
	current, err := b.CurrentURL(ctx)
	if err != nil {
		return fmt.Errorf("%w: read location: %w", crawler.ErrAuthFailed, err)
	}
	if sameCanonical(current, requestedURL) {
		return nil
	}
	if _, err := b.Navigate(ctx, requestedURL, f.cfg.StepTimeout); err != nil {
		return fmt.Errorf("%w: return to %s: %w", crawler.ErrAuthFailed, requestedURL, err)
	}
	return nil
}

func (f *Flow) typeAndSubmit(ctx context.Context, b crawler.Browser, userSel, user, passSel, pass, submitSel string) error {
	if err := b.Type(ctx, userSel, user); err != nil {
		return fmt.Errorf("username entry: %w", err)
	}
	if err := b.Type(ctx, passSel, pass); err != nil {
		return fmt.Errorf("password entry: %w", err)
	}
	if err := b.Click(ctx, submitSel); err != nil {
		return fmt.Errorf("form submit: %w", err)
	}
	return nil
}

// pageText reads the page's visible text via an in-page evaluation. Marker
// phrases are matched against what a user would see, not raw markup.
func pageText(ctx context.Context, b crawler.Browser) (string, error) {
	var text string
	if err := b.Evaluate(ctx, "document.body.innerText", &text); err != nil {
		return "", err
	}
	return text, nil
}

func (f *Flow) isSecondaryURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return f.isSecondaryHost(strings.ToLower(u.Hostname()))
}

func (f *Flow) isSecondaryHost(host string) bool {
	for _, h := range f.cfg.SecondaryHosts {
		if host == strings.ToLower(h) {
			return true
		}
	}
	return false
}

func (f *Flow) onTargetDomain(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	domain := strings.ToLower(f.cfg.TargetDomain)
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func (f *Flow) containsAny(content string, markers []string) bool {
	lower := strings.ToLower(content)
	for _, marker := range markers {
		if marker != "" && strings.Contains(lower, strings.ToLower(marker)) {
			return true
		}
	}
	return false
}

func sameCanonical(a, b string) bool {
	ca, errA := crawler.NormalizeURL(a)
	cb, errB := crawler.NormalizeURL(b)
	if errA != nil || errB != nil {
		return a == b
	}
	return ca == cb
}
