package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/publicsuffix"
)

const maxPageBytes = 2 << 20

// LoginConfig describes the sign-in page of a site.
type LoginConfig struct {
	// LoginURL is the page that renders the sign-in form.
	LoginURL string
	// HomeURL is visited when the auth cookie is missing after submitting.
	// Empty disables the fallback.
	HomeURL string

	IdentityField string
	SecretField   string

	SessionCookie string
	AuthCookie    string

	UserAgent string

	// RejectMarker marks a final URL that is still the sign-in page.
	RejectMarker string

	// Timeout bounds a whole login. Zero means only ctx bounds it.
	Timeout time.Duration
	// SettleDelay is waited after the form is submitted.
	SettleDelay time.Duration
	// HomeSettleDelay is waited after the home fallback.
	HomeSettleDelay time.Duration
}

// DefaultLoginConfig returns the configuration for app.sophia.org.
func DefaultLoginConfig() LoginConfig {
	return LoginConfig{
		LoginURL:        "https://app.sophia.org/user_sessions/new.html",
		HomeURL:         "https://app.sophia.org/home",
		IdentityField:   "user_session[email]",
		SecretField:     "user_session[password]",
		SessionCookie:   "_sophia_session",
		AuthCookie:      "auth_token",
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		RejectMarker:    "sign_in",
		Timeout:         60 * time.Second,
		SettleDelay:     3 * time.Second,
		HomeSettleDelay: 5 * time.Second,
	}
}

// Validate checks that the configuration can drive a login.
func (c LoginConfig) Validate() error {
	u, err := url.Parse(c.LoginURL)
	if err != nil {
		return fmt.Errorf("session: invalid login url: %w", err)
	}
	if !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("session: login url must be absolute: %q", c.LoginURL)
	}
	if c.HomeURL != "" {
		if _, err := url.Parse(c.HomeURL); err != nil {
			return fmt.Errorf("session: invalid home url: %w", err)
		}
	}
	switch {
	case c.IdentityField == "":
		return errors.New("session: identity field is required")
	case c.SecretField == "":
		return errors.New("session: secret field is required")
	case c.SessionCookie == "" || c.AuthCookie == "":
		return errors.New("session: cookie names are required")
	case c.Timeout < 0 || c.SettleDelay < 0 || c.HomeSettleDelay < 0:
		return errors.New("session: durations must not be negative")
	}
	return nil
}

// FormLoginFetcher logs in by submitting the site's sign-in form over HTTP.
//
// Every Fetch uses its own cookie jar and transport, so logins for different
// identities never share cookies or connections.
type FormLoginFetcher struct {
	config    LoginConfig
	loginURL  *url.URL
	homeURL   *url.URL
	transport func() http.RoundTripper
}

// NewFormLoginFetcher creates a fetcher for config.
func NewFormLoginFetcher(config LoginConfig) (*FormLoginFetcher, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	f := &FormLoginFetcher{config: config}
	f.loginURL, _ = url.Parse(config.LoginURL)
	if config.HomeURL != "" {
		f.homeURL, _ = f.loginURL.Parse(config.HomeURL)
	}
	f.transport = func() http.RoundTripper {
		return http.DefaultTransport.(*http.Transport).Clone()
	}
	return f, nil
}

// Config returns the login configuration.
func (f *FormLoginFetcher) Config() LoginConfig {
	return f.config
}

// Fetch performs one login and returns both cookies.
func (f *FormLoginFetcher) Fetch(ctx context.Context, identity, secret string) (Result, error) {
	if err := Validate(identity, secret); err != nil {
		return Result{}, err
	}

	if f.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.config.Timeout)
		defer cancel()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return Result{}, stageError(StageLoginPage, err)
	}
	client := &http.Client{Jar: jar, Transport: f.transport()}
	defer client.CloseIdleConnections()

	doc, pageURL, err := f.getDocument(ctx, client, f.loginURL)
	if err != nil {
		return Result{}, stageError(StageLoginPage, err)
	}

	form := doc.Find("form").Has(`input[name="` + f.config.IdentityField + `"]`).First()
	if form.Length() == 0 {
		return Result{}, stageError(StageForm, ErrLoginFormNotFound)
	}

	action, err := pageURL.Parse(form.AttrOr("action", ""))
	if err != nil {
		return Result{}, stageError(StageForm, err)
	}
	values := formValues(form)
	values.Set(f.config.IdentityField, identity)
	values.Set(f.config.SecretField, secret)

	finalURL, err := f.submit(ctx, client, action, pageURL, values)
	if err != nil {
		return Result{}, stageError(StageSubmit, err)
	}
	if f.config.RejectMarker != "" && strings.Contains(finalURL.String(), f.config.RejectMarker) {
		return Result{}, stageError(StageSubmit, ErrLoginRejected)
	}

	if err := sleep(ctx, f.config.SettleDelay); err != nil {
		return Result{}, stageError(StageSettle, err)
	}

	sessionValue := f.cookie(jar, f.config.SessionCookie, finalURL)
	authValue := f.cookie(jar, f.config.AuthCookie, finalURL)

	if authValue == "" && f.homeURL != nil {
		if err := f.visit(ctx, client, f.homeURL); err != nil {
			return Result{}, stageError(StageHome, err)
		}
		if err := sleep(ctx, f.config.HomeSettleDelay); err != nil {
			return Result{}, stageError(StageSettle, err)
		}
		authValue = f.cookie(jar, f.config.AuthCookie, f.homeURL)
		if sessionValue == "" {
			sessionValue = f.cookie(jar, f.config.SessionCookie, f.homeURL)
		}
	}

	if sessionValue == "" || authValue == "" {
		return Result{}, stageError(StageCookies, ErrMissingCookies)
	}
	return NewResult(f.config.SessionCookie, sessionValue, f.config.AuthCookie, authValue), nil
}

func (f *FormLoginFetcher) getDocument(ctx context.Context, client *http.Client, u *url.URL) (*goquery.Document, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	f.decorate(req)

	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, resp.Request.URL, nil
}

func (f *FormLoginFetcher) submit(ctx context.Context, client *http.Client, action, referer *url.URL, values url.Values) (*url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(values.Encode()))
	if err != nil {
		return nil, err
	}
	f.decorate(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", referer.String())

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer drain(resp.Body)

	if resp.StatusCode >= 500 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp.Request.URL, nil
}

func (f *FormLoginFetcher) visit(ctx context.Context, client *http.Client, u *url.URL) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	f.decorate(req)

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	drain(resp.Body)
	return nil
}

func (f *FormLoginFetcher) decorate(req *http.Request) {
	if f.config.UserAgent != "" {
		req.Header.Set("User-Agent", f.config.UserAgent)
	}
}

// cookie looks name up for the site root and for the page the login ended on.
func (f *FormLoginFetcher) cookie(jar http.CookieJar, name string, page *url.URL) string {
	root := &url.URL{Scheme: f.loginURL.Scheme, Host: f.loginURL.Host, Path: "/"}
	for _, u := range []*url.URL{root, page} {
		if u == nil {
			continue
		}
		for _, c := range jar.Cookies(u) {
			if c.Name == name && c.Value != "" {
				return c.Value
			}
		}
	}
	return ""
}

// formValues collects what a browser would submit for form, minus buttons.
func formValues(form *goquery.Selection) url.Values {
	values := url.Values{}
	form.Find("input").Each(func(_ int, in *goquery.Selection) {
		name := in.AttrOr("name", "")
		if name == "" {
			return
		}
		switch strings.ToLower(in.AttrOr("type", "text")) {
		case "submit", "button", "image", "reset", "file":
			return
		case "checkbox", "radio":
			if _, checked := in.Attr("checked"); !checked {
				return
			}
		}
		values.Set(name, in.AttrOr("value", ""))
	})
	return values
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxPageBytes))
	_ = body.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
