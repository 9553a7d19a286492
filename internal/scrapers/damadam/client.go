// client.go contains the authenticated http session with damadam, it knows
// nothing about profile pages.

package damadam

import (
	"bytes"
	"context"
	"damadam-scraper/internal/components/assert"
	"damadam-scraper/internal/components/telemetry"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	report_client_login          = "client.login"
	report_client_restore        = "client.restore-session"
	report_client_save_session   = "client.save-session"
	report_client_verify_session = "client.verify-session"
)

const DefaultBaseUrl = "https://damadam.pk"

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type ClientOptions struct {
	// defaults to DefaultBaseUrl
	BaseUrl string
	// tried in order until one of them logs in, the first one is the primary
	// account
	Accounts []Credentials
	// optional, sessions are not reused across runs if nil
	Sessions *SessionStore
	// optional, dumps every request and response
	Output telemetry.MessageOutput
	// defaults to 2
	RequestsPerSecond float64
	// defaults to 30 seconds
	Timeout time.Duration
}

type Client struct {
	BaseUrl *url.URL
	Http    *resty.Client

	jar      *cookiejar.Jar
	accounts []Credentials
	sessions *SessionStore
	account  string
	tel      telemetry.API
}

func NewClient(opts ClientOptions, tel telemetry.API) (*Client, error) {
	assert.NotNil(tel)

	tel = telemetry.NewScopedAPI("damadam_scraper", tel)

	if opts.BaseUrl == "" {
		opts.BaseUrl = DefaultBaseUrl
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}

	parsedBaseUrl, err := url.Parse(strings.TrimSuffix(opts.BaseUrl, "/"))
	if err != nil {
		return nil, err
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(parsedBaseUrl.String())
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	httpClient.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(parsedBaseUrl.Hostname()))
	httpClient.SetTimeout(opts.Timeout)

	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(httpClient, tel, opts.Output)

	c := &Client{
		BaseUrl:  parsedBaseUrl,
		Http:     httpClient,
		jar:      jar,
		accounts: opts.Accounts,
		sessions: opts.Sessions,
		tel:      tel,
	}
	return c, nil
}

// Account returns the username of the account that is currently logged in.
func (c *Client) Account() string {
	return c.account
}

func isLoginUrl(u *url.URL) bool {
	return u != nil && strings.HasPrefix(u.Path, "/login")
}

func finalUrl(res *resty.Response) *url.URL {
	if res == nil || res.RawResponse == nil || res.RawResponse.Request == nil {
		return nil
	}
	return res.RawResponse.Request.URL
}

// VerifySession reports whether the cookies in the jar belong to a logged in
// session.
func (c *Client) VerifySession(ctx context.Context) (bool, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		Get("/")
	if err != nil {
		c.tel.ReportWarning(report_client_verify_session, fmt.Errorf("request home: %w", err))
		return false, err
	}
	if isLoginUrl(finalUrl(res)) {
		return false, nil
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return false, err
	}
	loggedIn := doc.Find("a[href*='/logout/'], form[action*='/logout/']").Length() > 0
	return loggedIn, nil
}

func (c *Client) restoreSession(ctx context.Context, account string) bool {
	if c.sessions == nil {
		return false
	}
	cookies, err := c.sessions.Load(account)
	if err != nil {
		c.tel.ReportWarning(report_client_restore, err, "account", account)
		return false
	}
	if len(cookies) == 0 {
		return false
	}
	c.jar.SetCookies(c.BaseUrl, cookies)

	ok, err := c.VerifySession(ctx)
	if err != nil || !ok {
		c.tel.ReportDebug("stored session is no longer valid", "account", account)
		c.jar.SetCookies(c.BaseUrl, expire(cookies))
		return false
	}
	c.tel.ReportDebug("restored session", "account", account)
	return true
}

func expire(cookies []*http.Cookie) []*http.Cookie {
	out := make([]*http.Cookie, len(cookies))
	for i, cookie := range cookies {
		out[i] = &http.Cookie{
			Name:   cookie.Name,
			Path:   cookie.Path,
			Domain: cookie.Domain,
			MaxAge: -1,
		}
	}
	return out
}

func (c *Client) saveSession(account string) {
	if c.sessions == nil {
		return
	}
	err := c.sessions.Save(account, c.jar.Cookies(c.BaseUrl))
	if err != nil {
		c.tel.ReportWarning(report_client_save_session, err, "account", account)
	}
}

func (c *Client) loginUsernamePassword(ctx context.Context, cred Credentials) error {
	res, err := c.Http.R().
		SetContext(ctx).
		Get("/login/")
	if err != nil {
		return fmt.Errorf("login page request: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return fmt.Errorf("parse login page: %w", err)
	}

	form := map[string]string{
		"nick": cred.Username,
		"pass": cred.Password,
	}
	csrf := doc.Find("input[name=csrfmiddlewaretoken]").AttrOr("value", "")
	if csrf != "" {
		form["csrfmiddlewaretoken"] = csrf
	}

	res, err = c.Http.R().
		SetContext(ctx).
		SetHeader("referer", c.BaseUrl.String()+"/login/").
		SetFormData(form).
		Post("/login/")
	if err != nil {
		return fmt.Errorf("login request: %w", err)
	}
	if isLoginUrl(finalUrl(res)) {
		return fmt.Errorf("still on the login page after submitting credentials")
	}

	ok, err := c.VerifySession(ctx)
	if err != nil {
		return fmt.Errorf("verify session: %w", err)
	}
	if !ok {
		return fmt.Errorf("could not find a logout link after logging in")
	}
	return nil
}

// Login restores a stored session or logs in with the configured accounts in
// order, it returns ErrLoginFailed if none of them work.
func (c *Client) Login(ctx context.Context) error {
	for _, cred := range c.accounts {
		if cred.Username == "" || cred.Password == "" {
			continue
		}
		if c.restoreSession(ctx, cred.Username) {
			c.account = cred.Username
			return nil
		}
	}

	for i, cred := range c.accounts {
		if cred.Username == "" || cred.Password == "" {
			continue
		}
		err := c.loginUsernamePassword(ctx, cred)
		if err != nil {
			c.tel.ReportWarning(
				report_client_login,
				err,
				"account", cred.Username,
				"attempt", i+1,
			)
			if ctx.Err() != nil {
				return ctx.Err()
			}
			continue
		}
		c.account = cred.Username
		c.saveSession(cred.Username)
		c.tel.ReportDebug("logged in", "account", cred.Username)
		return nil
	}

	c.tel.ReportBroken(report_client_login, ErrLoginFailed, "accounts", len(c.accounts))
	return ErrLoginFailed
}

// Relogin forgets the current session and logs in again.
func (c *Client) Relogin(ctx context.Context) error {
	if c.account != "" {
		if c.sessions != nil {
			err := c.sessions.Delete(c.account)
			if err != nil {
				c.tel.ReportWarning(report_client_save_session, err, "account", c.account)
			}
		}
		c.jar.SetCookies(c.BaseUrl, expire(c.jar.Cookies(c.BaseUrl)))
		c.account = ""
	}
	return c.Login(ctx)
}
