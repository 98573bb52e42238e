// Package upstream talks to the article platform and classifies its failures.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"mpsync/syncer/internal/models"
)

const (
	maxBodyBytes = 4 << 20

	// LoginResultTimeout bounds the long-poll on a login session.
	LoginResultTimeout = 120 * time.Second
)

// Penalizer applies account state changes decided by error classification.
type Penalizer interface {
	MarkInvalid(ctx context.Context, accountID string) error
	BlockForToday(accountID string)
}

// Options configures a Client.
type Options struct {
	BaseURL string
	// Timeout bounds each call unless the call has its own limit.
	Timeout time.Duration
	// RequestRPS caps outbound calls per second; zero disables the limiter.
	RequestRPS float64
	// BadRequestDelay is slept before a BadRequest failure is returned.
	BadRequestDelay time.Duration
	HTTPClient      *http.Client
}

// Client performs authenticated calls to the platform.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	penalizer       Penalizer
	limiter         *rate.Limiter
	timeout         time.Duration
	badRequestDelay time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

// Article is one entry of a feed's article page.
type Article struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PicURL      string `json:"picUrl"`
	PublishTime int64  `json:"publishTime"`
}

// FeedInfo describes a feed resolved from an article link.
type FeedInfo struct {
	ID         string `json:"id"`
	Cover      string `json:"cover"`
	Name       string `json:"name"`
	Intro      string `json:"intro"`
	UpdateTime int64  `json:"updateTime"`
}

// LoginSession is a pending QR login.
type LoginSession struct {
	UUID    string `json:"uuid"`
	ScanURL string `json:"scanUrl"`
}

// LoginResult is the state of a login session. VID and Token are set once the
// scan has been confirmed.
type LoginResult struct {
	Message  string `json:"message"`
	VID      int64  `json:"vid,omitempty"`
	Token    string `json:"token,omitempty"`
	Username string `json:"username,omitempty"`
}

// AccountID returns the account id minted by a successful login.
func (r LoginResult) AccountID() string {
	if r.VID == 0 {
		return ""
	}
	return strconv.FormatInt(r.VID, 10)
}

type errorBody struct {
	Message string `json:"message"`
}

// NewClient creates a client. penalizer may be nil, in which case failures
// are classified without touching account state.
func NewClient(opts Options, penalizer Penalizer) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	c := &Client{
		baseURL:         strings.TrimRight(opts.BaseURL, "/"),
		httpClient:      httpClient,
		penalizer:       penalizer,
		timeout:         opts.Timeout,
		badRequestDelay: opts.BadRequestDelay,
		sleep:           Sleep,
	}
	if opts.RequestRPS > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestRPS), 1)
	}
	return c
}

// ListArticles fetches one page of a feed's articles. Page 1 is the latest.
func (c *Client) ListArticles(ctx context.Context, account models.Account, feedID string, page int) ([]Article, error) {
	var articles []Article
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/api/v2/platform/mps/" + url.PathEscape(feedID) + "/articles",
		query:   url.Values{"page": {strconv.Itoa(page)}},
		account: &account,
	}, &articles)
	if err != nil {
		return nil, err
	}
	log.Debug().
		Str("feed_id", feedID).
		Int("page", page).
		Int("articles", len(articles)).
		Msg("Fetched article page")
	return articles, nil
}

// ResolveFeed looks up the feeds an article link belongs to.
func (c *Client) ResolveFeed(ctx context.Context, account models.Account, articleURL string) ([]FeedInfo, error) {
	var feeds []FeedInfo
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/api/v2/platform/wxs2mp",
		body:    map[string]string{"url": articleURL},
		account: &account,
	}, &feeds)
	return feeds, err
}

// CreateLoginSession starts a QR login for a new account.
func (c *Client) CreateLoginSession(ctx context.Context) (LoginSession, error) {
	var session LoginSession
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v2/login/platform"}, &session)
	return session, err
}

// LoginResult waits for the outcome of a login session.
func (c *Client) LoginResult(ctx context.Context, sessionID string) (LoginResult, error) {
	var result LoginResult
	err := c.do(ctx, request{
		method:  http.MethodGet,
		path:    "/api/v2/login/platform/" + url.PathEscape(sessionID),
		timeout: LoginResultTimeout,
	}, &result)
	return result, err
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	account *models.Account
	timeout time.Duration
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	accountID := ""
	if r.account != nil {
		accountID = r.account.ID
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindOther, AccountID: accountID, Err: err}
		}
	}

	timeout := r.timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	callCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := c.newRequest(callCtx, r)
	if err != nil {
		return &Error{Kind: KindOther, AccountID: accountID, Err: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		kind := KindOther
		if ctx.Err() == nil && isNetworkError(err) {
			kind = KindTransientNetwork
		}
		return c.fail(ctx, &Error{Kind: kind, AccountID: accountID, Err: err})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		kind := KindOther
		if ctx.Err() == nil && isNetworkError(err) {
			kind = KindTransientNetwork
		}
		return c.fail(ctx, &Error{Kind: kind, AccountID: accountID, StatusCode: resp.StatusCode, Err: err})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(body, &eb)
		kind, ok := classifyMessage(eb.Message)
		if !ok {
			kind = classifyStatus(resp.StatusCode)
		}
		return c.fail(ctx, &Error{
			Kind:       kind,
			AccountID:  accountID,
			StatusCode: resp.StatusCode,
			Message:    eb.Message,
			Err:        fmt.Errorf("%s %s: %s", r.method, r.path, resp.Status),
		})
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindOther, AccountID: accountID, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, r request) (*http.Request, error) {
	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.account != nil {
		req.Header.Set("xid", r.account.ID)
		req.Header.Set("Authorization", "Bearer "+r.account.Token)
	}
	return req, nil
}

// fail applies the account side effect of a classified failure and returns it.
// Calls made without an account never touch account state.
func (c *Client) fail(ctx context.Context, e *Error) error {
	logger := log.With().
		Str("account_id", e.AccountID).
		Str("kind", e.Kind.String()).
		Int("status", e.StatusCode).
		Logger()

	switch e.Kind {
	case KindAuthInvalid:
		if c.penalizer != nil && e.AccountID != "" {
			if err := c.penalizer.MarkInvalid(ctx, e.AccountID); err != nil {
				logger.Error().Err(err).Msg("Failed to disable account")
			}
		}
	case KindRateLimited, KindUnknownUpstream:
		if c.penalizer != nil && e.AccountID != "" {
			c.penalizer.BlockForToday(e.AccountID)
		}
		if e.Kind == KindUnknownUpstream {
			logger.Error().Str("message", e.Message).Msg("Unhandled upstream error")
		}
	case KindBadRequest:
		logger.Error().Str("message", e.Message).Msg("Upstream rejected request parameters")
		if c.badRequestDelay > 0 {
			_ = c.sleep(ctx, c.badRequestDelay)
		}
	default:
		logger.Warn().Err(e.Err).Msg("Upstream call failed")
	}
	return e
}

func isNetworkError(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		err = ue.Err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Sleep waits for d or until ctx is done, whichever comes first. A zero or
// negative d returns at once with ctx.Err().
func Sleep(ctx context.Context, d time.Duration) error {
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
