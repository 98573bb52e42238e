package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mpsync/syncer/internal/models"
)

type recordingPenalizer struct {
	mu      sync.Mutex
	invalid []string
	blocked []string
}

func (p *recordingPenalizer) MarkInvalid(ctx context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalid = append(p.invalid, id)
	return nil
}

func (p *recordingPenalizer) BlockForToday(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.blocked = append(p.blocked, id)
}

var testAccount = models.Account{ID: "acc-1", Token: "secret"}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *recordingPenalizer, *[]time.Duration) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p := &recordingPenalizer{}
	c := NewClient(Options{
		BaseURL:         srv.URL,
		Timeout:         time.Second,
		BadRequestDelay: 10 * time.Second,
	}, p)
	var slept []time.Duration
	c.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, p, &slept
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Message: message})
}

func TestListArticlesSendsCredentials(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/platform/mps/MP_WXS_1/articles" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("page"); got != "3" {
			t.Errorf("page = %s, want 3", got)
		}
		if got := r.Header.Get("xid"); got != "acc-1" {
			t.Errorf("xid = %s, want acc-1", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization = %s", got)
		}
		_, _ = w.Write([]byte(`[{"id":"a1","title":"Hello","picUrl":"http://img/1","publishTime":1700000000}]`))
	})

	got, err := c.ListArticles(context.Background(), testAccount, "MP_WXS_1", 3)
	if err != nil {
		t.Fatalf("ListArticles() error = %v", err)
	}
	want := Article{ID: "a1", Title: "Hello", PicURL: "http://img/1", PublishTime: 1700000000}
	if len(got) != 1 || got[0] != want {
		t.Errorf("ListArticles() = %+v, want [%+v]", got, want)
	}
}

func TestClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		message     string
		wantKind    Kind
		wantInvalid bool
		wantBlocked bool
		wantSleep   bool
	}{
		{"auth invalid", http.StatusUnauthorized, "WeReadError401: token expired", KindAuthInvalid, true, false, false},
		{"rate limited", http.StatusTooManyRequests, "WeReadError429", KindRateLimited, false, true, false},
		{"bad request", http.StatusBadRequest, "WeReadError400 bad param", KindBadRequest, false, false, true},
		{"unknown signature", http.StatusForbidden, "WeReadError403", KindUnknownUpstream, false, true, false},
		{"signature wins over status", http.StatusInternalServerError, "WeReadError429", KindRateLimited, false, true, false},
		{"server error", http.StatusBadGateway, "gateway down", KindServerError, false, false, false},
		{"plain client error", http.StatusNotFound, "not found", KindOther, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, p, slept := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeError(w, tt.status, tt.message)
			})

			_, err := c.ListArticles(context.Background(), testAccount, "feed", 1)
			if err == nil {
				t.Fatal("ListArticles() error = nil")
			}
			if got := KindOf(err); got != tt.wantKind {
				t.Errorf("KindOf() = %v, want %v", got, tt.wantKind)
			}
			var ue *Error
			if !errors.As(err, &ue) || ue.AccountID != "acc-1" || ue.StatusCode != tt.status {
				t.Errorf("error = %#v, want account acc-1 status %d", ue, tt.status)
			}
			if got := len(p.invalid) == 1; got != tt.wantInvalid {
				t.Errorf("marked invalid %v, want %v", p.invalid, tt.wantInvalid)
			}
			if got := len(p.blocked) == 1; got != tt.wantBlocked {
				t.Errorf("blocked %v, want %v", p.blocked, tt.wantBlocked)
			}
			if got := len(*slept) == 1; got != tt.wantSleep {
				t.Errorf("slept %v, want sleep %v", *slept, tt.wantSleep)
			}
		})
	}
}

func TestTimeoutIsTransient(t *testing.T) {
	release := make(chan struct{})
	c, p, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)
	c.timeout = 50 * time.Millisecond

	_, err := c.ListArticles(context.Background(), testAccount, "feed", 1)
	if got := KindOf(err); got != KindTransientNetwork {
		t.Fatalf("KindOf() = %v, want %v (err %v)", got, KindTransientNetwork, err)
	}
	if !IsRetryable(err) {
		t.Error("IsRetryable() = false for a timeout")
	}
	if len(p.invalid)+len(p.blocked) != 0 {
		t.Error("timeout changed account state")
	}
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	c := NewClient(Options{BaseURL: addr, Timeout: time.Second}, nil)
	_, err := c.ListArticles(context.Background(), testAccount, "feed", 1)
	if got := KindOf(err); got != KindTransientNetwork {
		t.Errorf("KindOf() = %v, want %v (err %v)", got, KindTransientNetwork, err)
	}
}

func TestCallerCancellationIsOther(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListArticles(ctx, testAccount, "feed", 1)
	if got := KindOf(err); got != KindOther {
		t.Errorf("KindOf() = %v, want %v", got, KindOther)
	}
}

func TestLoginCallsSkipAccountSideEffects(t *testing.T) {
	c, p, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("xid") != "" {
			t.Error("login call carried an account header")
		}
		writeError(w, http.StatusTooManyRequests, "WeReadError429")
	})

	_, err := c.CreateLoginSession(context.Background())
	if got := KindOf(err); got != KindRateLimited {
		t.Errorf("KindOf() = %v, want %v", got, KindRateLimited)
	}
	if len(p.blocked) != 0 {
		t.Errorf("blocked %v, want none", p.blocked)
	}
}

func TestLoginResult(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/login/platform/sess-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"message":"ok","vid":123456,"token":"tok","username":"alice"}`))
	})

	res, err := c.LoginResult(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("LoginResult() error = %v", err)
	}
	if res.AccountID() != "123456" || res.Token != "tok" || res.Username != "alice" {
		t.Errorf("LoginResult() = %+v", res)
	}
}

func TestResolveFeedPostsURL(t *testing.T) {
	c, _, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["url"] != "https://mp.weixin.qq.com/s/abc" {
			t.Errorf("url = %q", body["url"])
		}
		_, _ = w.Write([]byte(`[{"id":"MP_WXS_1","name":"Daily","cover":"c","intro":"i","updateTime":1700000000}]`))
	})

	feeds, err := c.ResolveFeed(context.Background(), testAccount, "https://mp.weixin.qq.com/s/abc")
	if err != nil {
		t.Fatalf("ResolveFeed() error = %v", err)
	}
	if len(feeds) != 1 || feeds[0].ID != "MP_WXS_1" || feeds[0].Name != "Daily" {
		t.Errorf("ResolveFeed() = %+v", feeds)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transient", &Error{Kind: KindTransientNetwork}, true},
		{"server error", &Error{Kind: KindServerError, StatusCode: 502}, true},
		{"unknown signature on 5xx", &Error{Kind: KindUnknownUpstream, StatusCode: 500}, true},
		{"unknown signature on 4xx", &Error{Kind: KindUnknownUpstream, StatusCode: 403}, false},
		{"rate limited on 5xx", &Error{Kind: KindRateLimited, StatusCode: 500}, false},
		{"auth invalid", &Error{Kind: KindAuthInvalid, StatusCode: 401}, false},
		{"wrapped", fmt.Errorf("page 2: %w", &Error{Kind: KindServerError}), true},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), 0); err != nil {
		t.Errorf("Sleep(0) error = %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep(1ms) error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, 0); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep(canceled, 0) error = %v, want context.Canceled", err)
	}
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep(canceled, 1h) error = %v, want context.Canceled", err)
	}
}
