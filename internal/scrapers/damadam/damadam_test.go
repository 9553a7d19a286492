package damadam

import (
	"context"
	"damadam-scraper/internal/components/telemetry"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var pkt = time.FixedZone("PKT", 5*3600)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time           { return c.now }
func (c fixedClock) Location() *time.Location { return c.now.Location() }

func fixture(t testing.TB, name string) string {
	t.Helper()
	contents, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(contents)
}

// fakeSite imitates the parts of damadam the fetcher talks to.
type fakeSite struct {
	mu       sync.Mutex
	accounts map[string]string
	sessions map[string]bool
	logins   int
	pages    map[string]string
}

func newFakeSite(t testing.TB) (*fakeSite, *httptest.Server) {
	site := &fakeSite{
		accounts: map[string]string{"primary": "secret"},
		sessions: map[string]bool{},
		pages: map[string]string{
			"/users/alice/":         fixture(t, "profile_alice.html"),
			"/users/bob/":           fixture(t, "profile_bob.html"),
			"/users/carol/":         fixture(t, "suspended.html"),
			"/profile/public/alice": fixture(t, "public_alice.html"),
			"/users/broken/":        "<html><body><p>down for maintenance</p></body></html>",
			"/users/gone/":          "<html><body><p>User not found</p></body></html>",
		},
	}
	server := httptest.NewServer(site)
	t.Cleanup(server.Close)
	return site, server
}

func (s *fakeSite) revokeSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = map[string]bool{}
}

func (s *fakeSite) setPassword(user, pass string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[user] = pass
}

func (s *fakeSite) loginCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.logins
}

func (s *fakeSite) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie("sessionid")
	if err != nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[cookie.Value]
}

const loginPage = `<html><body><form method="post" action="/login/">
<input type="hidden" name="csrfmiddlewaretoken" value="tok">
<input name="nick"><input name="pass" type="password"><button>Login</button>
</form></body></html>`

func (s *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/login/" && r.Method == http.MethodGet:
		fmt.Fprint(w, loginPage)
		return
	case r.URL.Path == "/login/" && r.Method == http.MethodPost:
		if r.ParseForm() != nil || r.PostForm.Get("csrfmiddlewaretoken") != "tok" {
			http.Error(w, "bad csrf token", http.StatusForbidden)
			return
		}

		s.mu.Lock()
		pass, ok := s.accounts[r.PostForm.Get("nick")]
		if !ok || pass != r.PostForm.Get("pass") {
			s.mu.Unlock()
			fmt.Fprint(w, loginPage)
			return
		}
		s.logins++
		token := fmt.Sprintf("session-%d", s.logins)
		s.sessions[token] = true
		s.mu.Unlock()

		http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: token, Path: "/"})
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	if !s.loggedIn(r) {
		http.Redirect(w, r, "/login/?next="+r.URL.Path, http.StatusFound)
		return
	}

	switch r.URL.Path {
	case "/":
		fmt.Fprint(w, `<html><body><a href="/logout/">Logout</a></body></html>`)
		return
	case "/users/flaky/":
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	page, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	fmt.Fprint(w, page)
}

func newTestClient(t testing.TB, baseUrl string, sessions *SessionStore, accounts ...Credentials) *Client {
	if len(accounts) == 0 {
		accounts = []Credentials{{Username: "primary", Password: "secret"}}
	}
	client, err := NewClient(ClientOptions{
		BaseUrl:           baseUrl,
		Accounts:          accounts,
		Sessions:          sessions,
		RequestsPerSecond: 1000,
	}, &telemetry.Recorder{})
	require.NoError(t, err)
	return client
}

func newTestFetcher(t testing.TB, baseUrl string, now time.Time) (*Fetcher, *Client) {
	client := newTestClient(t, baseUrl, nil)
	require.NoError(t, client.Login(context.Background()))
	return NewFetcher(client, fixedClock{now: now}, &telemetry.Recorder{}), client
}

func TestFetchProfile(t *testing.T) {
	_, server := newFakeSite(t)
	now := time.Date(2024, time.March, 15, 10, 30, 0, 0, pkt)
	fetcher, _ := newTestFetcher(t, server.URL, now)

	record, err := fetcher.Fetch(context.Background(), "alice")
	require.NoError(t, err)

	expected := Record{
		Image:        "https://d2p.cloudfront.net/avatar-imgs/alice.jpg",
		Nickname:     "alice",
		LastPostUrl:  server.URL + "/comments/text/9981",
		LastPostTime: "15-Mar-24",
		Friend:       "Yes",
		City:         "Lahore",
		Gender:       "Female",
		Married:      "",
		Age:          "24",
		Joined:       "15-Jan-24",
		Followers:    "1204",
		Posts:        "37",
		ProfileLink:  server.URL + "/users/alice/",
		Intro:        "Hello there, welcome to my page",
		Verification: Verified,
		ScrapedAt:    now,
	}
	if diff := cmp.Diff(expected, record); diff != "" {
		t.Fatalf("unexpected record (-want +got):\n%s", diff)
	}
}

func TestFetchProfileWithoutPosts(t *testing.T) {
	_, server := newFakeSite(t)
	now := time.Date(2024, time.March, 15, 10, 30, 0, 0, pkt)
	fetcher, _ := newTestFetcher(t, server.URL, now)

	record, err := fetcher.Fetch(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, Unverified, record.Verification)
	require.Equal(t, "No", record.Friend)
	require.Equal(t, "", record.City)
	require.Equal(t, "", record.Age)
	require.Equal(t, "Male", record.Gender)
	require.Equal(t, "14-Mar-24", record.Joined)
	require.Equal(t, "0", record.Posts)
	require.Equal(t, "", record.LastPostUrl)
	require.Equal(t, server.URL+"/static/avatar-default.png", record.Image)

	record, err = fetcher.Fetch(context.Background(), "carol")
	require.NoError(t, err)
	require.Equal(t, Suspended, record.Verification)
}

func TestFetchClassifiesFailures(t *testing.T) {
	_, server := newFakeSite(t)
	fetcher, _ := newTestFetcher(t, server.URL, time.Now())

	cases := []struct {
		nickname string
		kind     FailureKind
	}{
		{"ghost", NotFound},
		{"gone", NotFound},
		{"broken", ParseError},
		{"flaky", NetworkError},
		{"  ", NotFound},
	}
	for _, c := range cases {
		_, err := fetcher.Fetch(context.Background(), c.nickname)
		require.Error(t, err, c.nickname)
		require.Equal(t, c.kind, KindOf(err), c.nickname)
		require.True(t, strings.HasPrefix(err.Error(), string(c.kind)), err.Error())
	}
}

func TestFetchNetworkErrorWhenServerIsDown(t *testing.T) {
	_, server := newFakeSite(t)
	fetcher, _ := newTestFetcher(t, server.URL, time.Now())
	server.Close()

	_, err := fetcher.Fetch(context.Background(), "alice")
	require.Equal(t, NetworkError, KindOf(err))
}

func TestFetchLogsInAgainWhenSessionExpires(t *testing.T) {
	site, server := newFakeSite(t)
	fetcher, _ := newTestFetcher(t, server.URL, time.Now())
	require.Equal(t, 1, site.loginCount())

	site.revokeSessions()
	record, err := fetcher.Fetch(context.Background(), "bob")
	require.NoError(t, err)
	require.Equal(t, "bob", record.Nickname)
	require.Equal(t, 2, site.loginCount())
}

func TestFetchAuthExpired(t *testing.T) {
	site, server := newFakeSite(t)
	fetcher, _ := newTestFetcher(t, server.URL, time.Now())

	site.revokeSessions()
	site.setPassword("primary", "changed")

	_, err := fetcher.Fetch(context.Background(), "bob")
	require.Equal(t, AuthExpired, KindOf(err))
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestLoginFallsBackToBackupAccount(t *testing.T) {
	site, server := newFakeSite(t)
	site.setPassword("backup", "backup-secret")

	client := newTestClient(
		t, server.URL, nil,
		Credentials{Username: "primary", Password: "wrong"},
		Credentials{Username: "backup", Password: "backup-secret"},
	)
	require.NoError(t, client.Login(context.Background()))
	require.Equal(t, "backup", client.Account())
}

func TestLoginFailsWithoutValidAccounts(t *testing.T) {
	_, server := newFakeSite(t)
	client := newTestClient(
		t, server.URL, nil,
		Credentials{Username: "primary", Password: "wrong"},
		Credentials{},
	)
	err := client.Login(context.Background())
	require.ErrorIs(t, err, ErrLoginFailed)
}

func TestLoginReusesStoredSession(t *testing.T) {
	site, server := newFakeSite(t)
	sessions, err := OpenSessionStore("", time.Hour)
	require.NoError(t, err)
	defer sessions.Close()

	first := newTestClient(t, server.URL, sessions)
	require.NoError(t, first.Login(context.Background()))
	require.Equal(t, 1, site.loginCount())

	second := newTestClient(t, server.URL, sessions)
	require.NoError(t, second.Login(context.Background()))
	require.Equal(t, 1, site.loginCount())
	require.Equal(t, "primary", second.Account())

	site.revokeSessions()
	third := newTestClient(t, server.URL, sessions)
	require.NoError(t, third.Login(context.Background()))
	require.Equal(t, 2, site.loginCount())
}

func TestCleanValue(t *testing.T) {
	for _, blank := range []string{"No city", "not set", "[No Posts]", "N/A", "null", " none ", "no age"} {
		require.Equal(t, "", CleanValue(blank), blank)
	}
	require.Equal(t, "Karachi", CleanValue(" Karachi "))
}
