package damadam

import (
	"bytes"
	"context"
	"damadam-scraper/internal/components/assert"
	"damadam-scraper/internal/components/chrono"
	"damadam-scraper/internal/components/telemetry"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("damadam-scraper/internal/scrapers/damadam")

const (
	report_fetch_profile     = "fetch.profile"
	report_fetch_recent_post = "fetch.recent-post"
	report_fetch_relogin     = "fetch.relogin"
)

type Verification string

const (
	Verified   Verification = "Verified"
	Unverified Verification = "Unverified"
	Suspended  Verification = "Suspended"
)

// Record is everything scraped from one profile at one point in time.
type Record struct {
	Image        string
	Nickname     string
	Tags         string
	LastPostUrl  string
	LastPostTime string
	Friend       string
	City         string
	Gender       string
	Married      string
	Age          string
	Joined       string
	Followers    string
	Posts        string
	ProfileLink  string
	Intro        string
	Verification Verification
	Source       string
	ScrapedAt    time.Time
}

// Fetcher retrieves and parses profiles through a logged in Client.
type Fetcher struct {
	client *Client
	clock  chrono.API
	tel    telemetry.API
}

func NewFetcher(client *Client, clock chrono.API, tel telemetry.API) *Fetcher {
	assert.NotNil(client)
	assert.NotNil(clock)
	assert.NotNil(tel)
	return &Fetcher{
		client: client,
		clock:  clock,
		tel:    telemetry.NewScopedAPI("damadam_fetcher", tel),
	}
}

// Fetch returns the profile of nickname or a *FetchError. When the session
// turns out to have expired the client logs in once more before giving up
// with AuthExpired.
func (f *Fetcher) Fetch(ctx context.Context, nickname string) (Record, error) {
	ctx, span := tracer.Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("nickname", nickname))

	nickname = strings.TrimSpace(nickname)
	if nickname == "" {
		err := newFetchError(NotFound, nickname, fmt.Errorf("empty nickname"))
		span.SetStatus(codes.Error, err.Error())
		return Record{}, err
	}

	record, err := f.fetchProfile(ctx, nickname)
	if KindOf(err) == AuthExpired && ctx.Err() == nil {
		f.tel.ReportDebug("session expired, logging in again", "nickname", nickname)
		loginErr := f.client.Relogin(ctx)
		if loginErr != nil {
			f.tel.ReportWarning(report_fetch_relogin, loginErr, "nickname", nickname)
			err = newFetchError(AuthExpired, nickname, errors.Join(err, loginErr))
		} else {
			record, err = f.fetchProfile(ctx, nickname)
		}
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(KindOf(err)))
		return Record{}, err
	}
	return record, nil
}

func (f *Fetcher) profileUrl(nickname string) string {
	return f.client.BaseUrl.JoinPath("users", nickname).String() + "/"
}

func (f *Fetcher) fetchProfile(ctx context.Context, nickname string) (Record, error) {
	endpoint := f.profileUrl(nickname)
	f.tel.ReportDebug(report_fetch_profile, endpoint)

	doc, pageUrl, err := f.getPage(ctx, nickname, endpoint)
	if err != nil {
		return Record{}, err
	}

	now := f.clock.Now()
	record, err := parseProfile(doc, pageUrl, now)
	if err != nil {
		f.tel.ReportWarning(report_fetch_profile, err, "nickname", nickname)
		return Record{}, newFetchError(ParseError, nickname, err)
	}
	record.Nickname = nickname
	record.ProfileLink = endpoint
	record.ScrapedAt = now

	if record.Posts != "" && record.Posts != "0" {
		postUrl, postTime, err := f.fetchRecentPost(ctx, nickname)
		if err != nil {
			f.tel.ReportWarning(report_fetch_recent_post, err, "nickname", nickname)
		}
		record.LastPostUrl = postUrl
		record.LastPostTime = postTime
	}

	return record, nil
}

func (f *Fetcher) fetchRecentPost(ctx context.Context, nickname string) (string, string, error) {
	endpoint := f.client.BaseUrl.JoinPath("profile", "public", nickname).String()
	doc, pageUrl, err := f.getPage(ctx, nickname, endpoint)
	if err != nil {
		return "", "", err
	}
	postUrl, postTime := parseRecentPost(doc, pageUrl, f.clock.Now())
	return postUrl, postTime, nil
}

// getPage requests a page and classifies every way it can go wrong.
func (f *Fetcher) getPage(ctx context.Context, nickname, endpoint string) (*goquery.Document, *url.URL, error) {
	res, err := f.client.Http.R().
		SetContext(ctx).
		Get(endpoint)
	if err != nil {
		return nil, nil, newFetchError(NetworkError, nickname, err)
	}

	pageUrl := finalUrl(res)
	if isLoginUrl(pageUrl) {
		return nil, nil, newFetchError(AuthExpired, nickname, fmt.Errorf("redirected to login page"))
	}

	switch code := res.StatusCode(); {
	case code == http.StatusNotFound:
		return nil, nil, newFetchError(NotFound, nickname, fmt.Errorf("profile %s does not exist", nickname))
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return nil, nil, newFetchError(AuthExpired, nickname, fmt.Errorf("status %d", code))
	case code < 200 || code >= 300:
		return nil, nil, newFetchError(NetworkError, nickname, fmt.Errorf("status %d", code))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, nil, newFetchError(ParseError, nickname, err)
	}
	if pageUrl == nil {
		pageUrl, _ = url.Parse(endpoint)
	}
	if isMissingUserPage(doc) {
		return nil, nil, newFetchError(NotFound, nickname, fmt.Errorf("profile %s does not exist", nickname))
	}
	return doc, pageUrl, nil
}
