package dispatch

import (
	"github.com/jellydator/ttlcache/v3"
	"github.com/rotblauer/triptrack/params"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TokenSource yields the anti-forgery token the server wants with every update.
// ok is false when there is no token; that is a dispatch-time error, not a crash.
type TokenSource interface {
	Token() (token string, ok bool)
}

// StaticToken is a token known up front.
type StaticToken string

func (t StaticToken) Token() (string, bool) {
	return string(t), t != ""
}

// SplitCookieHeader splits a Cookie header style string ("a=1; csrftoken=abc")
// into cookies, raw values as given. Parts without a name are skipped.
func SplitCookieHeader(header string) []*http.Cookie {
	var cookies []*http.Cookie
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || name == "" {
			continue
		}
		cookies = append(cookies, &http.Cookie{Name: name, Value: value})
	}
	return cookies
}

// ParseCookie finds a named cookie in a Cookie header style string
// and returns its URL-decoded value.
func ParseCookie(header, name string) (string, bool) {
	for _, c := range SplitCookieHeader(header) {
		if c.Name != name {
			continue
		}
		v, err := url.PathUnescape(c.Value)
		if err != nil {
			v = c.Value
		}
		return v, v != ""
	}
	return "", false
}

// CookieHeaderToken reads the CSRF cookie from a raw cookie string, eg. one pasted from a browser.
type CookieHeaderToken string

func (h CookieHeaderToken) Token() (string, bool) {
	return ParseCookie(string(h), params.CSRFCookieName)
}

// CookieToken reads the token from the cookies a jar holds for URL.
// It sees whatever the server last set, so it tracks token rotation.
type CookieToken struct {
	Jar  http.CookieJar
	URL  *url.URL
	Name string
}

func NewCookieToken(jar http.CookieJar, u *url.URL) *CookieToken {
	return &CookieToken{Jar: jar, URL: u, Name: params.CSRFCookieName}
}

func (c *CookieToken) Token() (string, bool) {
	if c == nil || c.Jar == nil || c.URL == nil {
		return "", false
	}
	name := c.Name
	if name == "" {
		name = params.CSRFCookieName
	}
	for _, ck := range c.Jar.Cookies(c.URL) {
		if ck.Name != name {
			continue
		}
		v, err := url.PathUnescape(ck.Value)
		if err != nil {
			v = ck.Value
		}
		return v, v != ""
	}
	return "", false
}

// CachedToken remembers a source's token for a while.
// Absence is never cached, so a token that shows up later is picked up on the next call.
type CachedToken struct {
	source TokenSource
	cache  *ttlcache.Cache[string, string]
}

const cachedTokenKey = "token"

func NewCachedToken(source TokenSource, ttl time.Duration) *CachedToken {
	return &CachedToken{
		source: source,
		cache: ttlcache.New[string, string](
			ttlcache.WithTTL[string, string](ttl),
			ttlcache.WithDisableTouchOnHit[string, string](),
		),
	}
}

func (c *CachedToken) Token() (string, bool) {
	if item := c.cache.Get(cachedTokenKey); item != nil {
		return item.Value(), true
	}
	v, ok := c.source.Token()
	if ok {
		c.cache.Set(cachedTokenKey, v, ttlcache.DefaultTTL)
	}
	return v, ok
}

// Invalidate drops the cached token, eg. after the server rejected it.
func (c *CachedToken) Invalidate() {
	c.cache.Delete(cachedTokenKey)
}
