package cmd

import (
	"context"
	"github.com/rotblauer/triptrack/params"
	"github.com/spf13/viper"
	"net/url"
	"testing"
)

func TestNewClient_CookieToken(t *testing.T) {
	defer viper.Reset()
	viper.Set("cookie", "sessionid=abc; csrftoken=fromcookie")

	client, tokens, err := newClient("http://example.test")
	if err != nil {
		t.Fatal(err)
	}
	if tok, ok := tokens.Token(); !ok || tok != "fromcookie" {
		t.Errorf("unexpected token %q %v", tok, ok)
	}
	u, _ := url.Parse("http://example.test/drivers/")
	if n := len(client.Jar.Cookies(u)); n != 2 {
		t.Errorf("expected 2 jar cookies, got %d", n)
	}
}

func TestNewClient_StaticToken(t *testing.T) {
	defer viper.Reset()
	viper.Set("csrf-token", "flag")

	client, tokens, err := newClient("http://example.test")
	if err != nil {
		t.Fatal(err)
	}
	if tok, _ := tokens.Token(); tok != "flag" {
		t.Errorf("unexpected token %q", tok)
	}
	u, _ := url.Parse("http://example.test/")
	found := false
	for _, c := range client.Jar.Cookies(u) {
		if c.Name == params.CSRFCookieName && c.Value == "flag" {
			found = true
		}
	}
	if !found {
		t.Error("flag token should also be set as the csrf cookie")
	}
}

func TestNewDevice_NoSource(t *testing.T) {
	defer viper.Reset()
	if _, err := newDevice(context.Background()); err == nil {
		t.Error("expected error without a location source")
	}
}
