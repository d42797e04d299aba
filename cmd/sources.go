package cmd

import (
	"context"
	"errors"
	"fmt"
	"github.com/rotblauer/triptrack/device"
	"github.com/rotblauer/triptrack/dispatch"
	"github.com/rotblauer/triptrack/geo/sampler"
	"github.com/rotblauer/triptrack/params"
	"github.com/spf13/viper"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
)

// newDevice returns the location source the flags ask for.
func newDevice(ctx context.Context) (sampler.Device, error) {
	if path := viper.GetString("replay"); path != "" {
		samples, err := device.ReadTrackFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("read replay: %w", err)
		}
		slog.Info("Replaying track", "file", path, "samples", len(samples))
		return device.NewReplay(samples, viper.GetDuration("replay-interval"), viper.GetBool("replay-loop"))
	}
	lat, lng := viper.GetFloat64("lat"), viper.GetFloat64("lng")
	if !viper.IsSet("lat") && !viper.IsSet("lng") {
		return nil, errors.New("no location source: set --lat/--lng or --replay")
	}
	return device.NewStatic(lat, lng), nil
}

func newSampler(ctx context.Context) (*sampler.Sampler, error) {
	dev, err := newDevice(ctx)
	if err != nil {
		return nil, err
	}
	opts := params.DefaultSamplerOptions()
	opts.Timeout = viper.GetDuration("sampler-timeout")
	opts.EnableHighAccuracy = viper.GetBool("high-accuracy")
	return sampler.New(dev, opts), nil
}

// newClient returns an HTTP client carrying the --cookie cookies for the web app,
// and the token source to use with it.
func newClient(baseURL string) (*http.Client, dispatch.TokenSource, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, nil, err
	}
	cookies := dispatch.SplitCookieHeader(viper.GetString("cookie"))
	for _, c := range cookies {
		c.Path = "/"
	}
	jar.SetCookies(base, cookies)

	client := &http.Client{Jar: jar, Timeout: params.DefaultHTTPTimeout}

	var tokens dispatch.TokenSource = dispatch.NewCookieToken(jar, base)
	if t := viper.GetString("csrf-token"); t != "" {
		tokens = dispatch.StaticToken(t)
		jar.SetCookies(base, []*http.Cookie{{Name: params.CSRFCookieName, Value: t, Path: "/"}})
	}
	return client, dispatch.NewCachedToken(tokens, params.TokenCacheTTL), nil
}
