// Copyright 2021-2023
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package prices

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/penny-vault/twrr/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultTimeout       = 30 * time.Second
	DefaultMaxRetries    = 3
	DefaultRetryInterval = 200 * time.Millisecond
	maxBodySize          = 32 << 20
)

// HTTPConfig bounds every request a provider makes
type HTTPConfig struct {
	Timeout       time.Duration
	MaxRetries    uint64
	RetryInterval time.Duration
}

// DefaultHTTPConfig returns the production request limits
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Timeout:       DefaultTimeout,
		MaxRetries:    DefaultMaxRetries,
		RetryInterval: DefaultRetryInterval,
	}
}

type httpFetcher struct {
	provider  string
	client    *http.Client
	cfg       HTTPConfig
	userAgent string
	header    http.Header
}

func newHTTPFetcher(provider string, cfg HTTPConfig) *httpFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}

	return &httpFetcher{
		provider:  provider,
		client:    &http.Client{Timeout: cfg.Timeout},
		cfg:       cfg,
		userAgent: "curl/8",
		header:    make(http.Header),
	}
}

// get downloads url, retrying transport errors, 429 and 5xx responses with exponential
// backoff. A 404 returns ErrNotFound immediately; other 4xx statuses are not retried.
func (f *httpFetcher) get(ctx context.Context, url string) ([]byte, error) {
	ctx, span := opentelemetry.Start(ctx, f.provider+".get", attribute.String("url", url))
	defer span.End()

	subLog := log.With().Str("Provider", f.provider).Str("Url", url).Logger()

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "*/*")
		for key, vals := range f.header {
			req.Header[key] = vals
		}

		resp, err := f.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			subLog.Debug().Err(err).Int("Attempt", attempt).Msg("request failed")
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			body = data
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(ErrNotFound)
		case resp.StatusCode == http.StatusTooManyRequests:
			subLog.Debug().Int("Attempt", attempt).Msg("rate limited")
			return ErrRateLimited
		case resp.StatusCode >= 500:
			subLog.Debug().Int("StatusCode", resp.StatusCode).Int("Attempt", attempt).Msg("server error")
			return fmt.Errorf("%w: %d", ErrInvalidStatus, resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("%w: %d", ErrInvalidStatus, resp.StatusCode))
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = f.cfg.RetryInterval
	policy.MaxInterval = 16 * f.cfg.RetryInterval
	policy.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(policy, f.cfg.MaxRetries), ctx))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			opentelemetry.Fail(span, err, "request failed")
		}
		return nil, err
	}

	span.SetAttributes(attribute.Int("bytes", len(body)), attribute.Int("attempts", attempt))
	return body, nil
}
