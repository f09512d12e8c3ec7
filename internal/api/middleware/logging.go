// Copyright (c) 2024, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package middleware

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const redacted = "[REDACTED]"

var sensitiveParams = []string{
	"apikey",
	"api_key",
	"key",
	"token",
	"password",
	"secret",
}

// Logger returns a gin middleware for logging HTTP requests with zerolog.
// Successful requests are logged at debug so they stay out of the
// in-memory log view; server errors are logged at error.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()

		var event *zerolog.Event
		switch {
		case len(c.Errors) > 0:
			event = log.Error().Err(c.Errors.Last())
		case status >= http.StatusInternalServerError:
			event = log.Error()
		default:
			event = log.Debug()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", redactedPath(c.Request.URL)).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("ip", c.ClientIP()).
			Int("bytes", c.Writer.Size()).
			Msg("HTTP Request")
	}
}

// redactedPath returns the request path with sensitive query values masked.
func redactedPath(u *url.URL) string {
	if u.RawQuery == "" {
		return u.Path
	}

	params, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return u.Path
	}

	for param := range params {
		lower := strings.ToLower(param)
		for _, sensitive := range sensitiveParams {
			if strings.Contains(lower, sensitive) {
				params.Set(param, redacted)
				break
			}
		}
	}

	return u.Path + "?" + params.Encode()
}
