// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package config

import (
	"fmt"
	"net/url"
)

// validateHTTPURL validates a base URL: http/https scheme, host present,
// no path or query.
func validateHTTPURL(rawURL, fieldName string) error {
	parsedURL, err := parseServiceURL(rawURL, fieldName)
	if err != nil {
		return err
	}
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsedURL.Path)
	}
	if parsedURL.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsedURL.RawQuery)
	}
	return nil
}

// validateServiceURL validates an API root that may carry a version path
// such as https://openrouter.ai/api/v1.
func validateServiceURL(rawURL, fieldName string) error {
	parsedURL, err := parseServiceURL(rawURL, fieldName)
	if err != nil {
		return err
	}
	if parsedURL.RawQuery != "" || parsedURL.Fragment != "" {
		return fmt.Errorf("%s should not contain query parameters or fragments", fieldName)
	}
	return nil
}

func parseServiceURL(rawURL, fieldName string) (*url.URL, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%s failed to parse URL: %w", fieldName, err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsedURL.Scheme)
	}
	if parsedURL.Host == "" {
		return nil, fmt.Errorf("%s host is required", fieldName)
	}
	return parsedURL, nil
}
