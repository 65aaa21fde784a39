// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Download fetches an object from a private bucket. It returns the bytes
// and the stored content type.
func (c *Client) Download(ctx context.Context, bucket, objectPath string) ([]byte, string, error) {
	if bucket == "" {
		return nil, "", fmt.Errorf("supabase: bucket is required")
	}
	clean, err := cleanObjectPath(objectPath)
	if err != nil {
		return nil, "", err
	}

	u := c.baseURL + "/storage/v1/object/authenticated/" + url.PathEscape(bucket) + "/" + clean
	h := http.Header{}
	h.Set("Accept", "*/*")
	resp, err := c.do(ctx, "storage:download", http.MethodGet, u, nil, h)
	if err != nil {
		return nil, "", err
	}
	contentType := resp.header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(resp.body)
	}
	return resp.body, contentType, nil
}

// DownloadAs fetches an object as the user owning accessToken, so the
// bucket's storage policies decide access instead of the service role.
func (c *Client) DownloadAs(ctx context.Context, accessToken, bucket, objectPath string) ([]byte, string, error) {
	if accessToken == "" {
		return nil, "", errors.New("supabase: access token is required for user downloads")
	}
	return c.WithToken(accessToken).Download(ctx, bucket, objectPath)
}

// cleanObjectPath escapes each segment and rejects traversal.
func cleanObjectPath(p string) (string, error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", fmt.Errorf("%w: path is required", ErrInvalidPath)
	}
	segments := strings.Split(p, "/")
	for i, s := range segments {
		if s == "" || s == "." || s == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, p)
		}
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/"), nil
}
