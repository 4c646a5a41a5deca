// Package auth handles imageboard credentials: validating them against the
// site, caching them locally, and exposing the authenticated user's
// blacklist to the filter.
package auth

import (
	"context"
	"strings"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
	"boorudl/pkg/sites"
)

// User is the profile snapshot fetched when credentials validate.
type User struct {
	ID              uint64
	Name            string
	BlacklistedTags []string
}

// Credentials ties a username and API key to one imageboard, together with
// the profile snapshot fetched at validation time.
type Credentials struct {
	Imageboard string
	Username   string
	APIKey     string
	User       User
}

// BlacklistTags returns the user's blacklist as a tag set for the filter.
func (c *Credentials) BlacklistTags() post.Tags {
	return post.TagSet(c.User.BlacklistedTags)
}

// profile is the raw schema of the danbooru and e621 profile endpoints. Both
// serve the blacklist as one newline-separated string.
type profile struct {
	ID              *uint64 `json:"id"`
	Name            string  `json:"name"`
	BlacklistedTags string  `json:"blacklisted_tags"`
}

// Authenticate validates the credentials against the site's profile endpoint
// and returns them with the profile snapshot filled in.
func Authenticate(ctx context.Context, board sites.Imageboard, client *sites.Client, username, apiKey string, log logger.Logger) (*Credentials, error) {
	if log == nil {
		log = logger.GetLogger()
	}
	if !board.HasAuth() {
		return nil, errs.Authentication("this imageboard does not support authentication", nil)
	}
	if username == "" || apiKey == "" {
		return nil, errs.Authentication("username and API key are required", nil)
	}

	endpoint := board.AuthURL()
	if board == sites.E621 {
		endpoint += username + ".json"
	}

	client.SetBasicAuth(username, apiKey)

	var p profile
	if err := client.GetJSON(ctx, endpoint, nil, &p); err != nil {
		return nil, err
	}
	if p.ID == nil {
		return nil, errs.Authentication("site did not recognize the credentials", nil)
	}

	log.InfoWithFields("authenticated", map[string]interface{}{
		"source": board.String(),
		"user":   p.Name,
	})

	return &Credentials{
		Imageboard: board.String(),
		Username:   username,
		APIKey:     apiKey,
		User: User{
			ID:              *p.ID,
			Name:            p.Name,
			BlacklistedTags: splitBlacklist(p.BlacklistedTags),
		},
	}, nil
}

// splitBlacklist parses the newline-separated blacklist string of the
// profile endpoints. Blank lines and comment lines are skipped.
func splitBlacklist(s string) []string {
	var tags []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		tags = append(tags, line)
	}
	return tags
}
