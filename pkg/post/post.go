// Package post defines the normalized representation of an imageboard post and
// the result queue produced by one extraction run.
//
// Most imageboard APIs share a common core of information about the files we
// want to download; a Post carries exactly that core, regardless of which site
// it came from.
package post

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Tags is an unordered set of tag strings. It serializes as a sorted JSON
// array so archive manifests stay diffable.
type Tags map[string]struct{}

// MarshalJSON renders the set as a sorted array.
func (t Tags) MarshalJSON() ([]byte, error) {
	list := make([]string, 0, len(t))
	for tag := range t {
		list = append(list, tag)
	}
	sort.Strings(list)
	return json.Marshal(list)
}

// UnmarshalJSON accepts the array form produced by MarshalJSON.
func (t *Tags) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*t = TagSet(list)
	return nil
}

// Contains reports whether tag is in the set.
func (t Tags) Contains(tag string) bool {
	_, ok := t[tag]
	return ok
}

// Intersects reports whether the two sets share at least one tag.
func (t Tags) Intersects(other Tags) bool {
	a, b := t, other
	if len(b) < len(a) {
		a, b = b, a
	}
	for tag := range a {
		if _, ok := b[tag]; ok {
			return true
		}
	}
	return false
}

// Post is the normalized record of a single downloadable file. It is immutable
// once constructed by a site adapter.
type Post struct {
	// ID is the post number assigned by the imageboard. Unique within one
	// site's result set; posts order and compare by ID alone.
	ID uint64 `json:"id"`

	// URL points directly at the original media file.
	URL string `json:"url"`

	// MD5 is the hex digest of the file as reported by the API. Used to
	// verify files already on disk instead of hashing during download.
	MD5 string `json:"md5"`

	// Extension is the original file extension, without the dot. Sites that
	// omit the field get it extracted from the URL instead.
	Extension string `json:"extension"`

	Rating Rating `json:"rating"`

	// Tags associated with the post, used by the blacklist filter.
	Tags Tags `json:"tags"`
}

// Filename returns the destination name for the post. With byID the name is the
// post number, otherwise the MD5 digest.
func (p *Post) Filename(byID bool) string {
	if byID {
		return fmt.Sprintf("%d.%s", p.ID, p.Extension)
	}
	return fmt.Sprintf("%s.%s", p.MD5, p.Extension)
}

// IsAnimated reports whether the post's extension denotes a video or animated
// file. Used by the filter when videos are excluded from a run.
func (p *Post) IsAnimated() bool {
	switch p.Extension {
	case "webm", "mp4", "gif", "zip", "swf":
		return true
	}
	return false
}

// TagSet builds a tag set from a plain slice.
func TagSet(tags []string) Tags {
	set := make(Tags, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		set[t] = struct{}{}
	}
	return set
}

// SplitTagString builds a tag set from the space-separated tag strings most
// imageboard APIs return.
func SplitTagString(s string) Tags {
	return TagSet(strings.Split(s, " "))
}

// ExtensionFromURL recovers the file extension from a direct media URL for
// sites that do not expose it as its own field.
func ExtensionFromURL(raw string) string {
	trimmed := raw
	if u, err := url.Parse(raw); err == nil {
		trimmed = u.Path
	}
	idx := strings.LastIndexByte(trimmed, '.')
	if idx < 0 || idx == len(trimmed)-1 {
		return ""
	}
	return trimmed[idx+1:]
}

// Queue is the ordered result set of one extraction run: all collected posts,
// the tags they were searched with, and the authenticated user's blacklist in
// case the site supports one (empty otherwise).
//
// Posts are kept sorted strictly descending by ID. The queue is produced once
// by the extractor and read-only downstream.
type Queue struct {
	Posts []Post
	Tags  []string

	// UserBlacklist holds the authenticated user's blacklisted tags when the
	// source supports per-user blacklists.
	UserBlacklist Tags
}

// TagString joins the queue's tags the way they appear in paths and archive
// names.
func (q *Queue) TagString() string {
	return strings.Join(q.Tags, " ")
}

// Sort orders the posts descending by ID.
func (q *Queue) Sort() {
	sort.Slice(q.Posts, func(i, j int) bool {
		return q.Posts[i].ID > q.Posts[j].ID
	})
}

// Limit truncates the queue to at most n posts. A non-positive n leaves the
// queue untouched.
func (q *Queue) Limit(n int) {
	if n > 0 && len(q.Posts) > n {
		q.Posts = q.Posts[:n]
	}
}

// Newest returns the post with the highest ID, or nil for an empty queue.
func (q *Queue) Newest() *Post {
	var newest *Post
	for i := range q.Posts {
		if newest == nil || q.Posts[i].ID > newest.ID {
			newest = &q.Posts[i]
		}
	}
	return newest
}
