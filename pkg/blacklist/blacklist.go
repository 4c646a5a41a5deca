// Package blacklist removes unwanted posts from an extraction run.
//
// Three tag tiers stack: a global set, a per-source set (both from the
// blacklist config file) and the authenticated user's own blacklist. On top
// of the tag tiers the filter enforces the run's rating, video and extension
// constraints.
package blacklist

import (
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// Options describe which constraints are active for one run.
type Options struct {
	// Disabled turns the filter into an identity pass.
	Disabled bool

	// Source selects the per-source tier from the config file.
	Source string

	// UserTags is the authenticated user's blacklist, empty when the run
	// is anonymous or the site has no per-user blacklist.
	UserTags post.Tags

	// SafeMode restricts results to safe-rated posts.
	SafeMode bool

	// ExcludeVideos drops video and animated posts.
	ExcludeVideos bool

	// ForcedExtension drops every post whose extension differs, "" for no
	// constraint.
	ForcedExtension string
}

// Filter is the immutable per-run snapshot of all active constraints.
type Filter struct {
	disabled        bool
	tags            post.Tags
	allowedRatings  map[post.Rating]bool
	excludeVideos   bool
	forcedExtension string
	logger          logger.Logger
}

// New builds the filter for one run, merging the config file tiers with the
// run options. A nil file means no global or per-source tier.
func New(file *File, opts Options, log logger.Logger) *Filter {
	if log == nil {
		log = logger.GetLogger()
	}

	f := &Filter{
		disabled:        opts.Disabled,
		tags:            make(post.Tags),
		excludeVideos:   opts.ExcludeVideos,
		forcedExtension: opts.ForcedExtension,
		logger:          log,
	}

	if file != nil {
		for tag := range post.TagSet(file.Global) {
			f.tags[tag] = struct{}{}
		}
		for tag := range post.TagSet(file.Sources[opts.Source]) {
			f.tags[tag] = struct{}{}
		}
	}
	for tag := range opts.UserTags {
		f.tags[tag] = struct{}{}
	}

	if opts.SafeMode {
		f.allowedRatings = map[post.Rating]bool{post.RatingSafe: true}
	}

	return f
}

// Filter removes the posts matching any active constraint. Survivors keep
// their relative order; removed plus the survivor count always equals the
// input length.
func (f *Filter) Filter(posts []post.Post) (uint64, []post.Post) {
	if f.disabled {
		return 0, posts
	}

	var removed uint64
	kept := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		if f.excludes(&p) {
			removed++
			continue
		}
		kept = append(kept, p)
	}

	if removed > 0 {
		f.logger.DebugWithFields("posts filtered out", map[string]interface{}{
			"removed": removed,
			"kept":    len(kept),
		})
	}

	return removed, kept
}

func (f *Filter) excludes(p *post.Post) bool {
	if p.Tags.Intersects(f.tags) {
		return true
	}
	if f.allowedRatings != nil && !f.allowedRatings[p.Rating] {
		return true
	}
	if f.excludeVideos && p.IsAnimated() {
		return true
	}
	if f.forcedExtension != "" && p.Extension != f.forcedExtension {
		return true
	}
	return false
}
