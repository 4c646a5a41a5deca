package post

// Rating is the content sensitivity classification an imageboard attaches to a post.
type Rating string

const (
	RatingSafe         Rating = "safe"
	RatingQuestionable Rating = "questionable"
	RatingExplicit     Rating = "explicit"
	RatingUnknown      Rating = "unknown"
)

// ParseRating maps the rating strings used by the supported imageboards onto a
// Rating. Both the single-letter form ("s", "q", "e") and the spelled-out form
// ("safe", "questionable", "explicit") appear in the wild.
func ParseRating(s string) Rating {
	switch s {
	case "s", "safe", "g", "general":
		return RatingSafe
	case "q", "questionable", "sensitive":
		return RatingQuestionable
	case "e", "explicit":
		return RatingExplicit
	default:
		return RatingUnknown
	}
}

func (r Rating) String() string {
	return string(r)
}

// Ratings returns all ratings in their canonical order. Used to lay out the
// per-rating directories inside an archive.
func Ratings() []Rating {
	return []Rating{RatingSafe, RatingQuestionable, RatingExplicit, RatingUnknown}
}
