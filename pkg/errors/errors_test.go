package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	cause := stderrors.New("connection refused")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "message only",
			err:  &Error{Kind: KindZeroPosts, Message: "nothing matched"},
			want: "zero_posts: nothing matched",
		},
		{
			name: "cause only",
			err:  Connection(cause),
			want: "connection: connection refused",
		},
		{
			name: "message and cause",
			err:  IO("failed to write file", cause),
			want: "io: failed to write file: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestErrorIsMatchesOnKind(t *testing.T) {
	err := &Error{Kind: KindZeroPosts, Message: "different message"}
	assert.ErrorIs(t, err, ErrZeroPosts)
	assert.NotErrorIs(t, err, ErrNoPostsInQueue)

	wrapped := IO("outer", &Error{Kind: KindNoPostsInQueue})
	assert.ErrorIs(t, wrapped, ErrNoPostsInQueue)
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("disk full")
	err := IO("failed to save", cause)
	assert.ErrorIs(t, err, cause)
}

func TestTooManyTags(t *testing.T) {
	err := TooManyTags(5, 2)
	assert.Equal(t, KindTooManyTags, err.Kind)
	assert.Contains(t, err.Error(), "5")
	assert.Contains(t, err.Error(), "2")
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindConnection, KindOf(Connection(stderrors.New("x"))))
	assert.Equal(t, Kind(""), KindOf(stderrors.New("foreign")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(KindConnection))
	assert.False(t, IsRetryable(KindAuthentication))
	assert.False(t, IsRetryable(KindTooManyTags))
	assert.False(t, IsRetryable(KindInvalidServerResponse))
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(500))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(200))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(403))
}
