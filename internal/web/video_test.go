package web

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestVideoID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
		want string
		ok   bool
	}{
		{name: "watch", url: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", want: "dQw4w9WgXcQ", ok: true},
		{name: "watch with extra params", url: "https://youtube.com/watch?feature=share&v=dQw4w9WgXcQ&t=42", want: "dQw4w9WgXcQ", ok: true},
		{name: "mobile", url: "https://m.youtube.com/watch?v=abc_DEF-123", want: "abc_DEF-123", ok: true},
		{name: "short link", url: "https://youtu.be/dQw4w9WgXcQ?si=xyz", want: "dQw4w9WgXcQ", ok: true},
		{name: "shorts", url: "https://www.youtube.com/shorts/aBcDeFgHiJk", want: "aBcDeFgHiJk", ok: true},
		{name: "embed", url: "https://www.youtube.com/embed/dQw4w9WgXcQ", want: "dQw4w9WgXcQ", ok: true},
		{name: "surrounding whitespace", url: "  https://youtu.be/dQw4w9WgXcQ  ", want: "dQw4w9WgXcQ", ok: true},
		{name: "live", url: "https://www.youtube.com/live/dQw4w9WgXcQ?feature=share", want: "dQw4w9WgXcQ", ok: true},
		{name: "channel page", url: "https://www.youtube.com/@gophers"},
		{name: "feed page", url: "https://www.youtube.com/feed/trending"},
		{name: "short link without id", url: "https://youtu.be/"},
		{name: "id too short", url: "https://www.youtube.com/watch?v=abc"},
		{name: "other host", url: "https://vimeo.com/123456789"},
		{name: "not a url", url: "dQw4w9WgXcQ"},
		{name: "empty", url: ""},
		{name: "watch without id", url: "https://www.youtube.com/watch"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := VideoID(tc.url)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEmbedURL(t *testing.T) {
	t.Parallel()

	require.Equal(t, "https://www.youtube.com/embed/dQw4w9WgXcQ", EmbedURL("https://youtu.be/dQw4w9WgXcQ"))
	require.Empty(t, EmbedURL("https://example.com/video.mp4"))
}

func TestFormatSeconds(t *testing.T) {
	t.Parallel()

	require.Equal(t, "0.00", FormatSeconds(0))
	require.Equal(t, "0.00", FormatSeconds(-time.Second))
	require.Equal(t, "12.35", FormatSeconds(12346*time.Millisecond))
	require.Equal(t, "90.00", FormatSeconds(90*time.Second))
}
