package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "trims folds and drops empties, keeps duplicates",
			raw:  " Foo, bar ,FOO,  , baz ",
			want: []string{"foo", "bar", "foo", "baz"},
		},
		{
			name: "empty input",
			raw:  "",
			want: nil,
		},
		{
			name: "only separators",
			raw:  ", , ,",
			want: nil,
		},
		{
			name: "single tag",
			raw:  "Analytics",
			want: []string{"analytics"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTags(tt.raw))
		})
	}
}

func TestNormalizeTags_Cap(t *testing.T) {
	raw := strings.Repeat("tag,", 15)
	tags := NormalizeTags(raw)
	assert.Len(t, tags, MaxTags)
}

func TestJoinSplitTags_RoundTrip(t *testing.T) {
	tags := []string{"foo", "bar", "foo"}
	assert.Equal(t, tags, SplitTags(JoinTags(tags)))
	assert.Nil(t, SplitTags(""))
}
