package request_test

import (
	"net/url"
	"testing"

	"github.com/serroba/annotated-docs/internal/highlight"
	"github.com/serroba/annotated-docs/internal/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		expected *int
	}{
		{"12", ptr(12)},
		{" 7 ", ptr(7)},
		{"0", ptr(0)},
		{"-3", ptr(-3)},
		{"", nil},
		{"abc", nil},
		{"12abc", nil},
		{"1.5", nil},
		{"NaN", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, request.Number(tt.in))
		})
	}
}

func ptr(n int) *int { return &n }

func TestParse(t *testing.T) {
	t.Parallel()

	q, err := url.ParseQuery("section=intro&thread=4&from=10&to=22&version=v1&mode=draft")
	require.NoError(t, err)

	p := request.Parse(q)

	assert.Equal(t, "intro", p.SectionID)
	assert.Equal(t, ptr(4), p.Thread)
	assert.Equal(t, ptr(10), p.From)
	assert.Equal(t, ptr(22), p.To)
	assert.Equal(t, "v1", p.Version)
	assert.True(t, p.Draft)

	assert.Equal(t, &highlight.Permalink{From: 10, To: 22, Version: "v1"}, p.Permalink())
}

func TestParse_Malformed(t *testing.T) {
	t.Parallel()

	q, err := url.ParseQuery("thread=first&from=ten&to=22")
	require.NoError(t, err)

	p := request.Parse(q)

	assert.Nil(t, p.Thread)
	assert.Nil(t, p.From)
	assert.Empty(t, p.SectionID)
	assert.False(t, p.Draft)
	assert.Nil(t, p.Permalink())
}

func TestFromMap(t *testing.T) {
	t.Parallel()

	p := request.FromMap(map[string]string{"from": "1", "to": "5", "section": ""})

	assert.Equal(t, &highlight.Permalink{From: 1, To: 5}, p.Permalink())
	assert.Empty(t, p.SectionID)
}
