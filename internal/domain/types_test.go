package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResourceType(t *testing.T) {
	got, err := ParseResourceType("video")
	require.NoError(t, err)
	assert.Equal(t, TypeVideo, got)

	got, err = ParseResourceType(" Course ")
	require.NoError(t, err)
	assert.Equal(t, TypeCourse, got)

	_, err = ParseResourceType("podcast")
	assert.True(t, errors.Is(err, ErrInvalidType))
}

func TestFormatMinutes(t *testing.T) {
	cases := map[int]string{
		0:   "0m",
		45:  "45m",
		60:  "1h",
		90:  "1h 30m",
		125: "2h 5m",
	}
	for in, want := range cases {
		assert.Equal(t, want, FormatMinutes(in), "minutes=%d", in)
	}
}

func TestResourceInputValidate(t *testing.T) {
	valid := ResourceInput{Title: "Go tour", Type: TypeCourse, Category: "c1", EstimatedTime: 30}
	require.NoError(t, valid.Validate())

	bad := []ResourceInput{
		{Type: TypeCourse, Category: "c1"},
		{Title: "x", Type: "Podcast", Category: "c1"},
		{Title: "x", Type: TypeBook},
		{Title: "x", Type: TypeBook, Category: "c1", EstimatedTime: -1},
	}
	for _, in := range bad {
		assert.ErrorIs(t, in.Validate(), ErrInvalidInput)
	}
}

func TestResourceHelpers(t *testing.T) {
	r := Resource{}
	assert.Equal(t, "Uncategorized", r.CategoryName())
	r.Category = &Category{ID: "c1", Name: "Go"}
	assert.Equal(t, "Go", r.CategoryName())

	s := Summary{TotalResources: 5, CompletedResources: 2}
	assert.Equal(t, 3, s.InProgress())

	assert.Equal(t, "📚", ResourceType("Other").Icon())
}
