package risks

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityBands(t *testing.T) {
	cases := []struct {
		rating int
		want   string
	}{
		{1, SeverityLow},
		{2, SeverityLow},
		{3, SeverityLow},
		{4, SeverityModerate},
		{6, SeverityModerate},
		{7, SeverityHigh},
		{9, SeverityHigh},
		{12, SeverityHigh},
		{13, SeveritySevere},
		{16, SeveritySevere},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SeverityFor(tc.rating), "rating %d", tc.rating)
	}
}

func TestRatingFor(t *testing.T) {
	assert.Equal(t, 1, RatingFor(1, 1))
	assert.Equal(t, 12, RatingFor(3, 4))
	assert.Equal(t, 16, RatingFor(4, 4))
}

func TestValidateScores(t *testing.T) {
	assert.NoError(t, ValidateScores(1, 1))
	assert.NoError(t, ValidateScores(4, 4))
	assert.Error(t, ValidateScores(0, 1))
	assert.Error(t, ValidateScores(5, 1))
	assert.Error(t, ValidateScores(1, 0))
	assert.Error(t, ValidateScores(1, 5))
}

func TestParseCell(t *testing.T) {
	l, i, ok := ParseCell("3,4")
	assert.True(t, ok)
	assert.Equal(t, 3, l)
	assert.Equal(t, 4, i)

	l, i, ok = ParseCell(" 2 , 2 ")
	assert.True(t, ok)
	assert.Equal(t, 2, l)
	assert.Equal(t, 2, i)

	for _, bad := range []string{"", "3", "3,4,5", "a,b", "0,1", "5,1", "1,0", "1,5"} {
		_, _, ok := ParseCell(bad)
		assert.False(t, ok, "%q should not parse", bad)
	}
}

func TestBandForOutOfRange(t *testing.T) {
	assert.Equal(t, SeveritySevere, BandFor(99).Name)
}
