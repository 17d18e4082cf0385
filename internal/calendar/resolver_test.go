package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	epoch = time.Date(1995, time.June, 16, 0, 0, 0, 0, time.UTC)
	today = time.Date(2024, time.May, 17, 0, 0, 0, 0, time.UTC)
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		d         time.Time
		wantStart time.Time
		wantEnd   time.Time
	}{
		{"past month", date(2024, time.February, 10), date(2024, time.February, 1), date(2024, time.February, 29)},
		{"past month last day", date(2023, time.December, 31), date(2023, time.December, 1), date(2023, time.December, 31)},
		{"current month", date(2024, time.May, 3), date(2024, time.May, 1), date(2024, time.May, 17)},
		{"epoch month", date(1995, time.June, 30), date(1995, time.June, 16), date(1995, time.June, 30)},
		{"epoch month first day", date(1995, time.June, 1), date(1995, time.June, 16), date(1995, time.June, 30)},
		{"month after epoch", date(1995, time.July, 4), date(1995, time.July, 1), date(1995, time.July, 31)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Resolve(tt.d, today, epoch)
			assert.Equal(t, tt.wantStart, r.Start)
			assert.Equal(t, tt.wantEnd, r.End)
		})
	}
}

func TestResolve_SameWindowForEveryDayOfMonth(t *testing.T) {
	want := Resolve(date(2021, time.April, 1), today, epoch)
	for day := 2; day <= 30; day++ {
		assert.Equal(t, want, Resolve(date(2021, time.April, day), today, epoch))
	}
}

func TestMonth_BucketID(t *testing.T) {
	assert.Equal(t, "apod_2024_5", Month{Year: 2024, Month: time.May}.BucketID())
	assert.Equal(t, "apod_1995_12", Month{Year: 1995, Month: time.December}.BucketID())
}

func TestMonth_NextPrevAcrossYears(t *testing.T) {
	dec := Month{Year: 2023, Month: time.December}
	assert.Equal(t, Month{Year: 2024, Month: time.January}, dec.Next())
	assert.Equal(t, dec, Month{Year: 2024, Month: time.January}.Prev())
	assert.True(t, dec.Before(dec.Next()))
	assert.True(t, dec.Next().After(dec))
	assert.False(t, dec.Before(dec))
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-02")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2024, Month: time.February}, m)
	assert.Equal(t, "2024-02", m.String())

	_, err = ParseMonth("2024/02")
	assert.Error(t, err)
}

func TestBounds(t *testing.T) {
	b := Bounds{Epoch: epoch, Today: today}

	_, ok := b.Prev(Month{Year: 1995, Month: time.June})
	assert.False(t, ok)

	prev, ok := b.Prev(Month{Year: 1995, Month: time.July})
	assert.True(t, ok)
	assert.Equal(t, Month{Year: 1995, Month: time.June}, prev)

	_, ok = b.Next(Month{Year: 2024, Month: time.May})
	assert.False(t, ok)

	next, ok := b.Next(Month{Year: 2024, Month: time.April})
	assert.True(t, ok)
	assert.Equal(t, Month{Year: 2024, Month: time.May}, next)

	assert.False(t, b.Contains(Month{Year: 1995, Month: time.May}))
	assert.False(t, b.Contains(Month{Year: 2024, Month: time.June}))
}
