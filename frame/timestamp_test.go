package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyModifiers_TimestampLaw(t *testing.T) {
	base := time.Date(2026, 7, 31, 12, 34, 56, 0, time.UTC)

	t.Run("absent modulus is identity, absent offset is zero", func(t *testing.T) {
		got := ApplyModifiers(base, Modifiers{})
		assert.True(t, got.Equal(base))
	})

	t.Run("modulus floors then offset adds", func(t *testing.T) {
		m := 10 * time.Minute
		d := 90 * time.Second
		got := ApplyModifiers(base, Modifiers{TimeModulus: m, TimeOffset: d})

		floored := time.Unix(0, base.UnixNano()-base.UnixNano()%m.Nanoseconds()).UTC()
		want := floored.Add(d)
		assert.True(t, got.Equal(want))
	})

	t.Run("offset only", func(t *testing.T) {
		d := -5 * time.Second
		got := ApplyModifiers(base, Modifiers{TimeOffset: d})
		assert.True(t, got.Equal(base.Add(d)))
	})
}
