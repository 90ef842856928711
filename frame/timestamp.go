package frame

import "time"

// Modifiers holds a task's optional timestamp adjustments.
type Modifiers struct {
	TimeOffset  time.Duration // signed; zero value is identity
	TimeModulus time.Duration // must be > 0 when set; zero means "absent"
}

// ApplyModifiers computes the frame timestamp from a base instant per
// the timestamp modifier law: modulus is applied
// first (floor to the nearest multiple since the Unix epoch), then offset
// is added. Absent modulus is the identity; absent offset adds zero.
func ApplyModifiers(base time.Time, mods Modifiers) time.Time {
	t := base
	if mods.TimeModulus > 0 {
		since := t.UnixNano()
		m := mods.TimeModulus.Nanoseconds()
		floored := since - since%m
		if since < 0 && since%m != 0 {
			floored -= m
		}
		t = time.Unix(0, floored).UTC()
	}
	return t.Add(mods.TimeOffset)
}
