package domain

import "time"

// Booking calendar parameters. Viewings are half-hour visits on whole-hour
// boundaries, with a buffer around each one so the owner has travel time
// between visits.
const (
	SlotDuration   = 30 * time.Minute
	ConflictBuffer = 15 * time.Minute

	// Business hours: the first slot of a day starts at 07:00, the last
	// at 19:00, ending 19:30, inside the 20:00 close.
	BusinessDayStartHour = 7
	BusinessDayLastSlot  = 19

	// Slots are offered from tomorrow through fourteen days out. Same-day
	// slots are never offered.
	HorizonDays = 14
)

// HasConflict reports whether a candidate interval collides with any
// blocking appointment in existing. The candidate is expanded by buffer on
// both sides and tested for raw overlap against each appointment's
// [StartTime, EndTime); the buffer is applied once, on the candidate only.
func HasConflict(candidateStart, candidateEnd time.Time, existing []Appointment, buffer time.Duration) bool {
	windowStart := candidateStart.Add(-buffer)
	windowEnd := candidateEnd.Add(buffer)
	for _, appt := range existing {
		if !appt.Status.Blocking() {
			continue
		}
		if windowStart.Before(appt.EndTime) && windowEnd.After(appt.StartTime) {
			return true
		}
	}
	return false
}

// AvailableSlots returns the start times an owner can still be booked at,
// in ascending order. The horizon runs from the calendar day after now
// through HorizonDays days out, with one candidate per whole hour from
// BusinessDayStartHour to BusinessDayLastSlot. existing should hold every
// blocking appointment of the owner inside the horizon; the caller queries
// it once, not per slot.
func AvailableSlots(now time.Time, existing []Appointment) []time.Time {
	firstDay := startOfDay(now.UTC()).AddDate(0, 0, 1)

	slots := make([]time.Time, 0, HorizonDays*(BusinessDayLastSlot-BusinessDayStartHour+1))
	for dayOffset := 0; dayOffset < HorizonDays; dayOffset++ {
		day := firstDay.AddDate(0, 0, dayOffset)
		for hour := BusinessDayStartHour; hour <= BusinessDayLastSlot; hour++ {
			start := day.Add(time.Duration(hour) * time.Hour)
			end := start.Add(SlotDuration)
			if !HasConflict(start, end, existing, ConflictBuffer) {
				slots = append(slots, start)
			}
		}
	}
	return slots
}

// HorizonBounds returns the query window covering every candidate slot the
// generator can produce for now, buffer included.
func HorizonBounds(now time.Time) (time.Time, time.Time) {
	firstDay := startOfDay(now.UTC()).AddDate(0, 0, 1)
	lastSlotEnd := firstDay.AddDate(0, 0, HorizonDays-1).
		Add(time.Duration(BusinessDayLastSlot)*time.Hour + SlotDuration)
	return firstDay.Add(-ConflictBuffer), lastSlotEnd.Add(ConflictBuffer)
}

func startOfDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
