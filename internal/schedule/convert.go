package schedule

import "time"

// ToReferenceZone converts a weekly slot in src to the weekday and time of day it falls on in ref.
// DST offsets are those in effect on the first date on or after anchor that has the given weekday.
func ToReferenceZone(tod TimeOfDay, wd time.Weekday, src, ref *time.Location, anchor time.Time) (time.Weekday, TimeOfDay) {
	a := anchor.In(src)
	ahead := int(wd - a.Weekday())
	if ahead < 0 {
		ahead += 7
	}
	t := time.Date(a.Year(), a.Month(), a.Day()+ahead, tod.Hour, tod.Minute, 0, 0, src).In(ref)
	return t.Weekday(), TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
}

// ConvertToReference is ToReferenceZone over unparsed config values.
func ConvertToReference(timeOfDay, weekday, zone string, ref *time.Location, anchor time.Time) (time.Weekday, TimeOfDay, error) {
	src, err := LoadLocation(zone)
	if err != nil {
		return 0, TimeOfDay{}, err
	}
	wd, err := ParseWeekday(weekday)
	if err != nil {
		return 0, TimeOfDay{}, err
	}
	tod, err := ParseTimeOfDay(timeOfDay)
	if err != nil {
		return 0, TimeOfDay{}, err
	}
	rwd, rtod := ToReferenceZone(tod, wd, src, ref, anchor)
	return rwd, rtod, nil
}
