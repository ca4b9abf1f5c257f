package model

// FixedHabitKeys is the full per-user habit catalog, one boolean column each on
// the daily entry row.
var FixedHabitKeys = []string{
	"bible_reading",
	"bible_study",
	"dissertation_work",
	"workout",
	"general_reading",
	"shower",
	"daily_text",
	"meeting_attended",
	"prepare_meeting",
	"family_worship",
	"writing",
	"scientific_writing",
}

// SharedHabitKeys is the subset compared across the couple view.
var SharedHabitKeys = []string{
	"bible_reading",
	"meeting_attended",
	"prepare_meeting",
	"workout",
	"shower",
	"daily_text",
	"family_worship",
}

// Habit keys whose "valid weekday" set is user-configurable.
const (
	HabitMeetingAttended = "meeting_attended"
	HabitPrepareMeeting  = "prepare_meeting"
	HabitFamilyWorship   = "family_worship"
)

// IsFixedHabit reports whether key names a column of the entries table.
func IsFixedHabit(key string) bool {
	for _, k := range FixedHabitKeys {
		if k == key {
			return true
		}
	}
	return false
}

// MoodCategories is the fixed mood palette, in moodboard row-value order.
var MoodCategories = []string{"Paz", "Felicidade", "Ansiedade", "Medo", "Raiva", "Neutro"}

// legacy English labels that older rows may still carry.
var legacyMoodAliases = map[string]string{
	"Anger":   "Raiva",
	"Anxiety": "Ansiedade",
	"Sadness": "Medo",
	"Joy":     "Felicidade",
	"Calm":    "Paz",
	"Neutral": "Neutro",
}

// CanonicalMood maps legacy mood labels onto the current palette.
func CanonicalMood(v string) string {
	if mapped, ok := legacyMoodAliases[v]; ok {
		return mapped
	}
	return v
}
