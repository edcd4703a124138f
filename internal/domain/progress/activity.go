package progress

import "github.com/innerlight-app/innerlight-progress/internal/domain/shared"

// ═══════════════════════════════════════════════════════════════════════════
// Activity Types and Stat Counters
// ═══════════════════════════════════════════════════════════════════════════

// StatKey names a monotonically increasing counter on the user record.
type StatKey string

// Known stat counters. Each is bumped by exactly one activity type.
const (
	StatMeditations      StatKey = "meditations"
	StatOracleReadings   StatKey = "oracle_readings"
	StatJournalEntries   StatKey = "journal_entries"
	StatTarotDraws       StatKey = "tarot_draws"
	StatCharts           StatKey = "charts"
	StatNumerologyReads  StatKey = "numerology_reads"
	StatChakraSessions   StatKey = "chakra_sessions"
	StatCrystalSessions  StatKey = "crystal_sessions"
	StatDreamLogs        StatKey = "dream_logs"
	StatRitualsCompleted StatKey = "rituals_completed"
	StatBreathSessions   StatKey = "breath_sessions"
	StatSoundBaths       StatKey = "sound_baths"
	StatCommunityPosts   StatKey = "community_posts"
	StatMentorSessions   StatKey = "mentor_sessions"
	StatCheckIns         StatKey = "check_ins"
)

// ActivityType is the raw activity identifier reported by feature components.
type ActivityType string

// Activity types with a defined stat mapping and XP reward. Unknown types are
// still logged to the section history but bump no stat and award no XP.
const (
	ActivityMeditation       ActivityType = "meditation"
	ActivityOracleReading    ActivityType = "oracle_reading"
	ActivityJournalEntry     ActivityType = "journal_entry"
	ActivityTarotDraw        ActivityType = "tarot_draw"
	ActivityBirthChart       ActivityType = "birth_chart"
	ActivityNumerologyReport ActivityType = "numerology_report"
	ActivityChakraSession    ActivityType = "chakra_session"
	ActivityCrystalSession   ActivityType = "crystal_session"
	ActivityDreamLog         ActivityType = "dream_log"
	ActivityRitual           ActivityType = "ritual"
	ActivityBreathwork       ActivityType = "breathwork"
	ActivitySoundBath        ActivityType = "sound_bath"
	ActivityCommunityPost    ActivityType = "community_post"
	ActivityMentorSession    ActivityType = "mentor_session"
)

// ActivityRule binds an activity type to the stat it bumps and its XP reward.
type ActivityRule struct {
	Stat     StatKey
	XPReward shared.XP
}

// activityRules is the fixed activity mapping table.
var activityRules = map[ActivityType]ActivityRule{
	ActivityMeditation:       {Stat: StatMeditations, XPReward: 25},
	ActivityOracleReading:    {Stat: StatOracleReadings, XPReward: 15},
	ActivityJournalEntry:     {Stat: StatJournalEntries, XPReward: 20},
	ActivityTarotDraw:        {Stat: StatTarotDraws, XPReward: 15},
	ActivityBirthChart:       {Stat: StatCharts, XPReward: 30},
	ActivityNumerologyReport: {Stat: StatNumerologyReads, XPReward: 20},
	ActivityChakraSession:    {Stat: StatChakraSessions, XPReward: 25},
	ActivityCrystalSession:   {Stat: StatCrystalSessions, XPReward: 15},
	ActivityDreamLog:         {Stat: StatDreamLogs, XPReward: 20},
	ActivityRitual:           {Stat: StatRitualsCompleted, XPReward: 30},
	ActivityBreathwork:       {Stat: StatBreathSessions, XPReward: 20},
	ActivitySoundBath:        {Stat: StatSoundBaths, XPReward: 20},
	ActivityCommunityPost:    {Stat: StatCommunityPosts, XPReward: 10},
	ActivityMentorSession:    {Stat: StatMentorSessions, XPReward: 40},
}

// RuleFor returns the rule for an activity type, if one is defined.
func RuleFor(activityType ActivityType) (ActivityRule, bool) {
	rule, ok := activityRules[activityType]
	return rule, ok
}
