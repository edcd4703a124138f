package progress

import "github.com/innerlight-app/innerlight-progress/internal/domain/shared"

// ═══════════════════════════════════════════════════════════════════════════
// Rank Titles
// ═══════════════════════════════════════════════════════════════════════════

// Rank is the honorific title attached to a band of levels.
type Rank string

// Rank titles, from first steps to mastery.
const (
	RankSeeker      Rank = "Seeker"
	RankApprentice  Rank = "Apprentice"
	RankDisciple    Rank = "Disciple"
	RankAdept       Rank = "Adept"
	RankMystic      Rank = "Mystic"
	RankHealer      Rank = "Healer"
	RankSage        Rank = "Sage"
	RankLuminary    Rank = "Luminary"
	RankEnlightened Rank = "Enlightened"
	RankAscended    Rank = "Ascended"
)

// rankBand maps an inclusive level range to a rank title and its icon.
type rankBand struct {
	minLevel int
	maxLevel int
	rank     Rank
	icon     string
}

// rankTable is ordered by ascending level. The last band is open-ended:
// everything at or above its minimum stays Ascended.
var rankTable = []rankBand{
	{1, 5, RankSeeker, "🌱"},
	{6, 12, RankApprentice, "🌿"},
	{13, 20, RankDisciple, "🕯️"},
	{21, 30, RankAdept, "🔮"},
	{31, 40, RankMystic, "🌙"},
	{41, 50, RankHealer, "💫"},
	{51, 60, RankSage, "🌟"},
	{61, 70, RankLuminary, "☀️"},
	{71, 80, RankEnlightened, "🧘"},
	{81, 100, RankAscended, "✨"},
}

// RankForLevel returns the rank title for a level. Levels above the top band
// keep the highest title.
func RankForLevel(level shared.Level) Rank {
	l := level.Int()
	if l < shared.MinLevel {
		l = shared.MinLevel
	}
	for _, band := range rankTable {
		if l >= band.minLevel && l <= band.maxLevel {
			return band.rank
		}
	}
	return RankAscended
}

// String returns the title text.
func (r Rank) String() string {
	return string(r)
}

// Icon returns the emblem shown next to the rank title. Unknown ranks get
// no icon.
func (r Rank) Icon() string {
	for _, band := range rankTable {
		if band.rank == r {
			return band.icon
		}
	}
	return ""
}
