package scoring

// PlayerStats is one player's counting stats for a single match.
type PlayerStats struct {
	Tries             int  `json:"tries"`
	TryAssists        int  `json:"try_assists"`
	Conversions       int  `json:"conversions"`
	PenaltiesKicked   int  `json:"penalties_kicked"`
	DropGoals         int  `json:"drop_goals"`
	DefendersBeaten   int  `json:"defenders_beaten"`
	MetresCarried     int  `json:"metres_carried"`
	Offloads          int  `json:"offloads"`
	Fifty22Kicks      int  `json:"fifty_22_kicks"`
	ScrumsWon         int  `json:"scrums_won"`
	TacklesMade       int  `json:"tackles_made"`
	TurnoversWon      int  `json:"turnovers_won"`
	LineoutSteals     int  `json:"lineout_steals"`
	PlayerOfMatch     bool `json:"player_of_match"`
	PenaltiesConceded int  `json:"penalties_conceded"`
	YellowCards       int  `json:"yellow_cards"`
	RedCards          int  `json:"red_cards"`
	IsForward         bool `json:"is_forward"`
}

// Points per event.
const (
	ForwardTryPoints     = 15
	BackTryPoints        = 10
	TryAssistPoints      = 4
	ConversionPoints     = 2
	PenaltyKickPoints    = 3
	DropGoalPoints       = 5
	DefenderBeatenPoints = 2
	MetresPerPoint       = 10
	OffloadPoints        = 2
	Fifty22Points        = 7
	ScrumWonPoints       = 1
	TacklePoints         = 1
	TurnoverWonPoints    = 5
	LineoutStealPoints   = 7
	PlayerOfMatchPoints  = 15
	PenaltyConcededCost  = 1
	YellowCardCost       = 5
	RedCardCost          = 8
)

// Breakdown is the contribution of each scoring category to a match total.
type Breakdown struct {
	Tries             float64 `json:"tries"`
	TryAssists        float64 `json:"try_assists"`
	Conversions       float64 `json:"conversions"`
	PenaltiesKicked   float64 `json:"penalties_kicked"`
	DropGoals         float64 `json:"drop_goals"`
	DefendersBeaten   float64 `json:"defenders_beaten"`
	MetresCarried     float64 `json:"metres_carried"`
	Offloads          float64 `json:"offloads"`
	Fifty22Kicks      float64 `json:"fifty_22_kicks"`
	ScrumsWon         float64 `json:"scrums_won"`
	TacklesMade       float64 `json:"tackles_made"`
	TurnoversWon      float64 `json:"turnovers_won"`
	LineoutSteals     float64 `json:"lineout_steals"`
	PlayerOfMatch     float64 `json:"player_of_match"`
	PenaltiesConceded float64 `json:"penalties_conceded"`
	YellowCards       float64 `json:"yellow_cards"`
	RedCards          float64 `json:"red_cards"`
	Total             float64 `json:"total"`
}

// CalculateFantasyPoints scores a stat line. The result may be negative.
func CalculateFantasyPoints(stats PlayerStats) float64 {
	return CalculateBreakdown(stats).Total
}

// CalculateBreakdown scores a stat line category by category.
func CalculateBreakdown(stats PlayerStats) Breakdown {
	tryValue := BackTryPoints
	if stats.IsForward {
		tryValue = ForwardTryPoints
	}

	b := Breakdown{
		Tries:           float64(stats.Tries * tryValue),
		TryAssists:      float64(stats.TryAssists * TryAssistPoints),
		Conversions:     float64(stats.Conversions * ConversionPoints),
		PenaltiesKicked: float64(stats.PenaltiesKicked * PenaltyKickPoints),
		DropGoals:       float64(stats.DropGoals * DropGoalPoints),
		DefendersBeaten: float64(stats.DefendersBeaten * DefenderBeatenPoints),
		MetresCarried:   float64(floorDiv(stats.MetresCarried, MetresPerPoint)),
		Offloads:        float64(stats.Offloads * OffloadPoints),
		Fifty22Kicks:    float64(stats.Fifty22Kicks * Fifty22Points),
		TacklesMade:     float64(stats.TacklesMade * TacklePoints),
		TurnoversWon:    float64(stats.TurnoversWon * TurnoverWonPoints),
		LineoutSteals:   float64(stats.LineoutSteals * LineoutStealPoints),

		PenaltiesConceded: float64(-stats.PenaltiesConceded * PenaltyConcededCost),
		YellowCards:       float64(-stats.YellowCards * YellowCardCost),
		RedCards:          float64(-stats.RedCards * RedCardCost),
	}

	// Scrums only count for the pack
	if stats.IsForward {
		b.ScrumsWon = float64(stats.ScrumsWon * ScrumWonPoints)
	}
	if stats.PlayerOfMatch {
		b.PlayerOfMatch = PlayerOfMatchPoints
	}

	b.Total = b.Tries + b.TryAssists + b.Conversions + b.PenaltiesKicked + b.DropGoals +
		b.DefendersBeaten + b.MetresCarried + b.Offloads + b.Fifty22Kicks + b.ScrumsWon +
		b.TacklesMade + b.TurnoversWon + b.LineoutSteals + b.PlayerOfMatch +
		b.PenaltiesConceded + b.YellowCards + b.RedCards

	return b
}

// floorDiv rounds toward negative infinity.
func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
