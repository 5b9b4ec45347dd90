package quest

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tier is an ordered quest difficulty rank. The zero value is invalid.
type Tier int

const (
	TierNovice Tier = iota + 1
	TierApprentice
	TierJourneyman
	TierExpert
	TierMaster
)

var tierNames = map[Tier]string{
	TierNovice:     "novice",
	TierApprentice: "apprentice",
	TierJourneyman: "journeyman",
	TierExpert:     "expert",
	TierMaster:     "master",
}

// tierFloors holds the lowest level of each tier, indexed by Tier-1
var tierFloors = [...]int{1, 4, 8, 12, 16}

// TierForLevel returns the tier whose level band contains level.
// Levels below 1 are treated as Novice.
func TierForLevel(level int) Tier {
	tier := TierNovice
	for i, floor := range tierFloors {
		if level >= floor {
			tier = Tier(i + 1)
		}
	}
	return tier
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

func (t Tier) Valid() bool {
	return t >= TierNovice && t <= TierMaster
}

// ParseTier parses a tier name, case-insensitively
func ParseTier(s string) (Tier, error) {
	needle := strings.ToLower(strings.TrimSpace(s))
	for t, name := range tierNames {
		if name == needle {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown tier %q", s)
}

func (t Tier) MarshalJSON() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid tier %d", int(t))
	}
	return json.Marshal(t.String())
}

func (t *Tier) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("tier must be a string: %w", err)
	}
	if s == "" {
		*t = 0
		return nil
	}
	parsed, err := ParseTier(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Risk is the narrative risk category of a quest
type Risk string

const (
	RiskCalm    Risk = "calm"
	RiskMystery Risk = "mystery"
	RiskCombat  Risk = "combat"
)

func (r Risk) Valid() bool {
	switch r {
	case RiskCalm, RiskMystery, RiskCombat:
		return true
	}
	return false
}
