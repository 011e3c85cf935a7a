package model

// SizeProfile is a coarse classification of an organization by contact
// count. It selects load-balancer and batching defaults.
type SizeProfile string

const (
	ProfileSmall      SizeProfile = "small"
	ProfileMedium     SizeProfile = "medium"
	ProfileLarge      SizeProfile = "large"
	ProfileEnterprise SizeProfile = "enterprise"
)

// MonthDay is a recurring calendar date (used for AEP dates).
type MonthDay struct {
	Month int `json:"month"`
	Day   int `json:"day"`
}

// OrgConfig is the fully resolved per-organization scheduling configuration:
// hard-coded defaults, then the organizations row, then the JSON override
// blob, then size-profile fill-ins.
type OrgConfig struct {
	OrgID int64

	// Timing
	BirthdayDaysBefore      int    // days before the birthday anniversary to send
	EffectiveDateDaysBefore int    // days before the effective-date anniversary to send
	SendTime                string // HH:MM:SS in the business timezone
	Timezone                string // IANA name of the business timezone
	AEPDates                []MonthDay

	// Buffers
	PreWindowExclusionDays        int            // backwards extension of every windowed exclusion
	StateBufferDays               map[string]int // per-state override of PreWindowExclusionDays
	EffectiveDateFirstEmailMonths int            // suppress ED emails for contacts newer than this

	// Policy
	EnablePostWindowEmails          bool
	ExcludeFailedUnderwritingGlobal bool
	SendWithoutZipcodeForUniversal  bool

	// Load balancing
	DailySendPercentageCap float64
	EDDailySoftLimit       int
	EDSmoothingWindowDays  int
	CatchUpSpreadDays      int
	OverageThreshold       float64

	// Sizing
	SizeProfile   SizeProfile
	BatchSize     int
	TotalContacts int
}

// BufferDaysFor returns the pre-window buffer for a state, honoring any
// per-state override row.
func (c *OrgConfig) BufferDaysFor(state string) int {
	if days, ok := c.StateBufferDays[state]; ok {
		return days
	}
	return c.PreWindowExclusionDays
}
