package fairness

// Interpretation statuses.
const (
	StatusInsufficientData = "insufficient_data"
	StatusDetectionRisk    = "detection_risk"
	StatusLowBias          = "low_bias"
	StatusModerateBias     = "moderate_bias"
	StatusHighBias         = "high_bias"
)

// Decision-table cut points.
const (
	MinDetectionRate        = 0.7
	LowBiasBalancedAccuracy = 0.9
	ModerateBiasBalancedAcc = 0.8
)

// Interpretation is the categorical verdict for one group.
type Interpretation struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type interpretationRule struct {
	status  string
	message string
	applies func(balancedAccuracy *float64, detectionRate float64) bool
}

// interpretationRules is evaluated top to bottom; the first rule that
// applies wins. The last rule always applies.
var interpretationRules = []interpretationRule{
	{
		status:  StatusInsufficientData,
		message: "Not enough genuine and impostor pairs to estimate verification accuracy.",
		applies: func(ba *float64, _ float64) bool { return ba == nil },
	},
	{
		status:  StatusDetectionRisk,
		message: "Face detection failed on too many images; acquisition or lighting dominates, not embedding bias.",
		applies: func(_ *float64, dr float64) bool { return dr < MinDetectionRate },
	},
	{
		status:  StatusLowBias,
		message: "Balanced accuracy is high; genuine and impostor pairs separate well for this group.",
		applies: func(ba *float64, _ float64) bool { return *ba >= LowBiasBalancedAccuracy },
	},
	{
		status:  StatusModerateBias,
		message: "Balanced accuracy is moderate; review same-group false matches and consider an adaptive threshold.",
		applies: func(ba *float64, _ float64) bool { return *ba >= ModerateBiasBalancedAcc },
	},
	{
		status:  StatusHighBias,
		message: "Balanced accuracy is low; consider rebalancing reference data and threshold tuning.",
		applies: func(*float64, float64) bool { return true },
	},
}

// Interpret applies the decision table to a group's balanced accuracy and
// detection rate.
func Interpret(balancedAccuracy *float64, detectionRate float64) Interpretation {
	for _, r := range interpretationRules {
		if r.applies(balancedAccuracy, detectionRate) {
			return Interpretation{Status: r.status, Message: r.message}
		}
	}
	// unreachable: the final rule always applies
	return Interpretation{Status: StatusHighBias}
}
