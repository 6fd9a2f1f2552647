package domain

type Strategy string

const (
	StrategyBalanced   Strategy = "balanced"
	StrategyFastest    Strategy = "fastest"
	StrategyMinVehicle Strategy = "minVehicle"
	StrategyCheapest   Strategy = "cheapest"
)

// Strategies returns every strategy in the fixed result order.
func Strategies() []Strategy {
	return []Strategy{StrategyBalanced, StrategyFastest, StrategyMinVehicle, StrategyCheapest}
}

// Objectives returns the remote objective hierarchy for the strategy.
// Every strategy first minimizes unassigned jobs.
func (s Strategy) Objectives() []Objective {
	switch s {
	case StrategyBalanced:
		return []Objective{{Type: "minimizeUnassigned"}, {Type: "balanceDuration"}, {Type: "minimizeCost"}}
	case StrategyFastest:
		return []Objective{{Type: "minimizeUnassigned"}, {Type: "minimizeDuration"}}
	case StrategyMinVehicle:
		return []Objective{{Type: "minimizeUnassigned"}, {Type: "minimizeTours"}, {Type: "minimizeCost"}}
	case StrategyCheapest:
		return []Objective{{Type: "minimizeUnassigned"}, {Type: "minimizeCost"}}
	}
	return nil
}
