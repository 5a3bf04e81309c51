package domain

import (
	"strings"

	"github.com/paulmach/orb"
)

// UnknownRiskColor is used for units with no class or an out-of-range class.
const UnknownRiskColor = "rgb(255, 255, 255)"

var riskRamp = map[int]string{
	1: "#509e2f",
	2: "#ffe900",
	3: "#e87722",
	4: "#cb333b",
	5: "#6f263d",
}

// RiskColor maps a risk class (1 lowest, 5 highest) to its display color.
func RiskColor(class int) string {
	if c, ok := riskRamp[class]; ok {
		return c
	}
	return UnknownRiskColor
}

// AdminUnit is an administrative-area polygon keyed by its unit code.
type AdminUnit struct {
	Code     string
	Name     string
	Geometry orb.Geometry
}

// RiskForecast is one horizon of the risk feed: a class per unit code.
type RiskForecast struct {
	Date    string
	Classes map[string]int
}

// RiskUnit is an administrative unit tagged with its forecast class.
type RiskUnit struct {
	Code     string       `json:"code"`
	Name     string       `json:"name"`
	Class    int          `json:"class"`
	Color    string       `json:"color"`
	Geometry orb.Geometry `json:"-"`
}

// RiskLayer is the colored unit set for one forecast horizon.
type RiskLayer struct {
	Horizon string     `json:"horizon"`
	Label   string     `json:"label"`
	Date    string     `json:"date,omitempty"`
	Units   []RiskUnit `json:"units"`
}

// BuildRiskLayer colors every unit by its class in forecast. Units the
// forecast does not mention get class 0 and the unknown color. The layer is
// labelled after the forecast date, or the horizon name when there is none.
func BuildRiskLayer(horizon string, units []AdminUnit, forecast RiskForecast, labels *Labeler) RiskLayer {
	layer := RiskLayer{
		Horizon: horizon,
		Date:    forecast.Date,
		Units:   make([]RiskUnit, 0, len(units)),
	}
	if d := strings.TrimSpace(forecast.Date); d != "" {
		layer.Label = labels.RiskLayer(d)
	} else {
		layer.Label = horizon
	}
	for _, u := range units {
		class := forecast.Classes[u.Code]
		if class < 1 || class > 5 {
			class = 0
		}
		layer.Units = append(layer.Units, RiskUnit{
			Code:     u.Code,
			Name:     u.Name,
			Class:    class,
			Color:    RiskColor(class),
			Geometry: u.Geometry,
		})
	}
	return layer
}
