// Package model holds the domain types shared across the hub: the KPI
// registry, condition classes, road segments, survey records, and the
// filter state that every statistic and renderer operates on.
package model

import "fmt"

// KPI codes for the pavement-condition metrics the hub understands.
const (
	KPIRoughness = "IRI"   // international roughness index, m/km
	KPIRutDepth  = "RUT"   // wheel-track rut depth, mm
	KPISkid      = "SKID"  // SCRIM skid resistance coefficient
	KPITexture   = "TEX"   // sensor-measured texture depth, mm
	KPICracking  = "CRACK" // cracked carriageway area, %
)

// ConditionClass is one of the five ordinal condition buckets.
type ConditionClass int

const (
	VeryGood ConditionClass = iota
	Good
	Fair
	Poor
	VeryPoor
)

// ClassCount is the number of condition classes.
const ClassCount = 5

var classLabels = [ClassCount]string{"Very Good", "Good", "Fair", "Poor", "Very Poor"}

func (c ConditionClass) String() string {
	if c < 0 || int(c) >= ClassCount {
		return fmt.Sprintf("ConditionClass(%d)", int(c))
	}
	return classLabels[c]
}

// Classes returns all condition classes in order, best first.
func Classes() [ClassCount]ConditionClass {
	return [ClassCount]ConditionClass{VeryGood, Good, Fair, Poor, VeryPoor}
}

// KPIInfo describes a single pavement-condition metric.
//
// Thresholds are the four class boundaries between the five condition
// classes, ordered from the Very Good side to the Very Poor side. For a
// metric where higher values mean worse condition (roughness, rutting,
// cracking) the thresholds ascend; for an inverted metric (skid
// resistance, texture depth) they descend.
type KPIInfo struct {
	Code           string     `json:"code"`
	Name           string     `json:"name"`
	Unit           string     `json:"unit"`
	HigherIsBetter bool       `json:"higher_is_better"`
	Thresholds     [4]float64 `json:"thresholds"`
}

var kpiRegistry = map[string]KPIInfo{
	KPIRoughness: {
		Code: KPIRoughness, Name: "Roughness", Unit: "m/km",
		Thresholds: [4]float64{1.5, 2.5, 3.5, 5.0},
	},
	KPIRutDepth: {
		Code: KPIRutDepth, Name: "Rut Depth", Unit: "mm",
		Thresholds: [4]float64{5, 10, 15, 20},
	},
	KPISkid: {
		Code: KPISkid, Name: "Skid Resistance", Unit: "SC",
		HigherIsBetter: true,
		Thresholds:     [4]float64{0.50, 0.45, 0.40, 0.35},
	},
	KPITexture: {
		Code: KPITexture, Name: "Texture Depth", Unit: "mm",
		HigherIsBetter: true,
		Thresholds:     [4]float64{1.1, 0.9, 0.7, 0.5},
	},
	KPICracking: {
		Code: KPICracking, Name: "Cracking", Unit: "%",
		Thresholds: [4]float64{0.5, 2.0, 5.0, 10.0},
	},
}

// kpiOrder fixes the presentation order used by summaries and reports.
var kpiOrder = []string{KPIRoughness, KPIRutDepth, KPISkid, KPITexture, KPICracking}

// KPIByCode looks up a KPI definition by its code.
func KPIByCode(code string) (KPIInfo, bool) {
	info, ok := kpiRegistry[code]
	return info, ok
}

// AllKPIs returns the KPI definitions in presentation order.
func AllKPIs() []KPIInfo {
	out := make([]KPIInfo, 0, len(kpiOrder))
	for _, code := range kpiOrder {
		out = append(out, kpiRegistry[code])
	}
	return out
}

// Classify buckets a KPI value into its condition class.
func (k KPIInfo) Classify(value float64) ConditionClass {
	for i, t := range k.Thresholds {
		if k.HigherIsBetter {
			if value >= t {
				return ConditionClass(i)
			}
		} else {
			if value < t {
				return ConditionClass(i)
			}
		}
	}
	return VeryPoor
}

// ClassBounds returns the [min, max) value range covered by a condition
// class for this KPI, ordered so min <= max regardless of direction.
// Open ends are reported as -inf/+inf via the ok flags: hasMin/hasMax are
// false when the class is unbounded on that side.
func (k KPIInfo) ClassBounds(c ConditionClass) (min, max float64, hasMin, hasMax bool) {
	// Boundaries in value order for the direction of this KPI.
	switch {
	case !k.HigherIsBetter:
		// ascending thresholds: VeryGood < t0 <= Good < t1 ...
		if c > VeryGood {
			min, hasMin = k.Thresholds[c-1], true
		}
		if c < VeryPoor {
			max, hasMax = k.Thresholds[c], true
		}
	default:
		// descending thresholds: VeryGood >= t0 > Good >= t1 ...
		if c < VeryPoor {
			min, hasMin = k.Thresholds[c], true
		}
		if c > VeryGood {
			max, hasMax = k.Thresholds[c-1], true
		}
	}
	return min, max, hasMin, hasMax
}

// ClassifyKPI is a convenience wrapper for callers holding only a code.
func ClassifyKPI(code string, value float64) (ConditionClass, error) {
	info, ok := KPIByCode(code)
	if !ok {
		return VeryPoor, fmt.Errorf("unknown KPI code %q", code)
	}
	return info.Classify(value), nil
}
