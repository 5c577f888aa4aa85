// Package ecometrics aggregates eco-impact scores across shard categories and
// renders the summary report printed by the CLI.
package ecometrics

import (
	"fmt"
	"io"
	"strings"

	"github.com/polisai/neurogov/pkg/domain"
)

// Summary holds the overall average eco-impact score and three sub-category
// averages. An empty sub-category averages to zero.
type Summary struct {
	Nodes     int     `json:"nodes"`
	AvgAll    float64 `json:"avg_eco_impact_score"`
	AvgWater  float64 `json:"eco_impact_score_water"`
	AvgEnergy float64 `json:"eco_impact_score_energy"`
	AvgBCI    float64 `json:"eco_impact_score_bci"`
}

type mean struct {
	sum   float64
	count int
}

func (m *mean) add(v float64) {
	m.sum += v
	m.count++
}

func (m mean) value() float64 {
	if m.count == 0 {
		return 0
	}
	return m.sum / float64(m.count)
}

// Compute buckets nodes by layer and parameter and averages EcoImpactScore.
func Compute(nodes []domain.NeuroNode) Summary {
	var all, water, energy, bci mean
	for _, n := range nodes {
		all.add(n.EcoImpactScore)

		if isWater(n) {
			water.add(n.EcoImpactScore)
		}
		if isEnergy(n) {
			energy.add(n.EcoImpactScore)
		}
		if isBCI(n) {
			bci.add(n.EcoImpactScore)
		}
	}

	return Summary{
		Nodes:     len(nodes),
		AvgAll:    all.value(),
		AvgWater:  water.value(),
		AvgEnergy: energy.value(),
		AvgBCI:    bci.value(),
	}
}

func isWater(n domain.NeuroNode) bool {
	return n.Layer == domain.LayerEcoLink &&
		(strings.Contains(n.Parameter, "PFBS") || strings.Contains(n.Parameter, "Ecoli"))
}

func isEnergy(n domain.NeuroNode) bool {
	return n.Layer == domain.LayerEcoLink && strings.Contains(n.Parameter, "ElectricityIntensity")
}

func isBCI(n domain.NeuroNode) bool {
	switch n.Layer {
	case domain.LayerBCIIngress, domain.LayerGovSafety, domain.LayerGovOS:
		return true
	}
	return false
}

// WriteReport renders s as the plain-text eco-governance summary.
func WriteReport(w io.Writer, s Summary) error {
	_, err := fmt.Fprintf(w,
		"Phoenix Neurostack Eco-Governance Summary 2026\n"+
			"Nodes loaded: %d\n"+
			"Average Eco-Impact Score (all nodes): %.3f\n"+
			"Water-linked Eco-Impact (PFBS, E. coli): %.3f\n"+
			"Energy-linked Eco-Impact (lab intensity): %.3f\n"+
			"BCI & Governance Eco-Impact: %.3f\n",
		s.Nodes, s.AvgAll, s.AvgWater, s.AvgEnergy, s.AvgBCI)
	return err
}
