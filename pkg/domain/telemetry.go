package domain

// Layer values used by the eco-governance shard.
const (
	LayerGovSafety  = "GovSafety"
	LayerGovOS      = "GovOS"
	LayerBCIIngress = "BCIIngress"
	LayerEcoLink    = "EcoLink"
)

// NeuroNode is one telemetry row from an eco-governance shard. Layer is the
// source category and Parameter the parameter name.
type NeuroNode struct {
	NodeID         string  `json:"node_id"`
	Layer          string  `json:"layer"`
	Region         string  `json:"region"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Parameter      string  `json:"parameter"`
	Unit           string  `json:"unit"`
	Value          float64 `json:"value"`
	Window         string  `json:"window"`
	EcoImpactScore float64 `json:"eco_impact_score"`
	Notes          string  `json:"notes"`
}
