// Package dreamnet tracks the carbon cost of compute that is gated to the
// user's sleep windows and checks it against a policy carbon limit.
package dreamnet

import (
	"sync"
	"time"
)

const (
	// DefaultCarbonLimit is the per-hour carbon budget in kg CO2e.
	DefaultCarbonLimit = 0.02
	// LabGridIntensity is the fixed grid intensity in g CO2 per kWh.
	LabGridIntensity = 80.0
	// conventionalRate is the kg CO2e per hour of the ungated baseline.
	conventionalRate = 0.10
	maxSessions      = 1000
)

// Session is one sleep-gated compute window.
type Session struct {
	Start              time.Time `json:"start"`
	End                time.Time `json:"end"`
	SleepEfficiency    float64   `json:"sleep_efficiency"`
	SleepStage         string    `json:"sleep_stage"`
	ComputePowerWatts  float64   `json:"compute_power_watts"`
	CarbonIntensity    float64   `json:"carbon_intensity_gco2_per_kwh"`
	ContentPersisted   bool      `json:"content_persisted"`
	DreamStateFeatures int       `json:"dream_state_features"`
}

// Hours returns the whole hours the session lasted.
func (s Session) Hours() int64 {
	return int64(s.End.Sub(s.Start) / time.Hour)
}

// Stats summarises the retained sessions.
type Stats struct {
	TotalSessions     int     `json:"total_sessions"`
	CompliantSessions int     `json:"compliant_sessions"`
	AvgCarbonIndex    float64 `json:"avg_carbon_index"`
	TotalCarbonKg     float64 `json:"total_carbon_kg"`
}

// Index keeps the most recent sessions and evaluates them against a carbon limit.
type Index struct {
	mu       sync.RWMutex
	limit    float64
	sessions []Session
}

// NewIndex creates an index with the given limit; a non-positive limit
// selects DefaultCarbonLimit.
func NewIndex(limit float64) *Index {
	if limit <= 0 {
		limit = DefaultCarbonLimit
	}
	return &Index{limit: limit}
}

// Record stores a session, dropping the oldest beyond the retention cap.
func (x *Index) Record(s Session) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.sessions = append(x.sessions, s)
	if over := len(x.sessions) - maxSessions; over > 0 {
		x.sessions = append([]Session(nil), x.sessions[over:]...)
	}
}

// Len returns the number of retained sessions.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.sessions)
}

// SetCarbonLimit replaces the per-hour carbon limit.
func (x *Index) SetCarbonLimit(limit float64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.limit = limit
}

// CarbonLimit returns the per-hour carbon limit.
func (x *Index) CarbonLimit() float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.limit
}

// CarbonIndex returns kg CO2e per hour for s. Sessions shorter than an hour
// are divided by one hour.
func CarbonIndex(s Session) float64 {
	hours := s.Hours()
	divisor := hours
	if divisor == 0 {
		divisor = 1
	}
	return sessionCarbon(s, hours) / float64(divisor)
}

// Compliant reports whether s stays within the carbon limit.
func (x *Index) Compliant(s Session) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return CarbonIndex(s) <= x.limit
}

// TotalCarbonSaved compares the retained sessions against the ungated baseline.
func (x *Index) TotalCarbonSaved() float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()

	conventional, gated := 0.0, 0.0
	for _, s := range x.sessions {
		hours := float64(s.Hours())
		conventional += conventionalRate * hours
		gated += CarbonIndex(s) * hours
	}
	return conventional - gated
}

// Stats summarises the retained sessions.
func (x *Index) Stats() Stats {
	x.mu.RLock()
	defer x.mu.RUnlock()

	st := Stats{TotalSessions: len(x.sessions)}
	sum := 0.0
	for _, s := range x.sessions {
		idx := CarbonIndex(s)
		sum += idx
		st.TotalCarbonKg += idx * float64(s.Hours())
		if idx <= x.limit {
			st.CompliantSessions++
		}
	}
	if st.TotalSessions > 0 {
		st.AvgCarbonIndex = sum / float64(st.TotalSessions)
	}
	return st
}

// RecommendComputeWindows returns the hourly instants within hoursAhead of
// now that fall in the 22:00-06:00 sleep window of now's location.
func RecommendComputeWindows(now time.Time, hoursAhead int) []time.Time {
	var windows []time.Time
	for i := 0; i < hoursAhead; i++ {
		at := now.Add(time.Duration(i) * time.Hour)
		if h := at.Hour(); h >= 22 || h < 6 {
			windows = append(windows, at)
		}
	}
	return windows
}

// sessionCarbon is kW x hours x grid intensity, in kg.
func sessionCarbon(s Session, hours int64) float64 {
	powerKW := s.ComputePowerWatts / 1000.0
	return powerKW * float64(hours) * LabGridIntensity / 1000.0
}
