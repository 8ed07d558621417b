package domain

// Reading is a single simulated meter sample as uploaded in a data file.
type Reading struct {
	SiteID             string  `json:"site_id"`
	Timestamp          string  `json:"timestamp"`
	EnergyGeneratedKWh float64 `json:"energy_generated_kwh"`
	EnergyConsumedKWh  float64 `json:"energy_consumed_kwh"`
}

// EnergyRecord is a processed reading as served by the read endpoints.
type EnergyRecord struct {
	SiteID             string  `json:"site_id"`
	Timestamp          string  `json:"timestamp"`
	EnergyGeneratedKWh float64 `json:"energy_generated_kwh"`
	EnergyConsumedKWh  float64 `json:"energy_consumed_kwh"`
	NetEnergyKWh       float64 `json:"net_energy_kwh"`
	Anomaly            bool    `json:"anomaly"`
	SourceFile         string  `json:"source_file,omitempty"`
}
