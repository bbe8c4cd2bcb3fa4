package domain

import "time"

// ProcessSummary describes a monitored process.
type ProcessSummary struct {
	ProcessID       string    `json:"process_id" yaml:"process_id"`
	Exe             string    `json:"exe" yaml:"exe"`
	Username        string    `json:"username" yaml:"username"`
	Realname        string    `json:"realname" yaml:"realname"`
	Computer        string    `json:"computer" yaml:"computer"`
	Distro          string    `json:"distro" yaml:"distro"`
	CPUBrand        string    `json:"cpu_brand" yaml:"cpu_brand"`
	TSCFrequency    int64     `json:"tsc_frequency" yaml:"tsc_frequency"`
	StartTime       time.Time `json:"start_time" yaml:"start_time"`
	StartTicks      int64     `json:"start_ticks" yaml:"start_ticks"`
	ParentProcessID string    `json:"parent_process_id,omitempty" yaml:"parent_process_id,omitempty"`
}
