package control

// PIDConfig holds scalar PD/PID gains. Ki of zero gives a pure PD controller.
type PIDConfig struct {
	Kp float64 `json:"kp" yaml:"kp"`
	Ki float64 `json:"ki" yaml:"ki"`
	Kd float64 `json:"kd" yaml:"kd"`
}

// VectorPIDConfig holds gains for the three-axis controller.
type VectorPIDConfig struct {
	Kp            float64 `json:"kp" yaml:"kp"`
	Ki            float64 `json:"ki" yaml:"ki"`
	Kd            float64 `json:"kd" yaml:"kd"`
	IntegralLimit float64 `json:"integral_limit" yaml:"integral_limit"` // radius of the integral sphere
}

// DefaultIntegralLimit bounds the vector integral when no limit is configured.
const DefaultIntegralLimit = 10.0

// DefaultAxisGains returns the PD gains used for every attitude and
// translation axis unless a profile overrides them.
func DefaultAxisGains() PIDConfig {
	return PIDConfig{Kp: 1.0, Ki: 0, Kd: 0.1}
}
