package models

// PatternConfig 发布到 pattern 通道的完整航线参数
type PatternConfig struct {
	KMLFile        string  `json:"kml_file"`
	LineSpacing    float64 `json:"line_spacing"`
	FlightAltitude float64 `json:"flight_altitude"`
	FlightVelocity float64 `json:"flight_velocity"`
	FenceBuffer    float64 `json:"fence_buffer"`
	OptimizeAngle  bool    `json:"optimize_angle"`
	Angle          float64 `json:"angle"`
}

// DefaultPatternConfig 系统默认参数
func DefaultPatternConfig() PatternConfig {
	return PatternConfig{
		LineSpacing:    20,
		FlightAltitude: 30,
		FlightVelocity: 4.0,
		FenceBuffer:    5,
		OptimizeAngle:  true,
		Angle:          90,
	}
}

// PatternOverrides 调用方提供的覆盖参数，nil 表示沿用默认值
type PatternOverrides struct {
	LineSpacing    *float64 `json:"line_spacing,omitempty"`
	FlightAltitude *float64 `json:"flight_altitude,omitempty"`
	FlightVelocity *float64 `json:"flight_velocity,omitempty"`
	FenceBuffer    *float64 `json:"fence_buffer,omitempty"`
	OptimizeAngle  *bool    `json:"optimize_angle,omitempty"`
	Angle          *float64 `json:"angle,omitempty"`
}

// Merge 浅合并：只覆盖 o 中出现的键
func (c PatternConfig) Merge(o PatternOverrides) PatternConfig {
	if o.LineSpacing != nil {
		c.LineSpacing = *o.LineSpacing
	}
	if o.FlightAltitude != nil {
		c.FlightAltitude = *o.FlightAltitude
	}
	if o.FlightVelocity != nil {
		c.FlightVelocity = *o.FlightVelocity
	}
	if o.FenceBuffer != nil {
		c.FenceBuffer = *o.FenceBuffer
	}
	if o.OptimizeAngle != nil {
		c.OptimizeAngle = *o.OptimizeAngle
	}
	if o.Angle != nil {
		c.Angle = *o.Angle
	}
	return c
}

// PatternRequest 生成航线请求
type PatternRequest struct {
	Filename string            `json:"filename"`
	Params   *PatternOverrides `json:"params,omitempty"`
}

// MissionRequest 任务指令请求
type MissionRequest struct {
	Command string `json:"command"`
}
