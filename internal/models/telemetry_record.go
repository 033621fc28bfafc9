package models

// TelemetryRecord 识别结果缓存中的一行（以 Name 为唯一键）
// 可选字段缺失时为 nil，JSON 输出为 null
type TelemetryRecord struct {
	Name       string   `json:"Name"`
	Center     string   `json:"Center"`
	Latitude   *float64 `json:"Latitude"`
	Longitude  *float64 `json:"Longitude"`
	Confidence *float64 `json:"Confidence"`
	Timestamp  string   `json:"Timestamp"`
	Yaw        *float64 `json:"Yaw"`
}

// HasPosition 经纬度是否都存在
func (r TelemetryRecord) HasPosition() bool {
	return r.Latitude != nil && r.Longitude != nil
}
