// Package dsm provides a client for the Synology DSM Web API.
package dsm

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Response is the common DSM envelope: {"success": bool, "data": {...}, "error": {...}}.
type Response[T any] struct {
	Success bool      `json:"success"` // 是否成功
	Data    T         `json:"data"`    // 响应数据
	Error   *APIError `json:"error"`   // 错误信息
}

// APIError carries the DSM error code.
type APIError struct {
	Code int `json:"code"` // DSM 错误码
}

// AuthData is the payload of a successful login.
type AuthData struct {
	SID string `json:"sid"` // 会话 ID
}

// SystemInfo is the subset of SYNO.Core.System info used by the collector.
type SystemInfo struct {
	Temperature *Number `json:"temperature"` // 系统温度（摄氏度）
	Uptime      *Number `json:"uptime"`      // 运行时间（秒）
}

// Utilization is the subset of SYNO.Core.System.Utilization get.
type Utilization struct {
	CPU     *CPUUtilization    `json:"cpu"`     // CPU 负载
	Memory  *MemoryUtilization `json:"memory"`  // 内存使用
	Network []NetworkInterface `json:"network"` // 网卡流量
}

// CPUUtilization holds CPU load percentages.
type CPUUtilization struct {
	UserLoad   *Number `json:"user_load"`   // 用户态负载
	SystemLoad *Number `json:"system_load"` // 内核态负载
}

// MemoryUtilization holds memory usage.
type MemoryUtilization struct {
	RealUsage *Number `json:"real_usage"` // 实际使用率
}

// NetworkInterface holds per-interface traffic in bytes/s.
type NetworkInterface struct {
	Device string `json:"device"` // 网卡名
	RX     Number `json:"rx"`     // 接收字节/秒
	TX     Number `json:"tx"`     // 发送字节/秒
}

// StorageInfo is the subset of SYNO.Storage.CGI.Storage load_info.
type StorageInfo struct {
	Volumes []Volume `json:"volumes"` // 存储卷列表
}

// Volume is one storage volume.
type Volume struct {
	ID   string      `json:"id"`   // 卷 ID（如 volume_1）
	Size *VolumeSize `json:"size"` // 容量信息
}

// VolumeSize holds byte counts. DSM encodes them as strings.
type VolumeSize struct {
	Used  *Number `json:"used"`  // 已用字节
	Total *Number `json:"total"` // 总字节
}

// UnmarshalJSON reads temperature and uptime independently.
func (i *SystemInfo) UnmarshalJSON(b []byte) error {
	*i = SystemInfo{}
	decodeNumbers(b, map[string]**Number{
		"temperature": &i.Temperature,
		"uptime":      &i.Uptime,
	})
	return nil
}

// UnmarshalJSON reads user_load and system_load independently.
func (c *CPUUtilization) UnmarshalJSON(b []byte) error {
	*c = CPUUtilization{}
	decodeNumbers(b, map[string]**Number{
		"user_load":   &c.UserLoad,
		"system_load": &c.SystemLoad,
	})
	return nil
}

// UnmarshalJSON reads real_usage.
func (m *MemoryUtilization) UnmarshalJSON(b []byte) error {
	*m = MemoryUtilization{}
	decodeNumbers(b, map[string]**Number{"real_usage": &m.RealUsage})
	return nil
}

// UnmarshalJSON reads used and total independently.
func (v *VolumeSize) UnmarshalJSON(b []byte) error {
	*v = VolumeSize{}
	decodeNumbers(b, map[string]**Number{
		"used":  &v.Used,
		"total": &v.Total,
	})
	return nil
}

// decodeNumbers fills each target from the matching key of the JSON object
// in b. Keys that are missing or not numeric stay nil; a non-object leaves
// every target nil.
func decodeNumbers(b []byte, targets map[string]**Number) {
	var fields map[string]json.RawMessage
	if json.Unmarshal(b, &fields) != nil {
		return
	}
	for key, target := range targets {
		*target = ParseNumber(fields[key])
	}
}

// Number decodes both JSON numbers and numeric strings, which DSM mixes
// freely between firmware versions.
type Number float64

// ParseNumber returns nil when raw is missing, null or not numeric ("N/A").
// An empty string counts as zero.
func ParseNumber(raw json.RawMessage) *Number {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var f float64
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		if s != "" {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil
			}
			f = parsed
		}
	} else if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}

	n := Number(f)
	return &n
}

// UnmarshalJSON implements json.Unmarshaler. Values that are not numeric
// leave the number at zero.
func (n *Number) UnmarshalJSON(b []byte) error {
	if v := ParseNumber(b); v != nil {
		*n = *v
	}
	return nil
}

// Float returns the value as float64.
func (n Number) Float() float64 {
	return float64(n)
}
