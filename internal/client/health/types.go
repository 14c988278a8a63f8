// Package health provides a client for application health endpoints.
package health

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Status values reported by the health endpoint.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusUnknown  = "unknown"
)

// Report is the JSON document served by the health endpoint.
type Report struct {
	Status         string          `json:"status"`           // healthy / degraded / 其他
	Checks         Checks          `json:"checks"`           // 依赖检查
	ResponseTimeMS *Scalar         `json:"response_time_ms"` // 应用内部耗时（毫秒）
	RecentErrors   json.RawMessage `json:"recent_errors"`    // 最近错误（原样保留）
}

// StatusText returns the reported status or "unknown".
func (r *Report) StatusText() string {
	if r.Status == "" {
		return StatusUnknown
	}
	return r.Status
}

// StatusScore maps the status to healthy=1, degraded=0.5, anything else 0.
func (r *Report) StatusScore() float64 {
	switch r.Status {
	case StatusHealthy:
		return 1
	case StatusDegraded:
		return 0.5
	default:
		return 0
	}
}

// HasRecentErrors reports whether recent_errors carries a non-empty value.
func (r *Report) HasRecentErrors() bool {
	raw := bytes.TrimSpace(r.RecentErrors)
	if len(raw) == 0 {
		return false
	}
	switch string(raw) {
	case "null", "[]", "{}", `""`:
		return false
	}
	return true
}

// UnmarshalJSON decodes each field on its own. A field with an unexpected
// shape is treated as missing and never hides the rest of the document.
func (r *Report) UnmarshalJSON(b []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	*r = Report{}
	var status string
	if json.Unmarshal(fields["status"], &status) == nil {
		r.Status = status
	}
	r.Checks = decodeChecks(fields["checks"])
	r.ResponseTimeMS = ParseScalar(fields["response_time_ms"])
	r.RecentErrors = fields["recent_errors"]
	return nil
}

// Checks holds the dependency checks. Database and Cache are kept raw since
// only a literal true counts as connected.
type Checks struct {
	Database json.RawMessage `json:"database"` // 数据库连接
	Cache    json.RawMessage `json:"cache"`    // 缓存连接
	Queue    *QueueCheck     `json:"queue"`    // 队列状态
}

// QueueCheck holds queue depth and failed job count.
type QueueCheck struct {
	Size   *Scalar `json:"size"`   // 待处理任务数
	Failed *Scalar `json:"failed"` // 失败任务数
}

// decodeChecks reads the checks object. Anything but an object (Laravel
// renders an empty array as []) yields no checks.
func decodeChecks(raw json.RawMessage) Checks {
	var fields map[string]json.RawMessage
	if json.Unmarshal(raw, &fields) != nil {
		return Checks{}
	}

	checks := Checks{
		Database: fields["database"],
		Cache:    fields["cache"],
	}

	var queue map[string]json.RawMessage
	if json.Unmarshal(fields["queue"], &queue) == nil && queue != nil {
		checks.Queue = &QueueCheck{
			Size:   ParseScalar(queue["size"]),
			Failed: ParseScalar(queue["failed"]),
		}
	}
	return checks
}

// Flag interprets a raw check value. present is false when the key is
// missing or null; connected is true only for a literal JSON true.
func Flag(raw json.RawMessage) (connected, present bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return false, false
	}
	return string(raw) == "true", true
}

// Scalar decodes a JSON number, numeric string or boolean as float64.
type Scalar float64

// ParseScalar returns nil when raw is missing, null or not numeric.
func ParseScalar(raw json.RawMessage) *Scalar {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}

	var v Scalar
	switch string(raw) {
	case "null":
		return nil
	case "false", `""`:
		return &v
	case "true":
		v = 1
		return &v
	}

	var f float64
	if raw[0] == '"' {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return nil
		}
		parsed, err := strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return nil
		}
		f = parsed
	} else if err := json.Unmarshal(raw, &f); err != nil {
		return nil
	}
	v = Scalar(f)
	return &v
}

// UnmarshalJSON implements json.Unmarshaler. Values that are not numeric
// leave the scalar at zero.
func (s *Scalar) UnmarshalJSON(b []byte) error {
	if v := ParseScalar(b); v != nil {
		*s = *v
	}
	return nil
}

// Float returns the value as float64.
func (s Scalar) Float() float64 {
	return float64(s)
}
