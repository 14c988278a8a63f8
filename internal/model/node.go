// Package model provides data models for the monitor.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// NodeType identifies which collector handles a node.
type NodeType string

const (
	NodeTypeSynology   NodeType = "synology"    // NAS 存储
	NodeTypeDocker     NodeType = "docker"      // 容器主机
	NodeTypeGalera     NodeType = "galera"      // Galera 集群成员
	NodeTypeLaravelApp NodeType = "laravel_app" // 应用健康检查端点
)

// NodeTypes lists every supported node type in declaration order.
var NodeTypes = []NodeType{
	NodeTypeSynology,
	NodeTypeDocker,
	NodeTypeGalera,
	NodeTypeLaravelApp,
}

// ParseNodeType converts a string into a NodeType, rejecting unknown values.
func ParseNodeType(s string) (NodeType, error) {
	normalized := NodeType(strings.ToLower(strings.TrimSpace(s)))
	for _, t := range NodeTypes {
		if t == normalized {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown node type %q", s)
}

// DisplayName returns a human-readable label for the node type.
func (t NodeType) DisplayName() string {
	switch t {
	case NodeTypeSynology:
		return "Synology NAS"
	case NodeTypeDocker:
		return "Docker Host"
	case NodeTypeGalera:
		return "Galera Cluster"
	case NodeTypeLaravelApp:
		return "Laravel App"
	default:
		return string(t)
	}
}

// Node is a monitored external system. A node is read-only for the duration
// of a sweep.
type Node struct {
	ID          int64       `json:"id"`          // 节点 ID
	Name        string      `json:"name"`        // 节点名称
	Type        NodeType    `json:"type"`        // 节点类型
	Host        string      `json:"host"`        // 主机地址
	Port        int         `json:"port"`        // 端口，0 表示使用类型默认端口
	Credentials Credentials `json:"-"`           // 凭据
	Active      bool        `json:"active"`      // 是否启用
}

// PortOr returns the node port, or def when the node does not set one.
func (n *Node) PortOr(def int) int {
	if n.Port > 0 {
		return n.Port
	}
	return def
}

// NASCredentials holds the DSM account used for API sessions.
type NASCredentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
}

// GaleraCredentials holds the database account for status queries.
type GaleraCredentials struct {
	Username string `json:"username" yaml:"username"`
	Password string `json:"password" yaml:"password"`
	Database string `json:"database,omitempty" yaml:"database,omitempty"`
}

// HealthCredentials holds the health endpoint path and optional bearer token.
type HealthCredentials struct {
	HealthEndpoint string `json:"health_endpoint,omitempty" yaml:"health_endpoint,omitempty"`
	HealthToken    string `json:"health_token,omitempty" yaml:"health_token,omitempty"`
}

// Credentials is a tagged union keyed by node type. At most one field is set,
// matching the owning node's type; docker nodes carry none.
type Credentials struct {
	NAS    *NASCredentials
	Galera *GaleraCredentials
	Health *HealthCredentials
}

// DecodeCredentials parses the stored JSON blob for the given node type.
// An empty blob yields zero-valued credentials for the type.
func DecodeCredentials(t NodeType, raw []byte) (Credentials, error) {
	var creds Credentials
	empty := len(strings.TrimSpace(string(raw))) == 0 || string(raw) == "null"

	switch t {
	case NodeTypeSynology:
		creds.NAS = &NASCredentials{}
		if !empty {
			if err := json.Unmarshal(raw, creds.NAS); err != nil {
				return Credentials{}, fmt.Errorf("failed to decode %s credentials: %w", t, err)
			}
		}
	case NodeTypeGalera:
		creds.Galera = &GaleraCredentials{}
		if !empty {
			if err := json.Unmarshal(raw, creds.Galera); err != nil {
				return Credentials{}, fmt.Errorf("failed to decode %s credentials: %w", t, err)
			}
		}
	case NodeTypeLaravelApp:
		creds.Health = &HealthCredentials{}
		if !empty {
			if err := json.Unmarshal(raw, creds.Health); err != nil {
				return Credentials{}, fmt.Errorf("failed to decode %s credentials: %w", t, err)
			}
		}
	case NodeTypeDocker:
		// no credentials
	default:
		return Credentials{}, fmt.Errorf("unknown node type %q", t)
	}

	return creds, nil
}

// Encode serializes the populated variant to JSON. Empty credentials encode
// to nil.
func (c Credentials) Encode() ([]byte, error) {
	switch {
	case c.NAS != nil:
		return json.Marshal(c.NAS)
	case c.Galera != nil:
		return json.Marshal(c.Galera)
	case c.Health != nil:
		return json.Marshal(c.Health)
	default:
		return nil, nil
	}
}

// NodeFilter narrows the set of nodes selected for a sweep.
type NodeFilter struct {
	NodeID int64    // 0 表示不过滤
	Type   NodeType // 空表示不过滤
}
