package model

// GaleraNodeStatus is the health classification of one cluster member.
type GaleraNodeStatus string

const (
	GaleraStatusHealthy  GaleraNodeStatus = "healthy"  // 正常
	GaleraStatusWarning  GaleraNodeStatus = "warning"  // 警告
	GaleraStatusCritical GaleraNodeStatus = "critical" // 严重
)

// LocalStateComment returns the wsrep_local_state_comment fallback for a
// numeric wsrep_local_state.
func LocalStateComment(state int) string {
	switch state {
	case 1:
		return "Joining"
	case 2:
		return "Donor/Desynced"
	case 3:
		return "Joined"
	case 4:
		return "Synced"
	default:
		return "Unknown"
	}
}

// GaleraMember is the latest known state of one galera node.
type GaleraMember struct {
	NodeID        int64            `json:"node_id"`        // 节点 ID
	Name          string           `json:"name"`           // 节点名称
	Host          string           `json:"host"`           // 主机地址
	ClusterSize   int              `json:"cluster_size"`   // 集群规模
	ClusterStatus string           `json:"cluster_status"` // Primary / Non-Primary
	Ready         bool             `json:"ready"`          // wsrep_ready
	Connected     bool             `json:"connected"`      // wsrep_connected
	LocalState    int              `json:"local_state"`    // wsrep_local_state
	StateComment  string           `json:"state_comment"`  // 状态说明
	FlowControl   float64          `json:"flow_control"`   // 流控暂停比例
	Status        GaleraNodeStatus `json:"status"`         // 综合状态
	HasData       bool             `json:"has_data"`       // 是否有新鲜数据
}

// Classify derives the member status: not ready or not connected is
// critical, Synced is healthy, joining states are warnings.
func (m *GaleraMember) Classify() GaleraNodeStatus {
	if !m.Ready || !m.Connected {
		return GaleraStatusCritical
	}
	switch m.LocalState {
	case 4:
		return GaleraStatusHealthy
	case 1, 2, 3:
		return GaleraStatusWarning
	default:
		return GaleraStatusCritical
	}
}

// GaleraCluster is the roll-up of all galera members.
type GaleraCluster struct {
	Members      []*GaleraMember  `json:"members"`       // 成员列表
	ExpectedSize int              `json:"expected_size"` // 期望规模
	HealthyCount int              `json:"healthy_count"` // 正常成员数
	Status       GaleraNodeStatus `json:"status"`        // 集群状态
}
