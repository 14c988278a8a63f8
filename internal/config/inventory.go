// Package config provides configuration management for the monitor.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"infra-monitor/internal/model"
)

// Inventory is the declarative list of nodes and alert rules applied to the
// store by `monitor inventory apply`.
type Inventory struct {
	Nodes []InventoryNode `yaml:"nodes" validate:"dive"`
	Rules []InventoryRule `yaml:"rules" validate:"dive"`
}

// InventoryNode describes one monitored node.
type InventoryNode struct {
	Name        string            `yaml:"name" validate:"required"`
	Type        string            `yaml:"type" validate:"required,oneof=synology docker galera laravel_app"`
	Host        string            `yaml:"host" validate:"required"`
	Port        int               `yaml:"port" validate:"gte=0,lte=65535"`
	Active      *bool             `yaml:"active"`
	Credentials map[string]string `yaml:"credentials"`
}

// InventoryRule describes one alert rule. An empty Node makes the rule global.
type InventoryRule struct {
	Name       string        `yaml:"name" validate:"required"`
	Node       string        `yaml:"node"`
	MetricType string        `yaml:"metric_type" validate:"required"`
	Condition  string        `yaml:"condition" validate:"required"`
	Threshold  float64       `yaml:"threshold"`
	Channel    string        `yaml:"channel" validate:"required"`
	Target     string        `yaml:"target"`
	Cooldown   time.Duration `yaml:"cooldown" validate:"gte=0"`
	Active     *bool         `yaml:"active"`
}

// LoadInventory reads and validates the inventory file.
func LoadInventory(path string) (*Inventory, error) {
	if path == "" {
		return nil, fmt.Errorf("inventory file path is required")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("inventory file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory file: %w", err)
	}

	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("failed to parse inventory file: %w", err)
	}

	if err := ValidateInventory(&inv); err != nil {
		return nil, err
	}

	return &inv, nil
}

// ValidateInventory checks struct tags, name uniqueness, rule references,
// conditions and channels.
func ValidateInventory(inv *Inventory) error {
	var validationErrors ValidationErrors

	if err := validate.Struct(inv); err != nil {
		validationErrors = append(validationErrors, collectFieldErrors(err)...)
	}

	nodeNames := make(map[string]bool, len(inv.Nodes))
	for i, n := range inv.Nodes {
		if nodeNames[n.Name] {
			validationErrors = append(validationErrors, &ValidationError{
				Field:   fmt.Sprintf("nodes[%d].name", i),
				Tag:     "unique",
				Value:   n.Name,
				Message: fmt.Sprintf("duplicate node name: %s", n.Name),
			})
		}
		nodeNames[n.Name] = true
	}

	ruleNames := make(map[string]bool, len(inv.Rules))
	for i, r := range inv.Rules {
		field := fmt.Sprintf("rules[%d]", i)
		if ruleNames[r.Name] {
			validationErrors = append(validationErrors, &ValidationError{
				Field:   field + ".name",
				Tag:     "unique",
				Value:   r.Name,
				Message: fmt.Sprintf("duplicate rule name: %s", r.Name),
			})
		}
		ruleNames[r.Name] = true

		if r.Node != "" && !nodeNames[r.Node] {
			validationErrors = append(validationErrors, &ValidationError{
				Field:   field + ".node",
				Tag:     "exists",
				Value:   r.Node,
				Message: fmt.Sprintf("rule references unknown node: %s", r.Node),
			})
		}
		if _, err := model.ParseCondition(r.Condition); err != nil && r.Condition != "" {
			validationErrors = append(validationErrors, &ValidationError{
				Field:   field + ".condition",
				Tag:     "condition",
				Value:   r.Condition,
				Message: err.Error(),
			})
		}
		if _, err := model.ParseChannel(r.Channel); err != nil && r.Channel != "" {
			validationErrors = append(validationErrors, &ValidationError{
				Field:   field + ".channel",
				Tag:     "channel",
				Value:   r.Channel,
				Message: err.Error(),
			})
		}
	}

	if len(validationErrors) > 0 {
		return validationErrors
	}
	return nil
}

// ToNode converts the inventory entry into a model.Node. The id is assigned
// by the store.
func (n *InventoryNode) ToNode() (*model.Node, error) {
	nodeType, err := model.ParseNodeType(n.Type)
	if err != nil {
		return nil, err
	}

	node := &model.Node{
		Name:   n.Name,
		Type:   nodeType,
		Host:   n.Host,
		Port:   n.Port,
		Active: n.Active == nil || *n.Active,
	}

	c := n.Credentials
	switch nodeType {
	case model.NodeTypeSynology:
		node.Credentials.NAS = &model.NASCredentials{Username: c["username"], Password: c["password"]}
	case model.NodeTypeGalera:
		node.Credentials.Galera = &model.GaleraCredentials{Username: c["username"], Password: c["password"], Database: c["database"]}
	case model.NodeTypeLaravelApp:
		node.Credentials.Health = &model.HealthCredentials{HealthEndpoint: c["health_endpoint"], HealthToken: c["health_token"]}
	}

	return node, nil
}

// ToRule converts the inventory entry into a model.AlertRule, resolving the
// bound node name through nodeIDs.
func (r *InventoryRule) ToRule(nodeIDs map[string]int64) (*model.AlertRule, error) {
	cond, err := model.ParseCondition(r.Condition)
	if err != nil {
		return nil, err
	}
	channel, err := model.ParseChannel(r.Channel)
	if err != nil {
		return nil, err
	}

	rule := &model.AlertRule{
		Name:       r.Name,
		MetricType: strings.TrimSpace(r.MetricType),
		Condition:  cond,
		Threshold:  r.Threshold,
		Channel:    channel,
		Target:     strings.TrimSpace(r.Target),
		Active:     r.Active == nil || *r.Active,
		Cooldown:   r.Cooldown,
	}

	if r.Node != "" {
		id, ok := nodeIDs[r.Node]
		if !ok {
			return nil, fmt.Errorf("rule %s references unknown node %s", r.Name, r.Node)
		}
		rule.NodeID = &id
	}

	return rule, nil
}
