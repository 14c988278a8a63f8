package model

import (
	"testing"
	"time"
)

// ============================================================================
// Condition Tests
// ============================================================================

func TestCondition_Evaluate(t *testing.T) {
	tests := []struct {
		name      string
		condition Condition
		value     float64
		threshold float64
		expected  bool
	}{
		{"gt above", ConditionGT, 85, 80, true},
		{"gt equal", ConditionGT, 80, 80, false},
		{"gte equal", ConditionGTE, 80, 80, true},
		{"lt below", ConditionLT, 10, 20, true},
		{"lt equal", ConditionLT, 20, 20, false},
		{"lte equal", ConditionLTE, 20, 20, true},
		{"eq exact", ConditionEQ, 1, 1, true},
		{"eq computed value misses", ConditionEQ, 0.1 + 0.2, 0.3, false},
		{"neq different", ConditionNEQ, 0, 1, true},
		{"neq same", ConditionNEQ, 1, 1, false},
		{"unknown condition", Condition("between"), 1, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.condition.Evaluate(tt.value, tt.threshold); got != tt.expected {
				t.Errorf("%s.Evaluate(%v, %v) = %v, want %v", tt.condition, tt.value, tt.threshold, got, tt.expected)
			}
		})
	}
}

func TestParseCondition(t *testing.T) {
	tests := []struct {
		input    string
		expected Condition
		wantErr  bool
	}{
		{"gt", ConditionGT, false},
		{">", ConditionGT, false},
		{">=", ConditionGTE, false},
		{"<", ConditionLT, false},
		{"lte", ConditionLTE, false},
		{"==", ConditionEQ, false},
		{"!=", ConditionNEQ, false},
		{"approx", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseCondition(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCondition(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.expected {
				t.Errorf("ParseCondition(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCondition_Label(t *testing.T) {
	if got := ConditionGT.Label(); got != "Greater than" {
		t.Errorf("ConditionGT.Label() = %q, want %q", got, "Greater than")
	}
	if got := ConditionNEQ.Label(); got != "Not equal to" {
		t.Errorf("ConditionNEQ.Label() = %q, want %q", got, "Not equal to")
	}
}

func TestParseChannel(t *testing.T) {
	tests := []struct {
		input    string
		expected Channel
	}{
		{"mail", ChannelMail},
		{"email", ChannelMail},
		{"chat", ChannelSlack},
		{"slack", ChannelSlack},
		{"audit", ChannelDatabase},
		{"database", ChannelDatabase},
	}
	for _, tt := range tests {
		got, err := ParseChannel(tt.input)
		if err != nil {
			t.Fatalf("ParseChannel(%q) unexpected error: %v", tt.input, err)
		}
		if got != tt.expected {
			t.Errorf("ParseChannel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}

	if _, err := ParseChannel("pager"); err == nil {
		t.Error("ParseChannel(pager) should fail")
	}
}

// ============================================================================
// AlertRule Cooldown Tests
// ============================================================================

func TestAlertRule_IsOnCooldown(t *testing.T) {
	now := time.Date(2025, 1, 25, 12, 0, 0, 0, time.UTC)
	ago := func(d time.Duration) *time.Time {
		ts := now.Add(-d)
		return &ts
	}

	tests := []struct {
		name     string
		rule     AlertRule
		expected bool
	}{
		{"never triggered", AlertRule{Cooldown: 15 * time.Minute}, false},
		{"inside cooldown", AlertRule{Cooldown: 15 * time.Minute, LastTriggeredAt: ago(5 * time.Minute)}, true},
		{"cooldown just expired", AlertRule{Cooldown: 15 * time.Minute, LastTriggeredAt: ago(15 * time.Minute)}, false},
		{"zero cooldown uses default", AlertRule{LastTriggeredAt: ago(10 * time.Minute)}, true},
		{"default cooldown expired", AlertRule{LastTriggeredAt: ago(16 * time.Minute)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.IsOnCooldown(now); got != tt.expected {
				t.Errorf("IsOnCooldown() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAlertRule_IsGlobal(t *testing.T) {
	nodeID := int64(3)
	bound := AlertRule{NodeID: &nodeID}
	global := AlertRule{}

	if bound.IsGlobal() {
		t.Error("bound rule should not be global")
	}
	if !global.IsGlobal() {
		t.Error("rule without node should be global")
	}
}

// ============================================================================
// Message Tests
// ============================================================================

func TestAlertRule_Message(t *testing.T) {
	rule := &AlertRule{MetricType: "cpu", Condition: ConditionGT, Threshold: 80}

	got := rule.Message("nas-01", 92.456)
	want := "[nas-01] cpu: 92.46 is Greater than (threshold: Greater than 80.00)"
	if got != want {
		t.Errorf("Message() = %q, want %q", got, want)
	}

	if rule.ThresholdText() != "Greater than 80.00" {
		t.Errorf("ThresholdText() = %q", rule.ThresholdText())
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.00"},
		{73.5, "73.50"},
		{1.005, "1.01"},
		{-2.345, "-2.35"},
		{1234567.891, "1234567.89"},
	}

	for _, tt := range tests {
		if got := FormatValue(tt.in); got != tt.want {
			t.Errorf("FormatValue(%v) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
