package restriction

import "testing"

func TestRuleMatchesThermalCondition(t *testing.T) {
	rule, err := NewRule("thermal", `bucket == "restricted" && !isExpedited`)
	if err != nil {
		t.Fatalf("NewRule failed: %v", err)
	}

	restricted := rule.Cond.Evaluate(map[string]any{"bucket": "restricted", "isExpedited": false})
	if !restricted {
		t.Error("expected rule to match a restricted, non-expedited job")
	}

	notRestricted := rule.Cond.Evaluate(map[string]any{"bucket": "restricted", "isExpedited": true})
	if notRestricted {
		t.Error("expected rule not to match an expedited job")
	}
}

func TestSetChecksFirstMatch(t *testing.T) {
	batterySaver, err := NewRule("battery_saver", `batterySaverOn == true`)
	if err != nil {
		t.Fatalf("NewRule failed: %v", err)
	}
	dataSaver, err := NewRule("data_saver", `dataSaverOn == true`)
	if err != nil {
		t.Fatalf("NewRule failed: %v", err)
	}
	set := Set{batterySaver, dataSaver}

	name, restricted := set.Check(map[string]any{"batterySaverOn": true, "dataSaverOn": true})
	if !restricted || name != "battery_saver" {
		t.Errorf("expected first matching rule battery_saver, got %q (%v)", name, restricted)
	}

	name, restricted = set.Check(map[string]any{"batterySaverOn": false, "dataSaverOn": false})
	if restricted {
		t.Errorf("expected no restriction, got %q", name)
	}
}

func TestParseRejectsEmptyCondition(t *testing.T) {
	if _, err := Parse(""); err == nil {
		t.Error("expected error parsing an empty condition")
	}
}
