package homeassistant

import (
	"testing"
)

func testServices() map[string]map[string]Service {
	return map[string]map[string]Service{
		"light": {
			"turn_on": {
				Name:        "Turn on",
				Description: "Turn on one or more lights.",
				Fields: map[string]ServiceField{
					"brightness_pct": {
						Description: "Brightness percentage.",
						Selector:    map[string]any{"number": map[string]any{"min": 0.0, "max": 100.0}},
					},
					"rgb_color": {
						Selector: map[string]any{"select": map[string]any{"multiple": true}},
					},
				},
			},
			"turn_off": {Description: "Turn off one or more lights."},
		},
		"climate": {
			"set_hvac_mode": {
				Description: "Set HVAC operation mode.",
				Fields: map[string]ServiceField{
					"hvac_mode": {
						Description: "Mode to set.",
						Required:    true,
						Selector: map[string]any{"select": map[string]any{
							"options": []any{"heat", "cool", "auto"},
						}},
					},
				},
			},
		},
	}
}

func findTool(tools []map[string]any, name string) map[string]any {
	for _, tool := range tools {
		if toolName(tool) == name {
			return tool["function"].(map[string]any)
		}
	}
	return nil
}

func TestServicesToTools_AllDomains(t *testing.T) {
	tools := ServicesToTools(testServices(), "")
	if len(tools) != 3 {
		t.Fatalf("tools len = %d, want 3", len(tools))
	}
	for _, name := range []string{"light_turn_on", "light_turn_off", "climate_set_hvac_mode"} {
		if findTool(tools, name) == nil {
			t.Errorf("missing tool %q", name)
		}
	}
}

func TestServicesToTools_DomainFilter(t *testing.T) {
	tools := ServicesToTools(testServices(), "climate")
	if len(tools) != 1 {
		t.Fatalf("tools len = %d, want 1", len(tools))
	}
	if findTool(tools, "climate_set_hvac_mode") == nil {
		t.Error("expected climate_set_hvac_mode")
	}
}

func TestServicesToTools_SortedByName(t *testing.T) {
	tools := ServicesToTools(testServices(), "")
	var prev string
	for _, tool := range tools {
		name := toolName(tool)
		if prev != "" && name < prev {
			t.Errorf("tools not sorted: %q after %q", name, prev)
		}
		prev = name
	}
}

func TestServiceToTool_FieldTypes(t *testing.T) {
	tools := ServicesToTools(testServices(), "light")
	fn := findTool(tools, "light_turn_on")
	params := fn["parameters"].(map[string]any)
	props := params["properties"].(map[string]any)

	brightness := props["brightness_pct"].(map[string]any)
	if brightness["type"] != "number" {
		t.Errorf("brightness_pct type = %v, want number", brightness["type"])
	}

	if _, ok := props["entity_id"]; !ok {
		t.Error("every service tool should accept entity_id")
	}
}

func TestServiceToTool_ArrayParamGetsHint(t *testing.T) {
	tools := ServicesToTools(testServices(), "light")
	fn := findTool(tools, "light_turn_on")
	props := fn["parameters"].(map[string]any)["properties"].(map[string]any)

	rgb := props["rgb_color"].(map[string]any)
	if rgb["type"] != "array" {
		t.Fatalf("rgb_color type = %v, want array", rgb["type"])
	}
	if rgb["description"] != arrayParamHint {
		t.Errorf("array param without description must get the injected hint, got %v", rgb["description"])
	}
}

func TestServiceToTool_SelectEnumAndRequired(t *testing.T) {
	tools := ServicesToTools(testServices(), "climate")
	fn := findTool(tools, "climate_set_hvac_mode")
	params := fn["parameters"].(map[string]any)
	props := params["properties"].(map[string]any)

	mode := props["hvac_mode"].(map[string]any)
	enum, ok := mode["enum"].([]string)
	if !ok || len(enum) != 3 {
		t.Errorf("hvac_mode enum = %v", mode["enum"])
	}

	required := params["required"].([]string)
	if len(required) != 1 || required[0] != "hvac_mode" {
		t.Errorf("required = %v, want [hvac_mode]", required)
	}

	// A described array keeps its own description; a described select
	// keeps its description too.
	if mode["description"] != "Mode to set." {
		t.Errorf("description = %v", mode["description"])
	}
}

func TestServiceToTool_MissingDescriptionFallback(t *testing.T) {
	tools := ServicesToTools(map[string]map[string]Service{
		"switch": {"toggle": {}},
	}, "")
	fn := findTool(tools, "switch_toggle")
	if fn["description"] != "Call the switch.toggle service" {
		t.Errorf("description = %v", fn["description"])
	}
}
