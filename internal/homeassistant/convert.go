package homeassistant

import (
	"fmt"
	"sort"
)

// arrayParamHint is injected as the description for array-typed
// parameters whose service schema has none. Models reliably pass a bare
// string for an undescribed array parameter, which HA then rejects.
const arrayParamHint = "List of values. Provide a JSON array even for a single value."

// ServicesToTools converts the service registry into OpenAI-format tool
// definitions, optionally filtered by domain. Tool names take the form
// "<domain>_<service>" (e.g. "light_turn_on"). Output is sorted by tool
// name so discovery results are stable across calls.
func ServicesToTools(services map[string]map[string]Service, domain string) []map[string]any {
	var tools []map[string]any

	for domainName, domainServices := range services {
		if domain != "" && domainName != domain {
			continue
		}
		for serviceName, svc := range domainServices {
			tools = append(tools, serviceToTool(domainName, serviceName, svc))
		}
	}

	sort.Slice(tools, func(i, j int) bool {
		return toolName(tools[i]) < toolName(tools[j])
	})
	return tools
}

func toolName(tool map[string]any) string {
	fn, _ := tool["function"].(map[string]any)
	name, _ := fn["name"].(string)
	return name
}

func serviceToTool(domain, service string, svc Service) map[string]any {
	description := svc.Description
	if description == "" {
		description = fmt.Sprintf("Call the %s.%s service", domain, service)
	}

	properties := map[string]any{
		"entity_id": map[string]any{
			"type":        "string",
			"description": fmt.Sprintf("Target entity, e.g. %s.living_room", domain),
		},
	}
	var required []string

	// Stable field order keeps schemas deterministic.
	fieldNames := make([]string, 0, len(svc.Fields))
	for name := range svc.Fields {
		fieldNames = append(fieldNames, name)
	}
	sort.Strings(fieldNames)

	for _, name := range fieldNames {
		field := svc.Fields[name]
		properties[name] = fieldToProperty(field)
		if field.Required {
			required = append(required, name)
		}
	}

	if required == nil {
		required = []string{}
	}

	return map[string]any{
		"type": "function",
		"function": map[string]any{
			"name":        domain + "_" + service,
			"description": description,
			"parameters": map[string]any{
				"type":       "object",
				"properties": properties,
				"required":   required,
			},
		},
	}
}

// fieldToProperty maps a service field's selector to a JSON Schema
// property.
func fieldToProperty(field ServiceField) map[string]any {
	prop := map[string]any{
		"type":        "string",
		"description": field.Description,
	}

	for selector, cfg := range field.Selector {
		switch selector {
		case "number":
			prop["type"] = "number"
		case "boolean":
			prop["type"] = "boolean"
		case "object":
			prop["type"] = "object"
		case "select":
			opts, multiple := selectOptions(cfg)
			if multiple {
				items := map[string]any{"type": "string"}
				if len(opts) > 0 {
					items["enum"] = opts
				}
				prop["type"] = "array"
				prop["items"] = items
			} else if len(opts) > 0 {
				prop["enum"] = opts
			}
		}
	}

	if prop["type"] == "array" && field.Description == "" {
		prop["description"] = arrayParamHint
	}

	return prop
}

// selectOptions extracts the option list and multiple flag from a
// select selector. Options arrive either as plain strings or as
// {label, value} objects.
func selectOptions(cfg any) (options []string, multiple bool) {
	m, ok := cfg.(map[string]any)
	if !ok {
		return nil, false
	}
	multiple, _ = m["multiple"].(bool)

	raw, _ := m["options"].([]any)
	for _, o := range raw {
		switch v := o.(type) {
		case string:
			options = append(options, v)
		case map[string]any:
			if val, ok := v["value"].(string); ok {
				options = append(options, val)
			}
		}
	}
	return options, multiple
}
