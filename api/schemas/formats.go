package schemas

// -- Strict structured-output formats --
// Every property is required and nullable where optional, so the collaborator
// always returns the full shape.

func nullable(t string) JSONSchema {
	return JSONSchema{"type": []any{t, "null"}}
}

func normalizedAxis() JSONSchema {
	return JSONSchema{"type": []any{"number", "null"}, "minimum": 0.0, "maximum": 1.0}
}

func boxSchema() JSONSchema {
	return JSONSchema{
		"type":                 []any{"object", "null"},
		"additionalProperties": false,
		"properties": map[string]any{
			"left":   nullable("integer"),
			"top":    nullable("integer"),
			"right":  nullable("integer"),
			"bottom": nullable("integer"),
		},
		"required": []any{"left", "top", "right", "bottom"},
	}
}

// SingleActionFormat is the decision-round response: exactly one action.
func SingleActionFormat() ResponseFormat {
	kinds := make([]any, 0, len(ActionKinds()))
	for _, k := range ActionKinds() {
		kinds = append(kinds, k.String())
	}
	return ResponseFormat{
		Name: "SingleAction",
		Schema: JSONSchema{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"type":         JSONSchema{"type": "string", "enum": kinds},
				"x":            normalizedAxis(),
				"y":            normalizedAxis(),
				"x_px":         nullable("integer"),
				"y_px":         nullable("integer"),
				"button":       JSONSchema{"type": []any{"string", "null"}, "enum": []any{"left", "right", "middle", nil}},
				"keys":         JSONSchema{"type": []any{"array", "null"}, "items": JSONSchema{"type": "string"}},
				"text":         nullable("string"),
				"scroll_dy":    nullable("integer"),
				"bbox":         boxSchema(),
				"crop":         boxSchema(),
				"wait_seconds": JSONSchema{"type": []any{"integer", "null"}, "minimum": 0},
				"note":         nullable("string"),
			},
			"required": []any{"type", "x", "y", "x_px", "y_px", "button", "keys", "text", "scroll_dy", "bbox", "crop", "wait_seconds", "note"},
		},
	}
}

// VerifyGoalFormat is the strict yes/no verification response.
func VerifyGoalFormat() ResponseFormat {
	return ResponseFormat{
		Name: "VerifyGoal",
		Schema: JSONSchema{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"verdict": JSONSchema{"type": "string", "enum": []any{"yes", "no"}},
				"reason":  nullable("string"),
			},
			"required": []any{"verdict", "reason"},
		},
	}
}

// QaLocateFormat is the question-mode response: an answer plus an optional location.
func QaLocateFormat() ResponseFormat {
	return ResponseFormat{
		Name: "QaLocate",
		Schema: JSONSchema{
			"type":                 "object",
			"additionalProperties": false,
			"properties": map[string]any{
				"answer_text": nullable("string"),
				"x":           normalizedAxis(),
				"y":           normalizedAxis(),
				"x_px":        nullable("integer"),
				"y_px":        nullable("integer"),
				"bbox":        boxSchema(),
				"note":        nullable("string"),
			},
			"required": []any{"answer_text", "x", "y", "x_px", "y_px", "bbox", "note"},
		},
	}
}
