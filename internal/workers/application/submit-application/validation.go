package submitapplication

import (
	"soloparent-workers/internal/common/validation"
)

var inputSchema = validation.MustCompile(validation.JSONSchema{
	Type:     "object",
	Required: []string{"personalInfo"},
	Properties: map[string]validation.Property{
		"personalInfo": {
			Type:     "object",
			Required: []string{"surname", "givenName"},
			Properties: map[string]validation.Property{
				"surname":       {Type: "string", MinLength: validation.Int(1), MaxLength: validation.Int(80)},
				"givenName":     {Type: "string", MinLength: validation.Int(1), MaxLength: validation.Int(80)},
				"middleName":    {Type: "string", MaxLength: validation.Int(80)},
				"civilStatus":   {Type: "string", Enum: []string{"Single", "Married", "Widowed", "Separated", "Annulled"}},
				"sex":           {Type: "string", Enum: []string{"Male", "Female"}},
				"age":           {Type: "integer", Minimum: validation.Float(0), Maximum: validation.Float(130)},
				"email":         {Type: "string", Format: "email"},
				"mobileNumber":  {Type: "string", Pattern: validation.String(`^\+?[0-9 ()-]{7,20}$`)},
				"monthlyIncome": {Type: "number", Minimum: validation.Float(0)},
			},
		},
		"familyComposition": {
			Type:     "array",
			MaxItems: validation.Int(30),
			Items: &validation.Property{
				Type:     "object",
				Required: []string{"name"},
				Properties: map[string]validation.Property{
					"name":          {Type: "string", MinLength: validation.Int(1)},
					"age":           {Type: "integer", Minimum: validation.Float(0)},
					"sex":           {Type: "string", Enum: []string{"Male", "Female"}},
					"monthlyIncome": {Type: "number", Minimum: validation.Float(0)},
				},
			},
		},
		"attachments": {Type: "object"},
	},
})
