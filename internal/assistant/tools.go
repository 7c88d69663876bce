package assistant

import (
	"github.com/hueai/medassist-backend/internal/platform/openrouter"
)

const (
	ToolWebSearch          = "tavily_web_search"
	ToolLabExplanation     = "generate_lab_explanation"
	ToolImagingExplanation = "generate_imaging_explanation"
	ToolMedicalSummary     = "generate_medical_summary"
)

var toolDefinitions = []openrouter.Tool{
	{
		Type: "function",
		Function: openrouter.FunctionDef{
			Name: ToolWebSearch,
			Description: "Search the web for current medical information, research studies, " +
				"drug interactions, treatment guidelines, and health-related topics. " +
				"Use this when you need up-to-date information not in your training data, " +
				"or when the user asks about recent medical developments, specific medications, " +
				"or current health guidelines.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type": "string",
						"description": "The search query. Be specific and include medical terms. " +
							"Examples: 'latest cholesterol treatment guidelines 2025', " +
							"'metformin side effects and contraindications', " +
							"'symptoms of iron deficiency anemia'",
					},
					"search_depth": map[string]any{
						"type": "string",
						"enum": []string{"basic", "advanced"},
						"description": "Search depth. 'basic' for quick searches (faster, fewer sources). " +
							"'advanced' for comprehensive searches (slower, more sources). " +
							"Default: 'basic'",
						"default": "basic",
					},
					"topic": map[string]any{
						"type": "string",
						"enum": []string{"general", "news", "finance"},
						"description": "Topic category for search optimization. " +
							"Use 'general' for medical and health-related queries. " +
							"'news' for recent updates, 'finance' for financial topics. Default: 'general'",
						"default": "general",
					},
				},
				"required": []string{"query"},
			},
		},
	},
	{
		Type: "function",
		Function: openrouter.FunctionDef{
			Name: ToolLabExplanation,
			Description: "Generate a detailed, structured explanation of laboratory test results. " +
				"Use this when the user provides lab values or asks for interpretation of " +
				"blood work, urinalysis, metabolic panels, or other lab tests. " +
				"Creates a professional medical document with normal ranges, interpretations, " +
				"and clinical significance.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"test_type": map[string]any{
						"type": "string",
						"description": "Type of lab test. Examples: 'Complete Blood Count (CBC)', " +
							"'Lipid Panel', 'Comprehensive Metabolic Panel', " +
							"'Thyroid Function Tests', 'Hemoglobin A1c'",
					},
					"test_results": map[string]any{
						"type": "object",
						"description": "Test results as key-value pairs. Keys are test names, " +
							"values are the results with units. " +
							"Example: {'Total Cholesterol': '240 mg/dL', 'LDL': '160 mg/dL', 'HDL': '35 mg/dL'}",
					},
					"patient_context": map[string]any{
						"type": "string",
						"description": "Optional patient context like age, gender, existing conditions, " +
							"or symptoms that may help with interpretation. " +
							"Example: '45-year-old male with family history of heart disease'",
					},
				},
				"required": []string{"test_type", "test_results"},
			},
		},
	},
	{
		Type: "function",
		Function: openrouter.FunctionDef{
			Name: ToolImagingExplanation,
			Description: "Generate a detailed explanation of medical imaging results (X-rays, CT scans, MRI, etc.). " +
				"Use this when the user describes imaging findings or asks for help understanding " +
				"radiology reports. Creates an educational document explaining findings in layman's terms " +
				"with clinical context and recommendations.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"imaging_type": map[string]any{
						"type": "string",
						"description": "Type of imaging study. Examples: 'Chest X-ray', 'Abdominal CT', " +
							"'Brain MRI', 'Knee MRI', 'Mammogram', 'Ultrasound'",
					},
					"findings": map[string]any{
						"type": "string",
						"description": "Description of the imaging findings, either from a report or " +
							"as described by the patient. Can include technical terms or lay descriptions.",
					},
					"clinical_indication": map[string]any{
						"type": "string",
						"description": "Reason for the imaging study. Examples: 'Persistent cough', " +
							"'Abdominal pain', 'Follow-up after treatment', 'Screening'",
					},
					"patient_context": map[string]any{
						"type": "string",
						"description": "Optional patient context like age, relevant medical history, " +
							"or symptoms that may help with interpretation.",
					},
				},
				"required": []string{"imaging_type", "findings"},
			},
		},
	},
	{
		Type: "function",
		Function: openrouter.FunctionDef{
			Name: ToolMedicalSummary,
			Description: "Generate a comprehensive medical summary or educational document about " +
				"a health condition, treatment, or medical topic. Use this when the user " +
				"asks for detailed information about a disease, treatment options, " +
				"prevention strategies, or wants to understand a medical concept better.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"topic": map[string]any{
						"type": "string",
						"description": "The medical topic or condition to explain. " +
							"Examples: 'Type 2 Diabetes', 'Hypertension management', " +
							"'Asthma treatment options', 'COVID-19 prevention'",
					},
					"focus_areas": map[string]any{
						"type":  "array",
						"items": map[string]any{"type": "string"},
						"description": "Specific aspects to focus on. Options: 'symptoms', 'causes', " +
							"'diagnosis', 'treatment', 'prevention', 'complications', " +
							"'lifestyle', 'prognosis'. Leave empty for comprehensive overview.",
					},
					"patient_context": map[string]any{
						"type": "string",
						"description": "Optional patient context to personalize the summary. " +
							"Example: 'Recently diagnosed', 'Family history', 'Specific concerns about medication side effects'",
					},
				},
				"required": []string{"topic"},
			},
		},
	},
}

// ToolDefinitions returns the tool set handed to the model on every turn.
func ToolDefinitions() []openrouter.Tool {
	out := make([]openrouter.Tool, len(toolDefinitions))
	copy(out, toolDefinitions)
	return out
}
