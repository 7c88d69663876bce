package assistant

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// ConsultationData is a summary of the patient's most recent consultation.
type ConsultationData struct {
	ChiefComplaint          string `json:"chief_complaint,omitempty"`
	HistoryOfPresentIllness string `json:"history_of_present_illness,omitempty"`
	Assessment              string `json:"assessment,omitempty"`
	TreatmentPlan           string `json:"treatment_plan,omitempty"`
	DoctorNotes             string `json:"doctor_notes,omitempty"`
}

type VitalsData struct {
	BloodType              string   `json:"blood_type,omitempty"`
	BloodPressureSystolic  *int     `json:"blood_pressure_systolic,omitempty"`
	BloodPressureDiastolic *int     `json:"blood_pressure_diastolic,omitempty"`
	HeartRateBPM           *int     `json:"heart_rate_bpm,omitempty"`
	TemperatureCelsius     *float64 `json:"temperature_celsius,omitempty"`
	RespiratoryRate        *int     `json:"respiratory_rate,omitempty"`
	OxygenSaturation       *float64 `json:"oxygen_saturation,omitempty"`
	GlucoseLevel           *float64 `json:"glucose_level,omitempty"`
	WeightKg               *float64 `json:"weight_kg,omitempty"`
	HeightCm               *float64 `json:"height_cm,omitempty"`
	BMI                    *float64 `json:"bmi,omitempty"`
}

type Habit struct {
	HabitType   string `json:"habit_type"`
	ActualValue string `json:"actual_value,omitempty"`
	TargetValue string `json:"target_value,omitempty"`
	TargetUnit  string `json:"target_unit,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

type HabitsData struct {
	Habits []Habit `json:"habits,omitempty"`
}

type Condition struct {
	ConditionName string `json:"condition_name"`
	Status        string `json:"status,omitempty"`
	Severity      string `json:"severity,omitempty"`
	Notes         string `json:"notes,omitempty"`
}

type ConditionsData struct {
	Conditions []Condition `json:"conditions,omitempty"`
}

type AIConsultationData struct {
	SymptomsDescribed     string   `json:"symptoms_described,omitempty"`
	AISuggestedConditions []string `json:"ai_suggested_conditions,omitempty"`
	AIRecommendations     string   `json:"ai_recommendations,omitempty"`
	RiskAssessment        string   `json:"risk_assessment,omitempty"`
}

// ContextData carries the optional clinical blobs a caller may attach to a
// chat request. Every field is independently optional.
type ContextData struct {
	Consultation   *ConsultationData   `json:"consultation_data,omitempty"`
	Vitals         *VitalsData         `json:"vitals_data,omitempty"`
	Habits         *HabitsData         `json:"habits_data,omitempty"`
	Conditions     *ConditionsData     `json:"conditions_data,omitempty"`
	AIConsultation *AIConsultationData `json:"ai_consultation_data,omitempty"`
}

// ImageInterpretation is the vision analyzer's output, rendered as the
// leading context section when present.
type ImageInterpretation struct {
	Description        string         `json:"description"`
	StructuredFindings map[string]any `json:"structured_findings,omitempty"`
	Confidence         string         `json:"confidence,omitempty"`
}

// BuildContext renders the populated context blobs into the labeled text
// block injected into the system prompt. Empty blobs contribute nothing and
// malformed sub-fields are skipped, never an error.
func BuildContext(data ContextData, img *ImageInterpretation) string {
	var parts []string

	if img != nil {
		if section := renderImageSection(img); section != "" {
			parts = append(parts, section)
		}
	}

	if cd := data.Consultation; cd != nil {
		var lines []string
		if cd.ChiefComplaint != "" {
			lines = append(lines, "Chief Complaint: "+cd.ChiefComplaint)
		}
		if cd.HistoryOfPresentIllness != "" {
			lines = append(lines, "History: "+cd.HistoryOfPresentIllness)
		}
		if cd.Assessment != "" {
			lines = append(lines, "Assessment: "+cd.Assessment)
		}
		if cd.TreatmentPlan != "" {
			lines = append(lines, "Treatment Plan: "+cd.TreatmentPlan)
		}
		if cd.DoctorNotes != "" {
			lines = append(lines, "Doctor Notes: "+cd.DoctorNotes)
		}
		if len(lines) > 0 {
			parts = append(parts, "=== Recent Consultation ===\n"+strings.Join(lines, "\n"))
		}
	}

	if vd := data.Vitals; vd != nil {
		var lines []string
		if vd.BloodType != "" {
			lines = append(lines, "Blood Type: "+vd.BloodType)
		}
		if vd.BloodPressureSystolic != nil && vd.BloodPressureDiastolic != nil {
			lines = append(lines, fmt.Sprintf("Blood Pressure: %d/%d mmHg", *vd.BloodPressureSystolic, *vd.BloodPressureDiastolic))
		}
		if vd.HeartRateBPM != nil {
			lines = append(lines, fmt.Sprintf("Heart Rate: %d bpm", *vd.HeartRateBPM))
		}
		if vd.TemperatureCelsius != nil {
			lines = append(lines, fmt.Sprintf("Temperature: %g°C", *vd.TemperatureCelsius))
		}
		if vd.RespiratoryRate != nil {
			lines = append(lines, fmt.Sprintf("Respiratory Rate: %d breaths/min", *vd.RespiratoryRate))
		}
		if vd.OxygenSaturation != nil {
			lines = append(lines, fmt.Sprintf("Oxygen Saturation: %g%%", *vd.OxygenSaturation))
		}
		if vd.GlucoseLevel != nil {
			lines = append(lines, fmt.Sprintf("Glucose Level: %g mg/dL", *vd.GlucoseLevel))
		}
		if vd.WeightKg != nil {
			lines = append(lines, fmt.Sprintf("Weight: %g kg", *vd.WeightKg))
		}
		if vd.HeightCm != nil {
			lines = append(lines, fmt.Sprintf("Height: %g cm", *vd.HeightCm))
		}
		if vd.BMI != nil {
			lines = append(lines, fmt.Sprintf("BMI: %g", *vd.BMI))
		}
		if len(lines) > 0 {
			parts = append(parts, "=== Vital Signs ===\n"+strings.Join(lines, "\n"))
		}
	}

	if hd := data.Habits; hd != nil && len(hd.Habits) > 0 {
		var lines []string
		for _, habit := range hd.Habits {
			if habit.HabitType == "" {
				continue
			}
			line := "- " + habit.HabitType
			switch {
			case habit.ActualValue != "" && habit.TargetValue != "":
				line += fmt.Sprintf(": %s/%s %s", habit.ActualValue, habit.TargetValue, habit.TargetUnit)
			case habit.ActualValue != "":
				line += fmt.Sprintf(": %s %s", habit.ActualValue, habit.TargetUnit)
			}
			line = strings.TrimRight(line, " ")
			if habit.Notes != "" {
				line += " (" + habit.Notes + ")"
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			parts = append(parts, "=== Patient Habits ===\n"+strings.Join(lines, "\n"))
		}
	}

	if cd := data.Conditions; cd != nil && len(cd.Conditions) > 0 {
		var lines []string
		for _, cond := range cd.Conditions {
			if cond.ConditionName == "" {
				continue
			}
			line := "- " + cond.ConditionName
			if cond.Status != "" {
				line += " (Status: " + cond.Status
				if cond.Severity != "" {
					line += ", Severity: " + cond.Severity
				}
				line += ")"
			}
			if cond.Notes != "" {
				line += "\n  Notes: " + cond.Notes
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			parts = append(parts, "=== Medical Conditions ===\n"+strings.Join(lines, "\n"))
		}
	}

	if ad := data.AIConsultation; ad != nil {
		var lines []string
		if ad.SymptomsDescribed != "" {
			lines = append(lines, "Previous Symptoms: "+ad.SymptomsDescribed)
		}
		if len(ad.AISuggestedConditions) > 0 {
			if b, err := json.Marshal(ad.AISuggestedConditions); err == nil {
				lines = append(lines, "Suggested Conditions: "+string(b))
			}
		}
		if ad.AIRecommendations != "" {
			lines = append(lines, "Previous Recommendations: "+ad.AIRecommendations)
		}
		if ad.RiskAssessment != "" {
			lines = append(lines, "Risk Assessment: "+ad.RiskAssessment)
		}
		if len(lines) > 0 {
			parts = append(parts, "=== Previous AI Consultation ===\n"+strings.Join(lines, "\n"))
		}
	}

	return strings.Join(parts, "\n\n")
}

func renderImageSection(img *ImageInterpretation) string {
	var lines []string
	if strings.TrimSpace(img.Description) != "" {
		lines = append(lines, strings.TrimSpace(img.Description))
	}
	if len(img.StructuredFindings) > 0 {
		keys := make([]string, 0, len(img.StructuredFindings))
		for k := range img.StructuredFindings {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines = append(lines, "Findings:")
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("  %s: %v", k, img.StructuredFindings[k]))
		}
	}
	if strings.TrimSpace(img.Confidence) != "" {
		lines = append(lines, "Confidence: "+strings.TrimSpace(img.Confidence))
	}
	if len(lines) == 0 {
		return ""
	}
	return "=== Image Analysis ===\n" + strings.Join(lines, "\n")
}
