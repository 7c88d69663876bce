package assistant

import (
	"strings"
	"testing"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestBuildContextEmpty(t *testing.T) {
	if got := BuildContext(ContextData{}, nil); got != "" {
		t.Errorf("empty context = %q, want empty string", got)
	}
}

func TestBuildContextSections(t *testing.T) {
	data := ContextData{
		Consultation: &ConsultationData{
			ChiefComplaint: "Persistent cough",
			Assessment:     "Likely viral bronchitis",
		},
		Vitals: &VitalsData{
			BloodPressureSystolic:  intPtr(130),
			BloodPressureDiastolic: intPtr(85),
			HeartRateBPM:           intPtr(72),
			TemperatureCelsius:     floatPtr(37.8),
		},
		Conditions: &ConditionsData{
			Conditions: []Condition{
				{ConditionName: "Asthma", Status: "ACTIVE", Severity: "MILD", Notes: "Uses inhaler"},
			},
		},
	}

	got := BuildContext(data, nil)

	wantFragments := []string{
		"=== Recent Consultation ===",
		"Chief Complaint: Persistent cough",
		"Assessment: Likely viral bronchitis",
		"=== Vital Signs ===",
		"Blood Pressure: 130/85 mmHg",
		"Heart Rate: 72 bpm",
		"=== Medical Conditions ===",
		"- Asthma (Status: ACTIVE, Severity: MILD)",
		"  Notes: Uses inhaler",
	}
	for _, frag := range wantFragments {
		if !strings.Contains(got, frag) {
			t.Errorf("context missing %q\n%s", frag, got)
		}
	}
	if strings.Contains(got, "=== Patient Habits ===") {
		t.Error("absent habits blob must not render a section")
	}

	// Sections are joined with a blank line.
	if !strings.Contains(got, "===\nChief Complaint") {
		t.Error("section header should be followed directly by its lines")
	}
	if strings.Count(got, "\n\n=== ") != 2 {
		t.Errorf("expected two blank-line joins between three sections:\n%s", got)
	}
}

func TestBuildContextEmptyBlobsSkipped(t *testing.T) {
	data := ContextData{
		Consultation: &ConsultationData{},
		Habits:       &HabitsData{},
		Conditions:   &ConditionsData{Conditions: []Condition{{}}},
	}
	if got := BuildContext(data, nil); got != "" {
		t.Errorf("blobs without populated fields must render nothing, got %q", got)
	}
}

func TestBuildContextHabits(t *testing.T) {
	data := ContextData{
		Habits: &HabitsData{Habits: []Habit{
			{HabitType: "Exercise", ActualValue: "2", TargetValue: "5", TargetUnit: "sessions/week"},
			{HabitType: "Smoking", Notes: "quit 2 years ago"},
		}},
	}
	got := BuildContext(data, nil)
	if !strings.Contains(got, "- Exercise: 2/5 sessions/week") {
		t.Errorf("habit with target missing:\n%s", got)
	}
	if !strings.Contains(got, "- Smoking (quit 2 years ago)") {
		t.Errorf("habit notes missing:\n%s", got)
	}
}

func TestBuildContextImageLeads(t *testing.T) {
	data := ContextData{
		Vitals: &VitalsData{HeartRateBPM: intPtr(88)},
	}
	img := &ImageInterpretation{
		Description:        "Chest X-ray showing mild opacity in the lower left lobe.",
		StructuredFindings: map[string]any{"region": "lower left lobe", "opacity": "mild"},
		Confidence:         "MEDIUM",
	}

	got := BuildContext(data, img)
	if !strings.HasPrefix(got, "=== Image Analysis ===") {
		t.Errorf("image section must lead the context:\n%s", got)
	}
	for _, frag := range []string{
		"Chest X-ray showing mild opacity",
		"  opacity: mild",
		"  region: lower left lobe",
		"Confidence: MEDIUM",
		"=== Vital Signs ===",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("context missing %q\n%s", frag, got)
		}
	}
}

func TestBuildContextAIConsultation(t *testing.T) {
	data := ContextData{
		AIConsultation: &AIConsultationData{
			SymptomsDescribed:     "headache and dizziness",
			AISuggestedConditions: []string{"migraine", "dehydration"},
			RiskAssessment:        "MEDIUM",
		},
	}
	got := BuildContext(data, nil)
	for _, frag := range []string{
		"=== Previous AI Consultation ===",
		"Previous Symptoms: headache and dizziness",
		`Suggested Conditions: ["migraine","dehydration"]`,
		"Risk Assessment: MEDIUM",
	} {
		if !strings.Contains(got, frag) {
			t.Errorf("context missing %q\n%s", frag, got)
		}
	}
}
