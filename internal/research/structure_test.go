package research

import (
	"reflect"
	"testing"
)

func TestCalculateStructureParts(t *testing.T) {
	tests := []struct {
		name       string
		complexity string
		skillLevel string
		role       string
		want       int
	}{
		{"simple any level", ComplexitySimple, "beginner", "student", 1},
		{"simple expert", ComplexitySimple, "expert", "professional", 1},
		{"medium beginner", ComplexityMedium, "beginner", "student", 3},
		{"medium intermediate", ComplexityMedium, "intermediate", "professional", 2},
		{"medium expert", ComplexityMedium, "expert", "professional", 1},
		{"complex beginner", ComplexityComplex, "beginner", "student", 5},
		{"complex intermediate", ComplexityComplex, "intermediate", "professional", 3},
		{"complex expert", ComplexityComplex, "expert", "professional", 2},
		{"career changer adds one part", ComplexityMedium, "intermediate", "career_changer", 3},
		{"career changer on complex beginner", ComplexityComplex, "beginner", "career_changer", 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := CalculateStructure(tt.complexity, tt.skillLevel, tt.role, "mixed", "3-5")
			if plan.NumParts != tt.want {
				t.Fatalf("NumParts = %d, want %d", plan.NumParts, tt.want)
			}
			if len(plan.Schedule) != tt.want {
				t.Fatalf("Schedule has %d parts, want %d", len(plan.Schedule), tt.want)
			}
		})
	}
}

func TestCalculateStructureDuration(t *testing.T) {
	tests := []struct {
		style      string
		commitment string
		want       int
	}{
		{"video", "3-5", 15},
		{"mixed", "3-5", 20},
		{"reading", "3-5", 25},
		{"hands_on", "3-5", 30},
		{"hands_on", "1-3", 21},  // 30 * 0.7
		{"hands_on", "5-10", 39}, // 30 * 1.3
		{"hands_on", "10+", 45},  // 30 * 1.5
		{"video", "1-3", 11},     // 15 * 0.7 = 10.5, rounds up
		{"reading", "5-10", 33},  // 25 * 1.3 = 32.5, rounds up
	}
	for _, tt := range tests {
		t.Run(tt.style+"/"+tt.commitment, func(t *testing.T) {
			plan := CalculateStructure(ComplexityMedium, "intermediate", "professional", tt.style, tt.commitment)
			if plan.DurationMinutes != tt.want {
				t.Fatalf("DurationMinutes = %d, want %d", plan.DurationMinutes, tt.want)
			}
		})
	}
}

func TestCalculateStructureDepth(t *testing.T) {
	tests := []struct {
		skill string
		want  string
	}{
		{"beginner", "foundational"},
		{"intermediate", "comprehensive"},
		{"expert", "advanced"},
	}
	for _, tt := range tests {
		plan := CalculateStructure(ComplexityMedium, tt.skill, "professional", "mixed", "3-5")
		if plan.ContentDepth != tt.want {
			t.Fatalf("skill %s: ContentDepth = %q, want %q", tt.skill, plan.ContentDepth, tt.want)
		}
	}
}

func TestCalculateStructureSchedule(t *testing.T) {
	plan := CalculateStructure(ComplexityMedium, "beginner", "student", "mixed", "3-5")
	if len(plan.Schedule) != 3 {
		t.Fatalf("expected 3 schedule parts, got %d", len(plan.Schedule))
	}
	for i, part := range plan.Schedule {
		if part.Part != i+1 || part.Week != i+1 {
			t.Fatalf("part %d: got part=%d week=%d", i, part.Part, part.Week)
		}
		if !reflect.DeepEqual(part.ReviewOffsets, []int{2, 7, 30}) {
			t.Fatalf("part %d: review offsets = %v", i, part.ReviewOffsets)
		}
	}
}

// Beginner student on a hands-on schedule with a 3-5 hour commitment: three
// foundational parts of 30 minutes each.
func TestCalculateStructureBeginnerHandsOn(t *testing.T) {
	complexity := ComplexityForDifficulty("beginner")
	plan := CalculateStructure(complexity, "beginner", "student", "hands_on", "3-5")
	if plan.NumParts != 3 {
		t.Fatalf("NumParts = %d, want 3", plan.NumParts)
	}
	if plan.DurationMinutes != 30 {
		t.Fatalf("DurationMinutes = %d, want 30", plan.DurationMinutes)
	}
	if plan.ContentDepth != "foundational" {
		t.Fatalf("ContentDepth = %q, want foundational", plan.ContentDepth)
	}
}

func TestComplexityForDifficulty(t *testing.T) {
	tests := []struct {
		difficulty string
		want       string
	}{
		{"beginner", ComplexityMedium},
		{"intermediate", ComplexityComplex},
		{"expert", ComplexityComplex},
		{"", ComplexityMedium},
	}
	for _, tt := range tests {
		if got := ComplexityForDifficulty(tt.difficulty); got != tt.want {
			t.Fatalf("ComplexityForDifficulty(%q) = %q, want %q", tt.difficulty, got, tt.want)
		}
	}
}
