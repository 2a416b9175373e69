package research

import (
	"math"

	"github.com/pathwise/pathwise-backend/internal/types"
)

// Topic complexity buckets used by the structure matrix.
const (
	ComplexitySimple  = "simple"
	ComplexityMedium  = "medium"
	ComplexityComplex = "complex"
)

// ComplexityForDifficulty maps module difficulty to the complexity bucket
// the structure matrix keys on. Beginner modules are medium complexity:
// even introductory material splits into multiple parts for a novice.
func ComplexityForDifficulty(difficulty string) string {
	switch difficulty {
	case "intermediate", "expert":
		return ComplexityComplex
	default:
		return ComplexityMedium
	}
}

// CalculateStructure is pure: parts, per-part duration, depth and a spaced
// review schedule, all from the profile. The output is lesson metadata and
// prompt guidance only; it never splits a lesson into multiple rows.
func CalculateStructure(complexity, skillLevel, role, learningStyle, timeCommitment string) types.StructurePlan {
	numParts := basePartsFor(complexity, skillLevel)
	if role == "career_changer" {
		numParts++
	}

	base := 20
	switch learningStyle {
	case "video":
		base = 15
	case "mixed":
		base = 20
	case "reading":
		base = 25
	case "hands_on":
		base = 30
	}
	duration := int(math.Round(float64(base) * timeFactorFor(timeCommitment)))

	depth := "comprehensive"
	switch skillLevel {
	case "beginner":
		depth = "foundational"
	case "expert":
		depth = "advanced"
	}

	schedule := make([]types.SchedulePart, 0, numParts)
	for i := 0; i < numParts; i++ {
		schedule = append(schedule, types.SchedulePart{
			Part:          i + 1,
			Week:          i + 1,
			ReviewOffsets: []int{2, 7, 30},
		})
	}

	return types.StructurePlan{
		NumParts:        numParts,
		DurationMinutes: duration,
		ContentDepth:    depth,
		Schedule:        schedule,
	}
}

func basePartsFor(complexity, skillLevel string) int {
	switch complexity {
	case ComplexitySimple:
		return 1
	case ComplexityComplex:
		switch skillLevel {
		case "beginner":
			return 5
		case "expert":
			return 2
		default:
			return 3
		}
	default: // medium
		switch skillLevel {
		case "beginner":
			return 3
		case "expert":
			return 1
		default:
			return 2
		}
	}
}

func timeFactorFor(timeCommitment string) float64 {
	switch timeCommitment {
	case "1-3":
		return 0.7
	case "5-10":
		return 1.3
	case "10+":
		return 1.5
	default: // 3-5
		return 1.0
	}
}
