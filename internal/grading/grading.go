// Package grading holds the pure grade arithmetic: weighted finals, letter
// bands, GPA and academic standing.
package grading

import (
	"math"

	"github.com/noah-isme/registrar-api/internal/models"
)

// WeightTolerance absorbs float noise when comparing weight totals to 100.
const WeightTolerance = 1e-6

// Result is a computed final grade.
type Result struct {
	Percentage float64
	Letter     models.Letter
	Points     float64
}

// roundingSlack is added in hundredths before rounding so a half that binary
// floating point stores as x.xx4999... still rounds up.
const roundingSlack = 1e-7

// RoundHalfUp rounds v to two decimals, halves away from zero.
func RoundHalfUp(v float64) float64 {
	return math.Round(v*100+math.Copysign(roundingSlack, v)) / 100
}

// WeightTotal sums assessment weights.
func WeightTotal(assessments []models.Assessment) float64 {
	var total float64
	for _, a := range assessments {
		total += a.Weight
	}
	return total
}

// WeightsComplete reports whether the weights total exactly 100.
func WeightsComplete(assessments []models.Assessment) bool {
	return math.Abs(WeightTotal(assessments)-100) <= WeightTolerance
}

// Missing returns the IDs of assessments without a grade in grades, which is
// keyed by assessment ID. A recorded zero counts as graded.
func Missing(assessments []models.Assessment, grades map[string]float64) []string {
	var out []string
	for _, a := range assessments {
		if _, ok := grades[a.ID]; !ok {
			out = append(out, a.ID)
		}
	}
	return out
}

// ComputeFinal returns the weighted final grade, or nil when there are no
// assessments or any assessment is still ungraded.
func ComputeFinal(assessments []models.Assessment, grades map[string]float64) *Result {
	if len(assessments) == 0 || len(Missing(assessments, grades)) > 0 {
		return nil
	}
	var sum float64
	for _, a := range assessments {
		if a.TotalPoints <= 0 {
			return nil
		}
		sum += grades[a.ID] / a.TotalPoints * a.Weight
	}
	pct := RoundHalfUp(math.Min(100, math.Max(0, sum)))
	letter, points := Band(pct)
	return &Result{Percentage: pct, Letter: letter, Points: points}
}

// Band maps a percentage to its letter and grade points.
func Band(pct float64) (models.Letter, float64) {
	switch {
	case pct >= 70:
		return models.LetterA, 5
	case pct >= 60:
		return models.LetterB, 4
	case pct >= 50:
		return models.LetterC, 3
	case pct >= 45:
		return models.LetterD, 2
	case pct >= 40:
		return models.LetterE, 1
	default:
		return models.LetterF, 0
	}
}

// GPA is the credit-weighted mean of grade points, rounded to two decimals.
// It returns 0 and 0 credits for an empty set.
func GPA(entries []models.TranscriptEntry) (gpa float64, credits float64) {
	var weighted float64
	for _, e := range entries {
		weighted += e.GradePoints * e.Credits
		credits += e.Credits
	}
	if credits == 0 {
		return 0, 0
	}
	return RoundHalfUp(weighted / credits), credits
}

// Standing buckets a (rounded) term GPA.
func Standing(gpa float64) models.Standing {
	switch {
	case gpa >= 4.5:
		return models.StandingFirstClass
	case gpa >= 3.5:
		return models.StandingSecondUpper
	case gpa >= 2.4:
		return models.StandingSecondLower
	case gpa >= 1.5:
		return models.StandingThirdClass
	default:
		return models.StandingProbation
	}
}
