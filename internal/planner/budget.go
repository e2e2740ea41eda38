package planner

import "math"

// PlanBudget распределяет общее число кадров по сценам.
// totalShots = max(round(target/shot), sceneCount), чтобы каждой сцене
// досталось не меньше одного кадра. Первые totalShots%sceneCount сцен
// в порядке сценария получают на один кадр больше.
func PlanBudget(targetDurationSec, shotDurationSec float64, sceneCount int) []int {
	if sceneCount <= 0 {
		return nil
	}
	if shotDurationSec <= 0 {
		shotDurationSec = DefaultShotDuration
	}

	roughShotCount := int(math.Round(targetDurationSec / shotDurationSec))
	totalShots := roughShotCount
	if totalShots < sceneCount {
		totalShots = sceneCount
	}

	base := totalShots / sceneCount
	extra := totalShots % sceneCount

	budgets := make([]int, sceneCount)
	for i := range budgets {
		budgets[i] = base
		if i < extra {
			budgets[i]++
		}
	}
	return budgets
}

// TotalShots возвращает суммарный бюджет кадров.
func TotalShots(budgets []int) int {
	total := 0
	for _, b := range budgets {
		total += b
	}
	return total
}

// DefaultShotDuration - базовая длительность кадра в секундах,
// если конфигурация не задала другую.
const DefaultShotDuration = 8
