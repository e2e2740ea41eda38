package planner_test

import (
	"testing"

	"storyboard-server/internal/planner"

	"github.com/stretchr/testify/assert"
)

func TestPlanBudget_TargetDominates(t *testing.T) {
	// 60s / 8s = 7.5 -> 8 кадров на 3 сцены: base=2, extra=2
	budgets := planner.PlanBudget(60, 8, 3)

	assert.Equal(t, []int{3, 3, 2}, budgets)
	assert.Equal(t, 8, planner.TotalShots(budgets))
}

func TestPlanBudget_SceneCountDominates(t *testing.T) {
	// 10s / 8s = 1 кадр, но сцен три - каждой минимум по одному
	budgets := planner.PlanBudget(10, 8, 3)

	assert.Equal(t, []int{1, 1, 1}, budgets)
}

func TestPlanBudget_EvenSplit(t *testing.T) {
	budgets := planner.PlanBudget(96, 8, 4)

	assert.Equal(t, []int{3, 3, 3, 3}, budgets)
	assert.Equal(t, 12, planner.TotalShots(budgets))
}

func TestPlanBudget_Deterministic(t *testing.T) {
	first := planner.PlanBudget(125, 7, 6)
	second := planner.PlanBudget(125, 7, 6)

	assert.Equal(t, first, second)
}

func TestPlanBudget_NoScenes(t *testing.T) {
	assert.Nil(t, planner.PlanBudget(60, 8, 0))
}

func TestPlanBudget_ZeroShotDurationFallsBack(t *testing.T) {
	// Некорректная длительность кадра заменяется дефолтной
	budgets := planner.PlanBudget(60, 0, 3)

	assert.Equal(t, []int{3, 3, 2}, budgets)
}
