package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"fmt"
	"strings"
)

// ComposeDocument renders the text that is embedded for an exercise.
// Field order and labels are fixed: vectors in an existing index were
// computed from exactly this text.
func ComposeDocument(ex *domain.Exercise) string {
	parts := []string{
		fmt.Sprintf("动作名称: %s (%s)", ex.Name, ex.EnglishName),
		"类别: " + ex.Category,
		"目标肌群: " + strings.Join(ex.TargetMuscles, ", "),
		"设备: " + ex.Equipment,
		"难度: " + ex.Difficulty,
		"描述: " + ex.Description,
		"要点: " + strings.Join(ex.Tips, " "),
		"常见错误: " + strings.Join(ex.CommonMistakes, ", "),
	}
	return strings.Join(parts, " ")
}

// Query phrases synthesized for browse and recommendation lookups.

func categoryQuery(category string) string {
	return category + "训练动作"
}

func equipmentQuery(equipment string) string {
	return "使用" + equipment + "的训练动作"
}

func recommendQuery(goal, equipment, difficulty string) string {
	return goal + " " + equipment + " " + difficulty
}
