package planner

import (
	"fmt"
	"strings"

	"storyboard-server/internal/model"

	"go.uber.org/zap"
)

// RepairOptions - настройки детерминированного ремонта кадра.
type RepairOptions struct {
	// ForcePromptRewrite принудительно перезаписывает промпты обоих
	// ключевых кадров фолбэк-шаблоном независимо от их содержимого.
	ForcePromptRewrite bool
}

// needsRepair: ремонт запускается при общем грейде fail либо при
// провале одной из критических проверок.
func needsRepair(a model.ShotQualityAssessment) bool {
	if a.Grade == model.GradeFail {
		return true
	}
	for _, check := range a.Checks {
		if (check.Key == "required_fields" || check.Key == "keyframe_structure") && !check.Passed {
			return true
		}
	}
	return false
}

// RepairShot детерминированно чинит кадр. Идемпотентен: повторный
// запуск на уже починенном кадре ничего не меняет.
// sceneIndex - позиция кадра внутри его сцены; earlier - кадры той же
// сцены, стоящие раньше (для дедупликации текста действия).
func RepairShot(shot *model.Shot, sceneIndex int, earlier []model.Shot, script *model.ScriptData, opts RepairOptions) {
	// Пустое действие - позиционный фолбэк из метаданных сцены
	if strings.TrimSpace(shot.ActionSummary) == "" {
		shot.ActionSummary = positionalAction(shot.SceneID, sceneIndex, script)
	}

	// Дедупликация действия внутри сцены суффиксом с номером кадра
	for _, other := range earlier {
		if normalizeText(other.ActionSummary) == normalizeText(shot.ActionSummary) {
			shot.ActionSummary = fmt.Sprintf("%s（镜头%d）", shot.ActionSummary, sceneIndex+1)
			break
		}
	}

	if strings.TrimSpace(shot.CameraMovement) == "" {
		shot.CameraMovement = DefaultCameraMovement
	}
	if strings.TrimSpace(shot.ShotSize) == "" {
		shot.ShotSize = DefaultShotSize
	}

	shot.Characters = filterKnownIDs(shot.Characters, characterIDSet(script))
	shot.Props = filterKnownIDs(shot.Props, propIDSet(script))

	if opts.ForcePromptRewrite {
		for i := range shot.Keyframes {
			phase := startPhaseWord
			if shot.Keyframes[i].Type == model.KeyframeEnd {
				phase = endPhaseWord
			}
			shot.Keyframes[i].VisualPrompt = fallbackKeyframePrompt(shot.ActionSummary, phase, script.VisualStyle)
		}
	}

	// Ремонт мог оставить кадр без пары ключевых кадров - добиваем
	NormalizeShot(shot, script)
}

// positionalAction строит фолбэк-описание действия из метаданных сцены
// и позиции кадра.
func positionalAction(sceneID string, sceneIndex int, script *model.ScriptData) string {
	base := sceneID
	for _, scene := range script.Scenes {
		if scene.ID == sceneID {
			if strings.TrimSpace(scene.Location) != "" {
				base = scene.Location
			}
			break
		}
	}
	return fmt.Sprintf("%s，第%d镜", base, sceneIndex+1)
}

// RunQualityLoop прогоняет все кадры через цикл оценка -> ремонт ->
// переоценка. Ремонт выполняется не более одного раза на кадр; вторая
// оценка финальна и прикрепляется к кадру даже при грейде fail.
func RunQualityLoop(shots []model.Shot, script *model.ScriptData, log *zap.Logger) {
	sceneIndex := 0
	for i := range shots {
		var prev *model.Shot
		if i > 0 && shots[i-1].SceneID == shots[i].SceneID {
			prev = &shots[i-1]
			sceneIndex++
		} else {
			sceneIndex = 0
		}

		assessment := AssessShot(&shots[i], prev, script)
		if needsRepair(assessment) {
			log.Debug("Кадр требует ремонта",
				zap.String("shot_id", shots[i].ID),
				zap.Int("score", assessment.Score),
				zap.String("grade", string(assessment.Grade)))

			earlier := sameSceneEarlier(shots, i)
			RepairShot(&shots[i], sceneIndex, earlier, script, RepairOptions{ForcePromptRewrite: true})
			assessment = AssessShot(&shots[i], prev, script)
		}
		shots[i].Quality = &assessment

		recordShotGrade(string(assessment.Grade))
		if assessment.Grade != model.GradePass {
			log.Info("Кадр не прошел проверку качества",
				zap.String("shot_id", shots[i].ID),
				zap.Int("score", assessment.Score),
				zap.String("grade", string(assessment.Grade)),
				zap.String("summary", assessment.Summary))
		}
	}
}

// sameSceneEarlier возвращает кадры той же сцены, стоящие до i-го.
func sameSceneEarlier(shots []model.Shot, i int) []model.Shot {
	start := i
	for start > 0 && shots[start-1].SceneID == shots[i].SceneID {
		start--
	}
	return shots[start:i]
}
