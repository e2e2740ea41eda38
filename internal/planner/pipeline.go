package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storyboard-server/internal/config"
	"storyboard-server/internal/model"
	"storyboard-server/internal/service"

	"go.uber.org/zap"
)

var (
	// ErrNoScenes - сценарий без сцен; планировать нечего.
	ErrNoScenes = errors.New("сценарий не содержит сцен")
	// ErrEmptyPlan - ни одна сцена не дала кадров. Пустой план
	// наружу не отдаем молча.
	ErrEmptyPlan = errors.New("план не содержит ни одного кадра")
)

// Options - параметры одного запуска планирования.
type Options struct {
	// PreviousScript/PreviousShots - результат предыдущего запуска,
	// источник кэша переиспользования. Оба nil - без переиспользования.
	PreviousScript *model.ScriptData
	PreviousShots  []model.Shot
	// Observer получает события хода планирования. nil - без событий.
	Observer service.ProgressObserver
}

// Planner - оркестратор пайплайна планирования кадров.
// Владеет всем изменяемым состоянием запуска (накапливаемый список
// кадров, кэш переиспользования); остальные компоненты - чистые
// функции над своими входами.
type Planner struct {
	cfg       *config.Config
	generator *Generator
	logger    *zap.Logger
}

// New создает планировщик.
func New(cfg *config.Config, ai service.AIClient, log *zap.Logger) *Planner {
	return &Planner{
		cfg:       cfg,
		generator: NewGenerator(cfg, ai, log),
		logger:    log,
	}
}

// Plan строит полный план кадров для сценария.
// Сцены обрабатываются строго последовательно в порядке сценария,
// с паузой между сценами. Отмена контекста - единственная причина
// прервать пайплайн; сбои отдельной сцены превращаются в фолбэк-кадры.
func (p *Planner) Plan(ctx context.Context, script *model.ScriptData, opts Options) ([]model.Shot, error) {
	if len(script.Scenes) == 0 {
		return nil, ErrNoScenes
	}

	observer := opts.Observer
	if observer == nil {
		observer = service.NopObserver{}
	}

	startTime := time.Now()
	defer func() { recordPlanDuration(time.Since(startTime)) }()

	// Фиксируем базовую длительность кадра: дальнейшие изменения
	// конфигурации не должны менять арифметику запущенного плана
	if script.PlanningShotDuration <= 0 {
		script.PlanningShotDuration = p.cfg.PlanningShotDuration
	}

	budgets := PlanBudget(script.TargetDuration, script.PlanningShotDuration, len(script.Scenes))
	totalShots := TotalShots(budgets)
	p.logger.Info("Бюджет кадров рассчитан",
		zap.Int("scenes", len(script.Scenes)),
		zap.Int("total_shots", totalShots),
		zap.Float64("shot_duration", script.PlanningShotDuration))
	observer.PipelineStarted(len(script.Scenes), totalShots)

	cache := p.buildReuseCache(opts)
	if n := cache.Len(); n > 0 {
		p.logger.Info("Кэш переиспользования построен", zap.Int("groups", n))
	}

	allShots := make([]model.Shot, 0, totalShots)

	for i, scene := range script.Scenes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		observer.SceneStarted(i, scene.ID)

		shots, source, tier, err := p.planScene(ctx, i, scene, budgets[i], script, cache)
		if err != nil {
			// Сюда доходит только отмена
			return nil, err
		}

		recordSceneSource(string(source))
		allShots = append(allShots, shots...)
		observer.SceneCompleted(service.SceneProgress{
			SceneIndex: i,
			SceneID:    scene.ID,
			ShotCount:  len(shots),
			Source:     source,
			ActionTier: string(tier),
		})

		// Пауза между сценами для соблюдения лимитов внешнего API
		if i < len(script.Scenes)-1 {
			if err := sleepCtx(ctx, p.cfg.SceneDelay); err != nil {
				return nil, err
			}
		}
	}

	if len(allShots) == 0 {
		return nil, ErrEmptyPlan
	}

	reindexShots(allShots)

	if p.cfg.EnableQualityCheck {
		RunQualityLoop(allShots, script, p.logger)
	} else {
		// Выключенная проверка качества зачищает и старые оценки
		for i := range allShots {
			allShots[i].Quality = nil
		}
	}

	p.logger.Info("Планирование завершено",
		zap.Int("shots", len(allShots)),
		zap.Duration("duration", time.Since(startTime)))
	observer.PipelineCompleted(allShots)

	return allShots, nil
}

// planScene обрабатывает одну сцену: кэш переиспользования, затем
// внешняя генерация, затем фолбэк при сбое.
func (p *Planner) planScene(ctx context.Context, sceneIndex int, scene model.Scene, budget int, script *model.ScriptData, cache *ReuseCache) ([]model.Shot, service.SceneSource, ActionTier, error) {
	action := ResolveSceneAction(sceneIndex, script.Scenes, script.StoryParagraphs)
	p.logger.Debug("Текст сцены разрешен",
		zap.String("scene_id", scene.ID),
		zap.String("tier", string(action.Tier)),
		zap.Int("length", len(action.Text)))

	signature := SceneSignature(scene, action.Text, p.signatureParams(budget, script))
	if group, ok := cache.Pop(signature); ok {
		p.logger.Info("Сцена переиспользована из кэша",
			zap.String("scene_id", scene.ID),
			zap.String("signature", signature[:12]))
		RemapAssets(group, script)
		NormalizeShots(group, scene.ID, script)
		return group, service.SceneSourceReused, action.Tier, nil
	}

	shots, err := p.generator.GenerateShots(ctx, scene, action.Text, budget, script)
	if err != nil {
		if isCancellation(err) {
			return nil, "", action.Tier, err
		}
		// Сбой одной сцены не роняет пайплайн - синтезируем кадры
		p.logger.Warn("Генерация сцены не удалась, синтез фолбэк-кадров",
			zap.String("scene_id", scene.ID),
			zap.Error(err))
		shots = FallbackShots(scene, action.Text, budget)
		NormalizeShots(shots, scene.ID, script)
		return shots, service.SceneSourceFallback, action.Tier, nil
	}

	return shots, service.SceneSourceGenerated, action.Tier, nil
}

func (p *Planner) signatureParams(budget int, script *model.ScriptData) SignatureParams {
	return SignatureParams{
		ShotCount:   budget,
		VisualStyle: script.VisualStyle,
		Language:    script.Language,
		ModelID:     p.cfg.AIModel,
		ArtSeed:     p.cfg.ArtDirectionSeed,
	}
}

// buildReuseCache строит кэш из результата предыдущего запуска:
// сигнатуры считаются от сцен, текста и параметров предыдущего
// сценария, группы кадров - по sceneId в исходном порядке.
func (p *Planner) buildReuseCache(opts Options) *ReuseCache {
	cache := NewReuseCache()
	prev := opts.PreviousScript
	if prev == nil || len(prev.Scenes) == 0 || len(opts.PreviousShots) == 0 {
		return cache
	}

	shotDuration := prev.PlanningShotDuration
	if shotDuration <= 0 {
		shotDuration = p.cfg.PlanningShotDuration
	}
	budgets := PlanBudget(prev.TargetDuration, shotDuration, len(prev.Scenes))

	groups := make(map[string][]model.Shot)
	for _, shot := range opts.PreviousShots {
		groups[shot.SceneID] = append(groups[shot.SceneID], shot)
	}

	for i, scene := range prev.Scenes {
		group, ok := groups[scene.ID]
		if !ok {
			continue
		}
		action := ResolveSceneAction(i, prev.Scenes, prev.StoryParagraphs)
		signature := SceneSignature(scene, action.Text, SignatureParams{
			ShotCount:   budgets[i],
			VisualStyle: prev.VisualStyle,
			Language:    prev.Language,
			ModelID:     p.cfg.AIModel,
			ArtSeed:     p.cfg.ArtDirectionSeed,
		})
		cache.Add(signature, group)
	}
	return cache
}

// reindexShots перенумеровывает кадры сквозными последовательными id.
func reindexShots(shots []model.Shot) {
	for i := range shots {
		shots[i].ID = fmt.Sprintf("shot_%03d", i+1)
	}
}

// sleepCtx - отменяемая пауза: либо истекает таймер, либо отменяется
// контекст (тогда немедленно возвращается его ошибка).
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// isCancellation отличает отмену от обычных сбоев, чтобы фолбэк
// сцены не проглотил отмену пайплайна.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
