package service

import (
	"alcyxob/fitness-coach/internal/domain"
	"alcyxob/fitness-coach/internal/llm"
	"alcyxob/fitness-coach/internal/metrics"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"
)

var ErrPlanGenerationFailed = errors.New("workout plan generation failed")

const defaultPlanExercises = 12

// WorkoutPlanner drafts weekly training plans grounded on retrieved exercises
// and answers follow-up questions about splits and intensity.
type WorkoutPlanner interface {
	GenerateWorkoutPlan(ctx context.Context, profile domain.UserProfile) (*domain.WorkoutPlan, error)
	SuggestWorkoutSplit(ctx context.Context, frequency int, goal, experience string) (*domain.WorkoutSplit, error)
	AdjustWorkoutIntensity(ctx context.Context, current domain.WorkoutPlan, progress map[string]any) (*domain.IntensityAdjustment, error)
}

type PlannerOptions struct {
	// Exercises is how many exercises are retrieved for the prompt.
	Exercises int
	Metrics   *metrics.Metrics
}

type workoutPlanner struct {
	retrieval RetrievalSource
	chat      llm.ChatClient
	exercises int
	metrics   *metrics.Metrics
}

func NewWorkoutPlanner(retrieval RetrievalSource, chat llm.ChatClient, opts PlannerOptions) WorkoutPlanner {
	if opts.Exercises <= 0 {
		opts.Exercises = defaultPlanExercises
	}
	return &workoutPlanner{
		retrieval: retrieval,
		chat:      chat,
		exercises: opts.Exercises,
		metrics:   opts.Metrics,
	}
}

// GenerateWorkoutPlan retrieves exercises matching the profile, asks the
// chat model for a plan and parses its answer. Retrieval problems never fail
// the plan: it is generated without recommended exercises instead.
func (p *workoutPlanner) GenerateWorkoutPlan(ctx context.Context, profile domain.UserProfile) (*domain.WorkoutPlan, error) {
	profile = profile.WithDefaults()

	exercises, err := p.retrieveExercises(ctx, profile)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.WithFields(log.Fields{
			"user_id":   profile.UserID,
			"goal":      profile.FitnessGoal,
			"equipment": profile.EquipmentAccess,
		}).WithError(err).Warn("Exercise retrieval unavailable, generating plan without recommended exercises")
		p.metrics.DegradedPlan()
		exercises = []domain.Exercise{}
	}

	prompt := buildWorkoutPlanPrompt(profile, exercises)
	reply, err := p.chat.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanGenerationFailed, err)
	}

	plan := parseWorkoutPlan(reply, profile)
	plan.RecommendedExercises = exercises
	return plan, nil
}

func (p *workoutPlanner) retrieveExercises(ctx context.Context, profile domain.UserProfile) ([]domain.Exercise, error) {
	svc, err := p.retrieval.Get(ctx)
	if err != nil {
		return nil, err
	}
	exercises, err := svc.Recommend(ctx, profile.FitnessGoal, profile.EquipmentAccess, profile.ExperienceLevel, p.exercises)
	if err != nil {
		return nil, err
	}
	if exercises == nil {
		exercises = []domain.Exercise{}
	}
	return exercises, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func buildWorkoutPlanPrompt(profile domain.UserProfile, exercises []domain.Exercise) string {
	var exercisesText strings.Builder
	if len(exercises) > 0 {
		exercisesText.WriteString("\n\n**推荐动作库**（从这些动作中选择）：\n")
		for _, ex := range exercises {
			fmt.Fprintf(&exercisesText, "\n- **%s** (%s)\n", ex.Name, ex.EnglishName)
			fmt.Fprintf(&exercisesText, "  - 类别: %s\n", ex.Category)
			fmt.Fprintf(&exercisesText, "  - 目标肌群: %s\n", strings.Join(ex.TargetMuscles, ", "))
			fmt.Fprintf(&exercisesText, "  - 设备: %s\n", ex.Equipment)
			fmt.Fprintf(&exercisesText, "  - 难度: %s\n", ex.Difficulty)
			fmt.Fprintf(&exercisesText, "  - 描述: %s\n", ex.Description)
		}
	}

	age := "N/A"
	if profile.Age > 0 {
		age = strconv.Itoa(profile.Age)
	}
	frequency := strconv.Itoa(profile.TrainingFrequency)

	var b strings.Builder
	b.WriteString("作为专业的健身教练，为以下用户生成一个详细的周训练计划：\n\n")
	b.WriteString("**用户信息**：\n")
	b.WriteString("- 健身目标：" + profile.FitnessGoal + "\n")
	b.WriteString("- 经验水平：" + profile.ExperienceLevel + "\n")
	b.WriteString("- 训练频率：每周" + frequency + "次\n")
	b.WriteString("- 可用器械：" + profile.EquipmentAccess + "\n")
	b.WriteString("- 年龄：" + age + "\n")
	b.WriteString("- 性别：" + orNA(profile.Gender) + "\n")
	b.WriteString(exercisesText.String())
	b.WriteString("\n\n**任务要求**：\n")
	b.WriteString("1. 根据训练频率（" + frequency + "次/周）合理分配训练部位\n")
	b.WriteString("2. 对于每个训练日，提供：\n")
	b.WriteString("   - 训练日名称（如：胸+三头、背+二头等）\n")
	b.WriteString("   - 目标肌群\n")
	b.WriteString("   - 具体动作列表（每个动作包括：名称、组数、次数、休息时间）\n")
	b.WriteString("3. 解释为什么这样安排训练（训练原理）\n")
	b.WriteString("4. 提供渐进建议\n\n")
	b.WriteString("请以以下JSON格式返回：\n")
	b.WriteString("```json\n")
	b.WriteString(strings.ReplaceAll(planJSONTemplate, "{frequency}", frequency))
	b.WriteString("```\n\n")
	b.WriteString("确保计划科学、安全，适合用户的经验水平。\n")
	return b.String()
}

const planJSONTemplate = `{
    "plan_name": "计划名称",
    "workout_type": "训练类型（如：push_pull_legs, body_part_split等）",
    "duration_weeks": 12,
    "frequency_per_week": {frequency},
    "rationale": "为什么选择这个训练方案的详细解释",
    "weekly_schedule": [
        {
            "day": 1,
            "name": "训练日名称",
            "target_muscles": ["目标肌群1", "目标肌群2"],
            "exercises": [
                {
                    "name": "动作名称",
                    "sets": 3,
                    "reps": 10,
                    "rest_seconds": 60,
                    "notes": "动作要点"
                }
            ]
        }
    ],
    "progression_advice": "如何随着时间推进训练强度"
}
`

// extractJSON returns the content of the first ```json fence, else the first
// plain ``` fence, else the whole reply.
func extractJSON(reply string) string {
	if i := strings.Index(reply, "```json"); i >= 0 {
		return fencedBody(reply, i+len("```json"))
	}
	if i := strings.Index(reply, "```"); i >= 0 {
		return fencedBody(reply, i+len("```"))
	}
	return strings.TrimSpace(reply)
}

func fencedBody(reply string, start int) string {
	rest := reply[start:]
	if end := strings.Index(rest, "```"); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// parseWorkoutPlan decodes the model reply. An unparsable reply becomes a
// basic plan that carries the raw text as its rationale.
func parseWorkoutPlan(reply string, profile domain.UserProfile) *domain.WorkoutPlan {
	var plan domain.WorkoutPlan
	if err := json.Unmarshal([]byte(extractJSON(reply)), &plan); err != nil {
		log.WithField("user_id", profile.UserID).WithError(err).Warn("Could not parse workout plan reply, using basic plan")
		plan = domain.WorkoutPlan{
			PlanName:          "个性化训练计划",
			WorkoutType:       "custom",
			DurationWeeks:     12,
			FrequencyPerWeek:  profile.TrainingFrequency,
			Rationale:         reply,
			WeeklySchedule:    []domain.WorkoutDay{},
			ProgressionAdvice: "请咨询专业教练",
		}
	}
	if plan.WeeklySchedule == nil {
		plan.WeeklySchedule = []domain.WorkoutDay{}
	}
	plan.UserID = profile.UserID
	plan.GenerationPrompt = reply
	return &plan
}

// SuggestWorkoutSplit asks the chat model how to divide the given number of
// weekly sessions. An unparsable reply becomes a custom split carrying the
// raw text as its rationale.
func (p *workoutPlanner) SuggestWorkoutSplit(ctx context.Context, frequency int, goal, experience string) (*domain.WorkoutSplit, error) {
	if frequency <= 0 {
		frequency = domain.DefaultTrainingFrequency
	}
	if goal == "" {
		goal = domain.DefaultFitnessGoal
	}
	if experience == "" {
		experience = domain.DefaultExperienceLevel
	}

	reply, err := p.chat.Complete(ctx, buildWorkoutSplitPrompt(frequency, goal, experience))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanGenerationFailed, err)
	}

	var split domain.WorkoutSplit
	if err := json.Unmarshal([]byte(extractJSON(reply)), &split); err != nil {
		log.WithField("frequency", frequency).WithError(err).Warn("Could not parse workout split reply, using custom split")
		split = domain.WorkoutSplit{
			RecommendedSplit: "自定义",
			SplitType:        "custom",
			Rationale:        reply,
		}
	}
	if split.DaysBreakdown == nil {
		split.DaysBreakdown = []string{}
	}
	if split.Pros == nil {
		split.Pros = []string{}
	}
	if split.Cons == nil {
		split.Cons = []string{}
	}
	return &split, nil
}

// AdjustWorkoutIntensity asks the chat model whether the current plan should
// change given the recorded progress. An unparsable reply means no change.
func (p *workoutPlanner) AdjustWorkoutIntensity(ctx context.Context, current domain.WorkoutPlan, progress map[string]any) (*domain.IntensityAdjustment, error) {
	prompt, err := buildIntensityPrompt(current, progress)
	if err != nil {
		return nil, err
	}

	reply, err := p.chat.Complete(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPlanGenerationFailed, err)
	}

	var adjustment domain.IntensityAdjustment
	if err := json.Unmarshal([]byte(extractJSON(reply)), &adjustment); err != nil {
		log.WithField("user_id", current.UserID).WithError(err).Warn("Could not parse intensity reply, keeping current plan")
		adjustment = domain.IntensityAdjustment{
			AdjustmentNeeded:   false,
			ProgressAssessment: reply,
			OverallFeedback:    "继续保持当前训练",
		}
	}
	if adjustment.Recommendations == nil {
		adjustment.Recommendations = []domain.ExerciseAdjustment{}
	}
	return &adjustment, nil
}

func buildWorkoutSplitPrompt(frequency int, goal, experience string) string {
	var b strings.Builder
	b.WriteString("为以下训练参数推荐最佳的训练分化方式：\n\n")
	b.WriteString("训练频率：每周" + strconv.Itoa(frequency) + "次\n")
	b.WriteString("健身目标：" + goal + "\n")
	b.WriteString("经验水平：" + experience + "\n\n")
	b.WriteString("请推荐训练分化方式（如：推拉腿、上下肢分化、部位分化等），并解释原因。\n\n")
	b.WriteString("以JSON格式返回：\n")
	b.WriteString(splitJSONTemplate)
	return b.String()
}

const splitJSONTemplate = `{
    "recommended_split": "分化名称",
    "split_type": "类型代码",
    "days_breakdown": ["周一：...", "周二：..."],
    "rationale": "为什么推荐这个分化方式",
    "pros": ["优点1", "优点2"],
    "cons": ["缺点1", "缺点2"]
}
`

func buildIntensityPrompt(current domain.WorkoutPlan, progress map[string]any) (string, error) {
	// The prompt carries the plan itself, not the raw reply it was parsed from.
	current.GenerationPrompt = ""
	planJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode current plan: %w", err)
	}
	if progress == nil {
		progress = map[string]any{}
	}
	progressJSON, err := json.MarshalIndent(progress, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode progress data: %w", err)
	}

	var b strings.Builder
	b.WriteString("基于以下进度数据，分析是否需要调整训练强度：\n\n")
	b.WriteString("**当前训练计划**：\n")
	b.Write(planJSON)
	b.WriteString("\n\n**进度数据**：\n")
	b.Write(progressJSON)
	b.WriteString("\n\n请分析：\n")
	b.WriteString("1. 用户是否在进步\n")
	b.WriteString("2. 是否需要增加强度（重量、组数、次数）\n")
	b.WriteString("3. 是否需要调整动作或休息时间\n")
	b.WriteString("4. 具体的调整建议\n\n")
	b.WriteString("以JSON格式返回：\n")
	b.WriteString(intensityJSONTemplate)
	return b.String(), nil
}

const intensityJSONTemplate = `{
    "adjustment_needed": true,
    "progress_assessment": "进度评估",
    "recommendations": [
        {
            "exercise": "动作名称",
            "current": "当前参数",
            "suggested": "建议参数",
            "reason": "调整原因"
        }
    ],
    "overall_feedback": "总体反馈"
}
`
