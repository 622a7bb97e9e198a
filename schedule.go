package lumen

import (
	"fmt"
	"slices"
)

type State int

type Stage struct {
	Name string
}

var (
	Prelude    = Stage{Name: "Prelude"}
	PreUpdate  = Stage{Name: "PreUpdate"}
	Update     = Stage{Name: "Update"}
	PostUpdate = Stage{Name: "PostUpdate"}
	PreRender  = Stage{Name: "PreRender"}
	Render     = Stage{Name: "Render"}
	PostRender = Stage{Name: "PostRender"}
	Finale     = Stage{Name: "Finale"}
)

func defaultStages() []Stage {
	return []Stage{Prelude, PreUpdate, Update, PostUpdate, PreRender, Render, PostRender, Finale}
}

type statePhase int

const (
	enter statePhase = iota
	execute
	exit
)

// stateFilter restricts a system to one phase of one state.
type stateFilter struct {
	state State
	phase statePhase
}

func OnEnter(state State) stateFilter   { return stateFilter{state: state, phase: enter} }
func OnExecute(state State) stateFilter { return stateFilter{state: state, phase: execute} }
func OnExit(state State) stateFilter    { return stateFilter{state: state, phase: exit} }

// SystemSchedule places a system in a stage and, optionally, a state phase.
// Systems without a state run every frame.
type SystemSchedule struct {
	system systemFn
	stage  Stage
	filter *stateFilter
}

// System schedules fn in the Update stage. fn takes pointers to resources, *Commands
// or Logger, and may return an error, which is logged.
func System(fn systemFn) SystemSchedule {
	return SystemSchedule{system: fn, stage: Update}
}

func (s SystemSchedule) InStage(stage Stage) SystemSchedule {
	s.stage = stage
	return s
}

func (s SystemSchedule) InState(f stateFilter) SystemSchedule {
	s.filter = &f
	return s
}

func (s SystemSchedule) RunAlways() SystemSchedule {
	s.filter = nil
	return s
}

type stagePosition int

const (
	stageBefore stagePosition = iota
	stageAfter
)

type stagePlacement struct {
	position stagePosition
	target   Stage
}

func BeforeStage(s Stage) stagePlacement { return stagePlacement{position: stageBefore, target: s} }
func AfterStage(s Stage) stagePlacement  { return stagePlacement{position: stageAfter, target: s} }

func (app *App) stageIndex(name string) int {
	return slices.IndexFunc(app.stages, func(s Stage) bool { return s.Name == name })
}

// UseStage inserts a custom stage relative to an existing one.
func (app *App) UseStage(stage Stage, where stagePlacement) *App {
	idx := app.stageIndex(where.target.Name)
	if idx < 0 {
		panic(fmt.Sprintf("stage %s not found", where.target.Name))
	}
	if app.stageIndex(stage.Name) >= 0 {
		panic(fmt.Sprintf("stage %s already exists", stage.Name))
	}
	if where.position == stageAfter {
		idx++
	}
	app.stages = slices.Insert(app.stages, idx, stage)
	return app
}

func (app *App) UseSystem(s SystemSchedule) *App {
	if app.stageIndex(s.stage.Name) < 0 {
		panic(fmt.Sprintf("stage %s doesn't exist", s.stage.Name))
	}
	if s.filter == nil {
		app.systemsStateless[s.stage.Name] = append(app.systemsStateless[s.stage.Name], s.system)
		return app
	}
	if !app.stateful {
		panic("trying to use a stateful system in a stateless app")
	}
	if s.filter.state < app.initialState || s.filter.state > app.finalState {
		panic(fmt.Sprintf("state %v doesn't exist", s.filter.state))
	}
	key := scheduleKey{stage: s.stage.Name, state: s.filter.state, phase: s.filter.phase}
	app.systems[key] = append(app.systems[key], s.system)
	return app
}

type scheduleKey struct {
	stage string
	state State
	phase statePhase
}
