package lumen

import (
	"fmt"
	"reflect"
	"runtime"
)

type systemFn any

// Module installs resources and systems into an App.
type Module interface {
	Install(app *App, cmd *Commands)
}

type App struct {
	stateful           bool
	stateTransitioning bool
	initialState       State
	finalState         State
	nextState          State
	state              State
	exitRequested      bool

	stages           []Stage
	systems          map[scheduleKey][]systemFn
	systemsStateless map[string][]systemFn
	resources        map[reflect.Type]any
	ecs              *Ecs

	// Command buffering
	pendingAdditions    []pendingComponents
	pendingRemovals     []EntityId
	pendingCompAdds     []pendingComponents
	pendingCompRemovals []pendingComponents
	removalHooks        []RemovalHook
}

type pendingComponents struct {
	eid        EntityId
	components []any
}

// RemovalHook sees an entity's components right before the entity is removed.
type RemovalHook func(eid EntityId, components []any)

// NewApp returns a stateless App with the default stages.
func NewApp() *App {
	ecs := MakeEcs()
	return &App{
		stages:           defaultStages(),
		systems:          make(map[scheduleKey][]systemFn),
		systemsStateless: make(map[string][]systemFn),
		resources:        make(map[reflect.Type]any),
		ecs:              &ecs,
	}
}

func (app *App) Commands() *Commands {
	return &Commands{app: app}
}

func (app *App) UseModules(modules ...Module) *App {
	cmd := app.Commands()
	for _, m := range modules {
		m.Install(app, cmd)
	}
	return app
}

// OnRemove registers a hook run for every entity removal when commands are flushed.
func (app *App) OnRemove(hook RemovalHook) {
	app.removalHooks = append(app.removalHooks, hook)
}

// Run steps frames until Exit is requested or the final state is reached.
func (app *App) Run() {
	log := app.Logger()
	if app.stateful {
		log.Infof("running in stateful mode")
		app.start()
	} else {
		log.Infof("running in stateless mode")
	}

	for app.Step() {
	}
	app.Shutdown()
}

func (app *App) start() {
	app.state = app.initialState
	app.callSystems(app.state, enter)
}

// Step runs one frame and reports whether the app should keep running.
func (app *App) Step() bool {
	app.callSystems(app.state, execute)

	if app.stateful {
		if app.stateTransitioning {
			app.stateTransitioning = false
			app.executeChangeState(app.nextState)
		}
		if app.state == app.finalState {
			app.callSystems(app.state, exit)
			return false
		}
	}
	return !app.exitRequested
}

// Shutdown removes every remaining entity so removal hooks release what they hold.
func (app *App) Shutdown() {
	for eid := range app.ecs.entityIndex {
		app.pendingRemovals = append(app.pendingRemovals, eid)
	}
	app.FlushCommands()
}

func (app *App) callSystems(state State, phase statePhase) {
	for _, stage := range app.stages {
		if phase == execute {
			for _, system := range app.systemsStateless[stage.Name] {
				app.callSystem(system)
			}
		}
		if app.stateful {
			for _, system := range app.systems[scheduleKey{stage: stage.Name, state: state, phase: phase}] {
				app.callSystem(system)
			}
		}
		app.FlushCommands()
	}
}

func (app *App) changeState(newState State) {
	app.nextState = newState
	app.stateTransitioning = true
}

func (app *App) executeChangeState(newState State) {
	app.callSystems(app.state, exit)
	app.state = newState
	app.callSystems(app.state, enter)
}

func (app *App) addResources(resources ...any) *App {
	for _, resource := range resources {
		resourceType := reflect.TypeOf(resource)
		if resourceType.Kind() != reflect.Pointer {
			panic(fmt.Sprintf("resource %s should be a pointer", resourceType))
		}
		if _, ok := app.resources[resourceType.Elem()]; ok {
			panic(fmt.Sprintf("%s is already in resources", resourceType))
		}
		app.resources[resourceType.Elem()] = resource
	}
	return app
}

// Resource returns the resource of type *T, if installed.
func Resource[T any](app *App) (*T, bool) {
	r, ok := app.resources[reflect.TypeFor[T]()]
	if !ok {
		return nil, false
	}
	return r.(*T), true
}

var (
	typeOfCommands = reflect.TypeOf(Commands{})
	typeOfLogger   = reflect.TypeFor[Logger]()
	typeOfError    = reflect.TypeFor[error]()
)

func (app *App) callSystem(system systemFn) {
	systemType := reflect.TypeOf(system)
	systemValue := reflect.ValueOf(system)

	args := make([]reflect.Value, systemType.NumIn())
	for i := range args {
		argType := systemType.In(i)
		if argType == typeOfLogger {
			args[i] = reflect.ValueOf(app.Logger())
			continue
		}
		if argType.Kind() == reflect.Pointer {
			if argType.Elem() == typeOfCommands {
				args[i] = reflect.ValueOf(&Commands{app: app})
				continue
			}
			if resource, ok := app.resources[argType.Elem()]; ok {
				args[i] = reflect.ValueOf(resource)
				continue
			}
		}
		msg := fmt.Sprintf("unable to resolve system dependency\nsystem: %s\nsystem type: %s\ndependency: %s",
			runtime.FuncForPC(systemValue.Pointer()).Name(),
			systemType,
			argType,
		)
		app.Logger().Errorf("%s", msg)
		panic(msg)
	}

	out := systemValue.Call(args)
	if len(out) == 1 && systemType.Out(0) == typeOfError && !out[0].IsNil() {
		app.Logger().Errorf("system %s: %v", runtime.FuncForPC(systemValue.Pointer()).Name(), out[0].Interface())
	}
}

func (app *App) FlushCommands() {
	if len(app.pendingAdditions) == 0 && len(app.pendingRemovals) == 0 &&
		len(app.pendingCompAdds) == 0 && len(app.pendingCompRemovals) == 0 {
		return
	}

	// Removals first so nothing is added to dead entities.
	for _, eid := range app.pendingRemovals {
		if !app.ecs.hasEntity(eid) {
			continue
		}
		if len(app.removalHooks) > 0 {
			comps := app.ecs.components(eid)
			for _, hook := range app.removalHooks {
				hook(eid, comps)
			}
		}
		app.Logger().Debugf("removing entity %d", eid)
		app.ecs.removeEntity(eid)
	}
	app.pendingRemovals = app.pendingRemovals[:0]

	for _, add := range app.pendingAdditions {
		app.ecs.insertEntity(add.eid, add.components...)
	}
	app.pendingAdditions = app.pendingAdditions[:0]

	for _, add := range app.pendingCompAdds {
		app.ecs.addComponents(add.eid, add.components...)
	}
	app.pendingCompAdds = app.pendingCompAdds[:0]

	for _, rm := range app.pendingCompRemovals {
		app.ecs.removeComponents(rm.eid, rm.components...)
	}
	app.pendingCompRemovals = app.pendingCompRemovals[:0]
}
