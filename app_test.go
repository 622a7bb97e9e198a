package lumen

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type MockResource1 struct {
	name string
}
type MockResource2 struct {
	name string
}

func TestApp_changeState(t *testing.T) {
	app := NewAppBuilder().UseStates(1, 2).Build()
	app.start()

	app.changeState(2)
	assert.Equal(t, State(2), app.nextState)
	assert.True(t, app.stateTransitioning)

	app.executeChangeState(2)
	assert.Equal(t, State(2), app.state)
}

func TestApp_addResources(t *testing.T) {
	app := NewApp()

	resource1 := &MockResource1{name: "Resource1"}
	app.addResources(resource1)
	assert.Contains(t, app.resources, reflect.TypeOf(resource1).Elem())

	require.PanicsWithValue(t, fmt.Sprintf("%s is already in resources", reflect.TypeOf(resource1)), func() {
		app.addResources(resource1)
	})

	resource2 := &MockResource2{name: "Resource2"}
	app.addResources(resource2)
	got, ok := Resource[MockResource2](app)
	require.True(t, ok)
	assert.Same(t, resource2, got)
}

func TestApp_addResourcesRejectsValues(t *testing.T) {
	app := NewApp()
	assert.Panics(t, func() { app.addResources(MockResource1{}) })
}

func TestApp_SystemInjection(t *testing.T) {
	app := NewApp()
	app.addResources(&MockResource1{name: "r"})

	var got string
	var gotCmd *Commands
	app.UseSystem(System(func(r *MockResource1, cmd *Commands, log Logger) {
		got = r.name
		gotCmd = cmd
		assert.NotNil(t, log)
	}))
	app.Step()

	assert.Equal(t, "r", got)
	require.NotNil(t, gotCmd)
	assert.Same(t, app, gotCmd.app)
}

func TestApp_UnresolvedDependencyPanics(t *testing.T) {
	app := NewApp()
	app.UseSystem(System(func(*MockResource2) {}))
	assert.Panics(t, func() { app.Step() })
}

func TestApp_SystemErrorsAreLogged(t *testing.T) {
	app := NewApp()
	log := &recordingLogger{}
	app.addResources(log)
	app.UseSystem(System(func() error { return errors.New("boom") }))

	assert.True(t, app.Step())
	require.Len(t, log.errors, 1)
	assert.Contains(t, log.errors[0], "boom")
}

func TestApp_StagesRunInOrder(t *testing.T) {
	app := NewApp()
	var order []string
	record := func(name string) func() {
		return func() { order = append(order, name) }
	}
	app.UseSystem(System(record("render")).InStage(Render))
	app.UseSystem(System(record("update")))
	app.UseSystem(System(record("prelude")).InStage(Prelude))

	custom := Stage{Name: "Physics"}
	app.UseStage(custom, AfterStage(Update))
	app.UseSystem(System(record("physics")).InStage(custom))

	app.Step()
	assert.Equal(t, []string{"prelude", "update", "physics", "render"}, order)

	assert.Panics(t, func() { app.UseStage(Stage{Name: "X"}, BeforeStage(Stage{Name: "Missing"})) })
	assert.Panics(t, func() { app.UseSystem(System(record("x")).InStage(Stage{Name: "Missing"})) })
}

func TestApp_StatefulRun(t *testing.T) {
	const (
		loading State = iota
		running
		done
	)
	app := NewAppBuilder().UseStates(loading, done).Build()

	var events []string
	app.UseSystem(System(func(cmd *Commands) {
		events = append(events, "enter loading")
	}).InState(OnEnter(loading)))
	app.UseSystem(System(func(cmd *Commands) {
		events = append(events, "loading")
		cmd.ChangeState(running)
	}).InState(OnExecute(loading)))
	app.UseSystem(System(func(cmd *Commands) {
		events = append(events, "running")
		cmd.ChangeState(done)
	}).InState(OnExecute(running)))
	app.UseSystem(System(func() {
		events = append(events, "exit done")
	}).InState(OnExit(done)))

	app.Run()
	assert.Equal(t, []string{"enter loading", "loading", "running", "exit done"}, events)
}

func TestApp_StatelessSystemInStatefulAppPanics(t *testing.T) {
	app := NewApp()
	assert.Panics(t, func() { app.UseSystem(System(func() {}).InState(OnEnter(0))) })
}

func TestApp_ExitStopsRun(t *testing.T) {
	app := NewApp()
	frames := 0
	app.UseSystem(System(func(cmd *Commands) {
		frames++
		if frames == 3 {
			cmd.Exit()
		}
	}))
	app.Run()
	assert.Equal(t, 3, frames)
}

func TestApp_CommandsAreBufferedUntilStageEnd(t *testing.T) {
	type Marker struct{ N int }
	app := NewApp()

	var seenInUpdate, seenInRender int
	app.UseSystem(System(func(cmd *Commands) {
		cmd.AddEntity(&Marker{N: 1})
		MakeQuery1[Marker](cmd).Map(func(EntityId, *Marker) bool { seenInUpdate++; return true })
	}))
	app.UseSystem(System(func(cmd *Commands) {
		MakeQuery1[Marker](cmd).Map(func(EntityId, *Marker) bool { seenInRender++; return true })
		cmd.Exit()
	}).InStage(Render))

	app.Step()
	assert.Equal(t, 0, seenInUpdate)
	assert.Equal(t, 1, seenInRender)
}

func TestApp_RemovalHooksSeeComponents(t *testing.T) {
	type Health struct{ HP int }
	app := NewApp()
	cmd := app.Commands()

	var removed []any
	app.OnRemove(func(eid EntityId, components []any) { removed = components })

	id := cmd.AddEntity(&Health{HP: 7})
	app.FlushCommands()
	cmd.RemoveEntity(id)
	cmd.RemoveEntity(id)
	app.FlushCommands()

	assert.Equal(t, []any{Health{HP: 7}}, removed)
	assert.False(t, app.ecs.hasEntity(id))
}

func TestApp_ShutdownRemovesEverything(t *testing.T) {
	type Tag struct{}
	app := NewApp()
	cmd := app.Commands()
	cmd.AddEntity(Tag{})
	cmd.AddEntity(Tag{})
	app.FlushCommands()

	hooks := 0
	app.OnRemove(func(EntityId, []any) { hooks++ })
	app.Shutdown()

	assert.Equal(t, 2, hooks)
	assert.Empty(t, app.ecs.entityIndex)
}
