package lumen

type Key int

const (
	KeyW Key = iota
	KeyA
	KeyS
	KeyD
	KeySpace
	KeyControl
	KeyShift
	KeyTab
	KeyEscape
	KeyF1
	KeyF2
	MouseButtonLeft
	MouseButtonRight
	keyCount
)

// Input holds the keyboard and mouse state of the current frame.
type Input struct {
	Pressed      [keyCount]bool
	JustPressed  [keyCount]bool
	JustReleased [keyCount]bool

	MouseX, MouseY           float64
	MouseDeltaX, MouseDeltaY float64
	MouseCaptured            bool

	WindowWidth, WindowHeight int
}

// SetKey records a key state, deriving the just-pressed and just-released edges.
func (in *Input) SetKey(k Key, down bool) {
	in.JustPressed[k] = down && !in.Pressed[k]
	in.JustReleased[k] = !down && in.Pressed[k]
	in.Pressed[k] = down
}

// SetMouse records the cursor position. Deltas only accumulate while captured.
func (in *Input) SetMouse(x, y float64) {
	if in.MouseCaptured {
		in.MouseDeltaX = x - in.MouseX
		in.MouseDeltaY = y - in.MouseY
	} else {
		in.MouseDeltaX, in.MouseDeltaY = 0, 0
	}
	in.MouseX, in.MouseY = x, y
}

// InputPoller fills Input from a platform window once per frame.
type InputPoller func(in *Input)

// InputModule installs the Input resource and polls it in PreUpdate.
type InputModule struct {
	Poll InputPoller
}

func (mod InputModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Input{}, &mod)
	app.UseSystem(System(inputSystem).InStage(PreUpdate))
}

func inputSystem(mod *InputModule, in *Input) {
	if mod.Poll != nil {
		mod.Poll(in)
	}
}
