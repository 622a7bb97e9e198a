package main

import (
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/lumen"
	"github.com/gekko3d/lumen/config"
	"github.com/gekko3d/lumen/render/gpu/webgpu"
)

func init() {
	// GLFW calls must come from the main thread.
	runtime.LockOSThread()
}

func openWindow(cfg config.Window) (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, err
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, err
	}
	return win, nil
}

var keyToGlfw = map[lumen.Key]glfw.Key{
	lumen.KeyW:       glfw.KeyW,
	lumen.KeyA:       glfw.KeyA,
	lumen.KeyS:       glfw.KeyS,
	lumen.KeyD:       glfw.KeyD,
	lumen.KeySpace:   glfw.KeySpace,
	lumen.KeyControl: glfw.KeyLeftControl,
	lumen.KeyShift:   glfw.KeyLeftShift,
	lumen.KeyTab:     glfw.KeyTab,
	lumen.KeyEscape:  glfw.KeyEscape,
	lumen.KeyF1:      glfw.KeyF1,
	lumen.KeyF2:      glfw.KeyF2,
}

var buttonToGlfw = map[lumen.Key]glfw.MouseButton{
	lumen.MouseButtonLeft:  glfw.MouseButtonLeft,
	lumen.MouseButtonRight: glfw.MouseButtonRight,
}

// glfwPoller polls window events and copies key, button and cursor state into Input.
func glfwPoller(win *glfw.Window) lumen.InputPoller {
	return func(in *lumen.Input) {
		glfw.PollEvents()

		for key, glfwKey := range keyToGlfw {
			in.SetKey(key, win.GetKey(glfwKey) == glfw.Press)
		}
		for btn, glfwBtn := range buttonToGlfw {
			in.SetKey(btn, win.GetMouseButton(glfwBtn) == glfw.Press)
		}
		in.SetMouse(win.GetCursorPos())
		in.WindowWidth, in.WindowHeight = win.GetSize()

		if in.MouseCaptured {
			win.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
		} else {
			win.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
		}
	}
}

// windowState is the resource the platform systems work on.
type windowState struct {
	win    *glfw.Window
	device *webgpu.Device
	width  int
	height int
}

type windowModule struct {
	state *windowState
}

func (m windowModule) Install(app *lumen.App, cmd *lumen.Commands) {
	m.state.width, m.state.height = m.state.win.GetFramebufferSize()
	cmd.AddResources(m.state)
	app.UseSystem(lumen.System(windowSystem).InStage(lumen.PreUpdate))
}

// windowSystem follows framebuffer resizes and exits on close or Escape.
func windowSystem(ws *windowState, in *lumen.Input, cmd *lumen.Commands, log lumen.Logger) {
	if ws.win.ShouldClose() || in.JustPressed[lumen.KeyEscape] {
		cmd.Exit()
		return
	}
	w, h := ws.win.GetFramebufferSize()
	if w == ws.width && h == ws.height {
		return
	}
	if w > 0 && h > 0 {
		log.Debugf("window: framebuffer %dx%d", w, h)
		ws.device.Resize(w, h)
	}
	ws.width, ws.height = w, h
}
