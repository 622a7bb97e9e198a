// Command lumen-demo opens a window and renders a small lit scene with shadows, a
// procedural sky and a flying camera (Tab captures the mouse, WASD moves, Escape quits).
// The TOML config file is watched and reloaded while running.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/gekko3d/lumen"
	"github.com/gekko3d/lumen/config"
	"github.com/gekko3d/lumen/render/gpu/webgpu"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lumen-demo:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "lumen.toml", "path to the TOML config file")
	vsync := flag.Bool("vsync", true, "wait for vertical sync when presenting")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	app := newApp(cfg)
	log := app.Logger()

	win, err := openWindow(cfg.Window)
	if err != nil {
		return fmt.Errorf("open window: %w", err)
	}
	defer glfw.Terminate()
	defer win.Destroy()

	device, err := webgpu.New(win, webgpu.WithLogger(log), webgpu.WithVSync(*vsync))
	if err != nil {
		return err
	}
	defer device.Release()

	rc := installDemo(app, cfg, device, glfwPoller(win))
	defer func() {
		if err := rc.Close(); err != nil {
			log.Errorf("release render cache: %v", err)
		}
	}()
	app.UseModules(windowModule{state: &windowState{win: win, device: device}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloads := make(chan reload, 1)
	if err := config.Watch(ctx, *configPath, func(c *config.Config, err error) {
		select {
		case reloads <- reload{cfg: c, err: err}:
		default:
			log.Warnf("config: reload dropped, previous one still pending")
		}
	}); err != nil {
		log.Warnf("config hot reload disabled: %v", err)
	}
	app.UseModules(reloadModule{reloads: reloads})

	app.Run()
	return nil
}

// loadConfig reads path, falling back to the defaults when it does not exist.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return cfg, err
}

type reload struct {
	cfg *config.Config
	err error
}

// reloadState hands configs loaded by the watcher goroutine to the frame loop.
type reloadState struct {
	reloads <-chan reload
}

type reloadModule struct {
	reloads <-chan reload
}

func (m reloadModule) Install(app *lumen.App, cmd *lumen.Commands) {
	cmd.AddResources(&reloadState{reloads: m.reloads})
	app.UseSystem(lumen.System(reloadSystem).InStage(lumen.Prelude))
}

type levelSetter interface {
	SetLevel(level string) error
}

func reloadSystem(rs *reloadState, rc *lumen.RenderContext, log lumen.Logger) {
	select {
	case r := <-rs.reloads:
		if r.err != nil {
			log.Warnf("config: keeping current settings: %v", r.err)
			return
		}
		if l, ok := log.(levelSetter); ok {
			if err := l.SetLevel(r.cfg.Log.Level); err != nil {
				log.Warnf("config: %v", err)
			}
		}
		rc.ApplyConfig(r.cfg)
		log.Infof("config: reloaded")
	default:
	}
}
