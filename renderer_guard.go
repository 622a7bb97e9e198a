package lumen

import (
	"fmt"
)

// RendererTag marks that a renderer has been installed into the App.
type RendererTag struct {
	Name string
}

// ensureSingleRenderer panics when a second, different renderer is installed.
func ensureSingleRenderer(app *App, name string) {
	if app == nil {
		panic("ensureSingleRenderer: app is nil")
	}
	if tag, ok := Resource[RendererTag](app); ok {
		if tag.Name != name {
			app.Logger().Errorf("multiple renderers installed: %s and %s", tag.Name, name)
			panic(fmt.Sprintf("multiple renderers installed: %s and %s", tag.Name, name))
		}
		return
	}
	app.addResources(&RendererTag{Name: name})
}
