package pipeline

import (
	"github.com/gekko3d/lumen/render/cache"
	"github.com/gekko3d/lumen/render/descriptors"
	"github.com/gekko3d/lumen/render/gpu"
	"github.com/gekko3d/lumen/render/scene"
)

// Renderer is any value implementing zero or more of the hook interfaces below.
type Renderer any

// DrawOptions accompanies the geometry hooks.
type DrawOptions struct {
	// AttachmentsLocations maps output names to colour attachment indices.
	AttachmentsLocations map[string]int
	// ShadowMappingLight is set while drawing a shadow map.
	ShadowMappingLight scene.ShadowLight
	// BackgroundColorTexture is the grab pass copy, nil when no grab pass ran.
	BackgroundColorTexture gpu.Texture
}

// PostOptions accompanies RenderPost. Replacing Attachments.Color makes the blit
// pass present the new texture.
type PostOptions struct {
	Attachments *Attachments
	Descriptors *descriptors.Descriptors
	Targets     *PostTargets
	Cache       *cache.Cache
}

type ShadowRenderer interface {
	RenderShadow(view *scene.RenderView, entities []*scene.Entity, opts DrawOptions) error
}

type OpaqueRenderer interface {
	RenderOpaque(view *scene.RenderView, entities []*scene.Entity, opts DrawOptions) error
}

type BackgroundRenderer interface {
	RenderBackground(view *scene.RenderView, entities []*scene.Entity, opts DrawOptions) error
}

type TransparentRenderer interface {
	RenderTransparent(view *scene.RenderView, entities []*scene.Entity, opts DrawOptions) error
}

type PostRenderer interface {
	RenderPost(view *scene.RenderView, entities []*scene.Entity, opts PostOptions) error
}
