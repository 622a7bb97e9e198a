package lumen

// Lifetime removes its entity once TimeLeft, in seconds, runs out.
type Lifetime struct {
	TimeLeft float32
}

type LifecycleModule struct{}

func (mod LifecycleModule) Install(app *App, cmd *Commands) {
	app.UseSystem(System(lifetimeSystem).InStage(PostUpdate))
}

func lifetimeSystem(t *Time, cmd *Commands, log Logger) {
	dt := float32(t.Dt.Seconds())
	if dt <= 0 {
		return
	}
	MakeQuery1[Lifetime](cmd).Map(func(eid EntityId, lt *Lifetime) bool {
		lt.TimeLeft -= dt
		if lt.TimeLeft <= 0 {
			log.Debugf("lifetime of entity %d expired", eid)
			cmd.RemoveEntity(eid)
		}
		return true
	})
}
