package handles

// PurgeCallback is invoked before the manager moves or discards the data of movable or
// purgeable handles, giving the application a chance to flush caches or release handles it no
// longer needs. The callback may free handles but must not allocate from the manager.
type PurgeCallback func(
	manager *Manager,
	stage Stage,
	userData any,
)

// CallbackOptions is an optional set of callbacks that will be executed by the manager
type CallbackOptions struct {
	Purge    PurgeCallback
	UserData any
}

type purgeCallbacks struct {
	Callbacks *CallbackOptions
	Manager   *Manager
}

func (c *purgeCallbacks) Notify(stage Stage) {
	if c.Callbacks != nil && c.Callbacks.Purge != nil {
		c.Callbacks.Purge(c.Manager, stage, c.Callbacks.UserData)
	}
}

func (c *purgeCallbacks) Registered() bool {
	return c.Callbacks != nil && c.Callbacks.Purge != nil
}
