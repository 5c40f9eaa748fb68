package evaluator

// Context is a scoped environment for variable bindings: a local binding
// map, a parent pointer (borrowed, never owned — the parent outlives every
// child by construction), and a reference to the owning Evaluator, which
// supplies function resolution, feature gating, diagnostics and the
// runaway-protection trackers shared by the whole chain.
type Context struct {
	bindings map[string]Value
	parent   *Context
	ev       *Evaluator
}

// NewRootContext creates the outermost Context for one evaluation.
func NewRootContext(ev *Evaluator) *Context {
	return &Context{bindings: make(map[string]Value), ev: ev}
}

// Child creates a new child scope whose parent is this Context. Creation
// and destruction bracket a syntactic region (call, let, loop body); the
// child is simply dropped when the region ends, there is no explicit
// release.
func (c *Context) Child() *Context {
	return &Context{bindings: make(map[string]Value), parent: c, ev: c.ev}
}

// SetVariable binds name in the current frame, shadowing any ancestor
// binding without mutating it.
func (c *Context) SetVariable(name string, v Value) {
	c.bindings[name] = v
}

// LookupVariable walks parent Contexts until name is found, returning
// Undefined if the chain ends without a match. With silent=false the
// implementation emits a LookupWarning diagnostic for the miss; silent=true
// never does, which is how Assert's optional `message` argument is read
// without warning when omitted.
func (c *Context) LookupVariable(name string, silent bool) Value {
	if v, ok := c.lookupLocal(name); ok {
		return v
	}
	if !silent && c.ev != nil {
		c.ev.warnUnboundLookup(name)
	}
	return NewUndefined()
}

func (c *Context) lookupLocal(name string) (Value, bool) {
	if v, ok := c.bindings[name]; ok {
		return v, true
	}
	if c.parent != nil {
		return c.parent.lookupLocal(name)
	}
	return nil, false
}

// ApplyVariables copies every binding of other into the current frame,
// shadowing any existing binding of the same name. Used by LcForC to
// publish the increment step's results back into the loop's own Context.
func (c *Context) ApplyVariables(other *Context) {
	for k, v := range other.bindings {
		c.bindings[k] = v
	}
}
