package policy

type Conclusion int

const (
	UNSET Conclusion = iota
	OK
	NG
	ALLOW
	DENY
)

func ParseConclusion(s string) Conclusion {
	switch s {
	case "allow":
		return ALLOW
	case "deny":
		return DENY
	case "ok":
		return OK
	case "ng":
		return NG
	default:
		return UNSET
	}
}

// Or merges two conclusions. allow/deny outrank ok/ng, and a direct
// contradiction at the same rank cancels to UNSET.
func (c Conclusion) Or(other Conclusion) Conclusion {
	switch {
	case c == UNSET:
		return other
	case other == UNSET:
		return c
	}

	for _, pair := range [][2]Conclusion{{DENY, ALLOW}, {NG, OK}} {
		strong, weak := pair[0], pair[1]
		hasStrong := c == strong || other == strong
		hasWeak := c == weak || other == weak
		switch {
		case hasStrong && hasWeak:
			return UNSET
		case hasStrong:
			return strong
		case hasWeak:
			return weak
		}
	}
	return UNSET
}

// RequestContext is what Load can read: "requester", "this.<field>" and
// "params.<key>".
type RequestContext struct {
	Requester any            `json:"requester"`
	This      any            `json:"this"`
	Params    map[string]any `json:"params"`
}

func (ctx RequestContext) root() map[string]any {
	return map[string]any{
		"requester": ctx.Requester,
		"this":      ctx.This,
		"params":    ctx.Params,
	}
}

type PolicyDocument struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Versions    map[string]Policy `json:"versions"`
}

type Policy struct {
	Statements map[string][]Stmt `json:"statements"`
	Defaults   map[string]bool   `json:"defaults"`
}

type Stmt struct {
	Emit      string `json:"emit"`
	Condition Expr   `json:"condition"`
}

type Expr struct {
	Operator string `json:"op"`
	Args     []Expr `json:"args"`
	Const    any    `json:"const,omitempty"`
}

type EvalResult struct {
	Operator string       `json:"op"`
	Args     []EvalResult `json:"args"`
	Result   any          `json:"result"`
	Error    string       `json:"error"`
}
