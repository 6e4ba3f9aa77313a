package filter

import (
	"runtime/debug"

	"gridbot/internal/logger"
)

const GateData = "data"

// Pipeline 按顺序执行一组闸门，不做短路。
type Pipeline struct {
	name  string
	gates []Gate
}

// New 创建 Pipeline，nil 闸门会被忽略。
func New(name string, gates ...Gate) *Pipeline {
	out := make([]Gate, 0, len(gates))
	for _, g := range gates {
		if g == nil {
			continue
		}
		out = append(out, g)
	}
	return &Pipeline{name: name, gates: out}
}

func (p *Pipeline) Name() string { return p.name }

// Gates 返回闸门名称列表。
func (p *Pipeline) Gates() []string {
	names := make([]string, 0, len(p.gates))
	for _, g := range p.gates {
		names = append(names, g.Name())
	}
	return names
}

// Evaluate 执行全部适用的闸门并返回完整判定。
func (p *Pipeline) Evaluate(in *Input) Verdict {
	v := Verdict{Variant: p.name}
	if in == nil {
		v.Results = []Result{deny(GateData, "nil input")}
		return v
	}
	v.At = in.Now
	if in.DataErr != nil {
		v.Results = []Result{deny(GateData, "insufficient data: %v", in.DataErr)}
		return v
	}
	v.Results = make([]Result, 0, len(p.gates))
	for _, g := range p.gates {
		res, ok := p.run(g, in)
		if !ok {
			continue
		}
		v.Results = append(v.Results, res)
	}
	return v
}

func (p *Pipeline) run(g Gate, in *Input) (res Result, applied bool) {
	name := g.Name()
	defer func() {
		if r := recover(); r != nil {
			gErr := &GateError{Gate: name, Panic: r}
			logger.Errorf("[filter] %s %s", p.name, gErr.Error())
			debug.PrintStack()
			res = Result{Gate: name, Allowed: false, Reason: gErr.Error()}
			applied = true
		}
	}()
	if !g.Applies(in) {
		return Result{}, false
	}
	res = g.Check(in)
	res.Gate = name
	return res, true
}
