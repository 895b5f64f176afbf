package comm

import (
	"context"
	"math"

	"github.com/san-kum/mdcore/internal/atom"
)

// allGather sends body to every rank, itself included, and returns the
// bodies of all ranks in rank order.
func (e *Endpoint) allGather(ctx context.Context, kind string, count int, body []byte) ([][]byte, error) {
	for to := 0; to < e.Size(); to++ {
		b := append(e.Buffer(), body...)
		if err := e.Send(ctx, to, kind, count, b); err != nil {
			return nil, err
		}
	}
	out := make([][]byte, e.Size())
	for from := 0; from < e.Size(); from++ {
		msg, err := e.RecvSized(ctx, from, kind, 8, count)
		if err != nil {
			return nil, err
		}
		out[from] = msg.Body
	}
	return out, nil
}

func (e *Endpoint) reduce(ctx context.Context, kind string, vals []float64, op func(a, b float64) float64) ([]float64, error) {
	parts, err := e.allGather(ctx, kind, len(vals), atom.EncodeFloats(nil, vals))
	if err != nil {
		return nil, err
	}
	// Every rank folds the contributions in rank order, so all ranks get
	// bit-identical results.
	var out []float64
	for r, p := range parts {
		v, err := atom.DecodeFloats(p)
		if err != nil {
			return nil, err
		}
		e.Release(p)
		if r == 0 {
			out = v
			continue
		}
		for k := range out {
			out[k] = op(out[k], v[k])
		}
	}
	return out, nil
}

// AllReduceSum returns the element-wise sum of vals over all ranks.
func (e *Endpoint) AllReduceSum(ctx context.Context, vals ...float64) ([]float64, error) {
	return e.reduce(ctx, "allreduce/sum", vals, func(a, b float64) float64 { return a + b })
}

// AllReduceMax returns the element-wise maximum of vals over all ranks.
func (e *Endpoint) AllReduceMax(ctx context.Context, vals ...float64) ([]float64, error) {
	return e.reduce(ctx, "allreduce/max", vals, math.Max)
}

// AllReduceOr reports whether flag is set on any rank.
func (e *Endpoint) AllReduceOr(ctx context.Context, flag bool) (bool, error) {
	v := 0.0
	if flag {
		v = 1
	}
	out, err := e.reduce(ctx, "allreduce/or", []float64{v}, math.Max)
	if err != nil {
		return false, err
	}
	return out[0] > 0, nil
}

// Barrier returns once every rank has entered it.
func (e *Endpoint) Barrier(ctx context.Context) error {
	_, err := e.reduce(ctx, "barrier", nil, math.Max)
	return err
}

// Gather collects body from every rank on root. Non-root ranks get nil.
func (e *Endpoint) Gather(ctx context.Context, root int, body []byte) ([][]byte, error) {
	if err := e.Send(ctx, root, "gather", len(body), append(e.Buffer(), body...)); err != nil {
		return nil, err
	}
	if e.rank != root {
		return nil, nil
	}
	out := make([][]byte, e.Size())
	for from := range out {
		msg, err := e.RecvSized(ctx, from, "gather", 1, -1)
		if err != nil {
			return nil, err
		}
		out[from] = msg.Body
	}
	return out, nil
}
