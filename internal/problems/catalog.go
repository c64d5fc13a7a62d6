package problems

import (
	"math"

	"github.com/cwbudde/gonlopt/internal/nlopt"
)

// cubic holds the coefficients of a tutorial constraint (a*x0 + b)^3 - x1 <= 0.
type cubic struct {
	a, b float64
}

func tutorialObjective(x []float64, _ *struct{}, wantGradient bool) (float64, []float64) {
	v := math.Sqrt(x[1])
	if !wantGradient {
		return v, nil
	}
	return v, []float64{0, 0.5 / v}
}

func cubicConstraint(x []float64, c *cubic, wantGradient bool) (float64, []float64) {
	t := c.a*x[0] + c.b
	v := t*t*t - x[1]
	if !wantGradient {
		return v, nil
	}
	return v, []float64{3 * c.a * t * t, -1}
}

// Tutorial is NLopt's reference problem: minimize sqrt(x1) subject to
// x1 >= 0 and x1 >= (a*x0 + b)^3 for (a, b) = (2, 0) and (-1, 1).
func Tutorial() *Problem {
	return &Problem{
		Name:        "tutorial",
		Description: "NLopt tutorial: sqrt(x1) above two cubics",
		Dim:         2,
		Sense:       nlopt.Minimize,
		Objective:   nlopt.Bind(tutorialObjective, nil),
		Constraints: []Constraint{
			{Type: nlopt.Inequality, Eval: nlopt.Bind(cubicConstraint, &cubic{a: 2, b: 0}), Tolerance: 1e-8},
			{Type: nlopt.Inequality, Eval: nlopt.Bind(cubicConstraint, &cubic{a: -1, b: 1}), Tolerance: 1e-8},
		},
		Lower:        []float64{math.Inf(-1), 0},
		Upper:        []float64{math.Inf(1), math.Inf(1)},
		SearchLower:  []float64{-1, 0.01},
		SearchUpper:  []float64{2, 10},
		X0:           []float64{1.234, 5.678},
		Algorithm:    nlopt.LDMMA,
		Optimum:      []float64{1.0 / 3, 8.0 / 27},
		OptimumValue: math.Sqrt(8.0 / 27),
	}
}

func rosenbrock(x []float64, wantGradient bool) (float64, []float64) {
	a, b := 1-x[0], x[1]-x[0]*x[0]
	v := a*a + 100*b*b
	if !wantGradient {
		return v, nil
	}
	return v, []float64{-2*a - 400*x[0]*b, 200 * b}
}

// Rosenbrock is the two-dimensional banana function with minimum 0 at (1, 1).
func Rosenbrock() *Problem {
	return &Problem{
		Name:         "rosenbrock",
		Description:  "Rosenbrock banana valley",
		Dim:          2,
		Sense:        nlopt.Minimize,
		Objective:    nlopt.EvaluatorFunc(rosenbrock),
		Lower:        fill(2, -5),
		Upper:        fill(2, 5),
		SearchLower:  fill(2, -5),
		SearchUpper:  fill(2, 5),
		X0:           []float64{-1.2, 1},
		Algorithm:    nlopt.LDLBFGS,
		Optimum:      []float64{1, 1},
		OptimumValue: 0,
	}
}

// sphereState is the shifted center of the sphere problem.
type sphereState struct {
	center []float64
}

func sphere(x []float64, s *sphereState, wantGradient bool) (float64, []float64) {
	var v float64
	var g []float64
	if wantGradient {
		g = make([]float64, len(x))
	}
	for i, xi := range x {
		d := xi - s.center[i]
		v += d * d
		if g != nil {
			g[i] = 2 * d
		}
	}
	return v, g
}

// Sphere is a shifted three-dimensional quadratic bowl.
func Sphere() *Problem {
	center := []float64{1, -2, 0.5}
	return &Problem{
		Name:         "sphere",
		Description:  "Shifted quadratic bowl",
		Dim:          3,
		Sense:        nlopt.Minimize,
		Objective:    nlopt.Bind(sphere, &sphereState{center: center}),
		Lower:        fill(3, -10),
		Upper:        fill(3, 10),
		SearchLower:  fill(3, -10),
		SearchUpper:  fill(3, 10),
		X0:           []float64{5, 5, 5},
		Algorithm:    nlopt.LDMMA,
		Optimum:      center,
		OptimumValue: 0,
	}
}

func rastrigin(x []float64, wantGradient bool) (float64, []float64) {
	v := 10 * float64(len(x))
	var g []float64
	if wantGradient {
		g = make([]float64, len(x))
	}
	for i, xi := range x {
		v += xi*xi - 10*math.Cos(2*math.Pi*xi)
		if g != nil {
			g[i] = 2*xi + 20*math.Pi*math.Sin(2*math.Pi*xi)
		}
	}
	return v, g
}

// Rastrigin is a highly multimodal function with global minimum 0 at the
// origin; local optimizers stall in the nearest basin.
func Rastrigin() *Problem {
	return &Problem{
		Name:         "rastrigin",
		Description:  "Multimodal Rastrigin surface",
		Dim:          2,
		Sense:        nlopt.Minimize,
		Objective:    nlopt.EvaluatorFunc(rastrigin),
		Lower:        fill(2, -5.12),
		Upper:        fill(2, 5.12),
		SearchLower:  fill(2, -5.12),
		SearchUpper:  fill(2, 5.12),
		X0:           []float64{3.3, -2.7},
		Algorithm:    nlopt.GNDirectL,
		Optimum:      []float64{0, 0},
		OptimumValue: 0,
	}
}

// circlePoints are samples of the circle a circle fit should recover.
type circlePoints struct {
	px, py []float64
}

// circleFit is the mean squared radial residual of the samples from the
// circle (x[0], x[1]) with radius x[2].
func circleFit(x []float64, c *circlePoints, wantGradient bool) (float64, []float64) {
	n := float64(len(c.px))
	var v float64
	var g []float64
	if wantGradient {
		g = make([]float64, 3)
	}
	for i := range c.px {
		dx, dy := x[0]-c.px[i], x[1]-c.py[i]
		d := math.Hypot(dx, dy)
		res := d - x[2]
		v += res * res
		if g != nil && d > 0 {
			g[0] += 2 * res * dx / d
			g[1] += 2 * res * dy / d
			g[2] -= 2 * res
		}
	}
	if g != nil {
		for i := range g {
			g[i] /= n
		}
	}
	return v / n, g
}

// Circle fits a circle to twelve points sampled from the circle centered at
// (1.5, -0.5) with radius 2.
func Circle() *Problem {
	const (
		cx, cy, r = 1.5, -0.5, 2.0
		samples   = 12
	)
	pts := &circlePoints{px: make([]float64, samples), py: make([]float64, samples)}
	for i := range samples {
		a := 2 * math.Pi * float64(i) / samples
		pts.px[i] = cx + r*math.Cos(a)
		pts.py[i] = cy + r*math.Sin(a)
	}

	return &Problem{
		Name:         "circle",
		Description:  "Least-squares circle fit to sampled points",
		Dim:          3,
		Sense:        nlopt.Minimize,
		Objective:    nlopt.Bind(circleFit, pts),
		Lower:        []float64{-10, -10, 0},
		Upper:        []float64{10, 10, 10},
		SearchLower:  []float64{-10, -10, 0},
		SearchUpper:  []float64{10, 10, 10},
		X0:           []float64{0, 0, 1},
		Algorithm:    nlopt.LDLBFGS,
		Optimum:      []float64{cx, cy, r},
		OptimumValue: 0,
	}
}
