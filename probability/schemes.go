package probability

// Scheme advances a geometric Brownian motion dS = Mu*S dt + Sigma*S dW by
// one step of length dt given the Brownian increment dW.
type Scheme interface {
	Step(x, dt, dW float64) float64
}

type EulerScheme struct {
	Mu    float64 // Drift
	Sigma float64 // Volatility
}

func (e EulerScheme) Step(x, dt, dW float64) float64 {
	return x + e.Mu*x*dt + e.Sigma*x*dW
}

// MilsteinScheme adds the Ito correction 0.5*Sigma^2*x*(dW^2 - dt) to the
// Euler step, raising the strong order to one.
type MilsteinScheme struct {
	Mu    float64
	Sigma float64
}

func (m MilsteinScheme) Step(x, dt, dW float64) float64 {
	return x + m.Mu*x*dt + m.Sigma*x*dW + 0.5*m.Sigma*m.Sigma*x*(dW*dW-dt)
}
