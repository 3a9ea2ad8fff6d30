package doctor

import (
	"context"
	"time"
)

// HealthProber is the part of the ntfy client the server check needs.
type HealthProber interface {
	Host() string
	Health(ctx context.Context) error
}

// ServerCheck verifies the configured server answers its health endpoint.
type ServerCheck struct {
	prober HealthProber
	now    func() time.Time
}

// NewServerCheck creates a server reachability check.
func NewServerCheck(prober HealthProber) *ServerCheck {
	return &ServerCheck{prober: prober, now: time.Now}
}

func (c *ServerCheck) Name() string {
	return "Server"
}

func (c *ServerCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	if c.prober == nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "Client",
			Status: StatusFail,
			Detail: "client not initialized",
		})
		return result
	}

	start := c.now()
	err := c.prober.Health(ctx)
	elapsed := c.now().Sub(start).Round(time.Millisecond)

	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  c.prober.Host(),
			Status: StatusFail,
			Detail: err.Error(),
		})
		return result
	}

	result.Items = append(result.Items, CheckItem{
		Label:  c.prober.Host(),
		Status: StatusPass,
		Detail: "healthy (" + elapsed.String() + ")",
	})
	return result
}
