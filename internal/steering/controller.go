package steering

import (
	"math"
	"math/rand"

	"footfall/server/internal/agent"
	"footfall/server/internal/geom"
	"footfall/server/internal/world"
)

const (
	raySamples       = 50
	minHorizonTicks  = 5.0
	maxHorizonTicks  = 30.0
	avoidCap         = 2.5
	giveWayWeight    = 2.0
	returnWeight     = 1.0
	wanderRange      = 0.25
	sideRayWeight    = 0.7
	queueLookahead   = 0.8
	personalSpace    = 3.0
	giveWayLimit     = 0.5
	returnLimit      = 0.3
	returnSpeedRatio = 0.5
	wanderForceRatio = 0.3
	clearanceRays    = 8
	clearanceWeight  = 1.5
)

// Target describes what a moving agent steers towards this tick.
type Target struct {
	Point geom.Vec2
	// Arrive slows the agent down inside the cone radius.
	Arrive bool
	// Goal is the final destination used for adaptive weighting.
	Goal geom.Vec2
}

// Forces is the weighted contribution of each behaviour.
type Forces struct {
	Seek         geom.Vec2
	AvoidStatic  geom.Vec2
	AvoidDynamic geom.Vec2
	Bounds       geom.Vec2
	Wander       geom.Vec2
	Queueing     geom.Vec2
	Cohesion     geom.Vec2
	Alignment    geom.Vec2
}

// Sum adds every component.
func (f Forces) Sum() geom.Vec2 {
	return f.Seek.Add(f.AvoidStatic).Add(f.AvoidDynamic).Add(f.Bounds).
		Add(f.Wander).Add(f.Queueing).Add(f.Cohesion).Add(f.Alignment)
}

// Controller composes steering forces. It reads perceived buckets and never
// queries the spatial index.
type Controller struct {
	env      world.Environment
	rng      *rand.Rand
	base     Weights
	tickRate float64
	dt       float64
}

func NewController(env world.Environment, rng *rand.Rand, cfg world.Config) *Controller {
	cfg = cfg.Normalized()
	return &Controller{
		env:      env,
		rng:      rng,
		base:     BaseWeights(),
		tickRate: float64(cfg.TickRate),
		dt:       cfg.DT(),
	}
}

// DT is the integration step in seconds.
func (c *Controller) DT() float64 {
	return c.dt
}

// Compose returns the weighted behaviour forces for a moving agent.
func (c *Controller) Compose(a *agent.Agent, t Target) Forces {
	w := AdaptiveWeights(c.base, a, a.Pos.Dist(t.Goal))
	return Forces{
		Seek:         c.Seek(a, t.Point, t.Arrive).Scale(w.Seek),
		AvoidStatic:  c.AvoidStatic(a).Scale(w.AvoidStatic),
		AvoidDynamic: c.EvaluateObstacles(a).Scale(w.AvoidDynamic),
		Bounds:       c.Bounds(a).Scale(w.Bounds),
		Wander:       c.Wander(a).Scale(w.Wander),
		Queueing:     c.Queueing(a).Scale(w.Queueing),
		Cohesion:     c.Cohesion(a).Scale(w.Cohesion),
		Alignment:    c.Alignment(a).Scale(w.Alignment),
	}
}

// Steer returns the combined acceleration for a moving agent, capped at
// MaxAccel.
func (c *Controller) Steer(a *agent.Agent, t Target) geom.Vec2 {
	return finite(c.Compose(a, t).Sum().Limit(a.MaxAccel))
}

// Settle returns the acceleration for a waiting or meeting agent: step aside
// for neighbours and drift back to anchor without backing into walls.
func (c *Controller) Settle(a *agent.Agent, anchor geom.Vec2) geom.Vec2 {
	f := c.GiveWay(a).Scale(giveWayWeight).
		Add(c.ReturnToGoal(a, anchor).Scale(returnWeight)).
		Add(c.Clearance(a).Scale(clearanceWeight)).
		Add(c.Bounds(a))
	return finite(f.Limit(a.MaxAccel))
}

// Seek steers towards target at full speed, or decelerating inside the cone
// radius when arrive is set.
func (c *Controller) Seek(a *agent.Agent, target geom.Vec2, arrive bool) geom.Vec2 {
	desired := target.Sub(a.Pos)
	d := desired.Len()
	if d == 0 {
		return geom.Vec2{}
	}
	speed := a.MaxSpeed
	r := a.Cone.Radius
	if arrive && d < r {
		speed = geom.Map(d, 0, r, 0, a.MaxSpeed)
	}
	steer := desired.SetMag(speed).Sub(a.Vel).Scale(c.tickRate)
	return steer.Limit(a.MaxAccel)
}

// Queueing brakes behind slower agents directly ahead.
func (c *Controller) Queueing(a *agent.Agent) geom.Vec2 {
	speed := a.Vel.Len()
	if speed == 0 || len(a.Perceived.Dynamic) == 0 {
		return geom.Vec2{}
	}
	forward := a.Vel.Normalize()
	lookAhead := speed * queueLookahead
	var steering geom.Vec2
	total := 0
	for _, other := range a.Perceived.Dynamic {
		if other == a {
			continue
		}
		offset := other.Pos.Sub(a.Pos)
		proj := offset.Dot(forward)
		if proj <= 0 || proj >= lookAhead {
			continue
		}
		dist := offset.Len()
		if dist >= a.Major*personalSpace {
			continue
		}
		relVel := a.Vel.Sub(other.Vel).Dot(forward)
		if relVel <= 0 {
			continue
		}
		ratio := dist / a.Major
		falloff := 1 / (ratio * ratio)
		strength := a.MaxAccel * falloff * relVel / a.MaxSpeed
		steering = steering.Add(forward.Scale(-strength))
		total++
	}
	if total > 0 {
		steering = steering.Scale(1 / float64(total))
	}
	return finite(steering)
}

// Cohesion steers towards the centre of perceived neighbours.
func (c *Controller) Cohesion(a *agent.Agent) geom.Vec2 {
	var sum geom.Vec2
	total := 0
	for _, other := range a.Perceived.Dynamic {
		if other != a && a.Pos.Dist(other.Pos) < a.Cone.Radius {
			sum = sum.Add(other.Pos)
			total++
		}
	}
	if total == 0 {
		return geom.Vec2{}
	}
	desired := sum.Scale(1 / float64(total)).Sub(a.Pos).SetMag(a.MaxSpeed)
	return desired.Sub(a.Vel).Scale(c.tickRate).Limit(a.MaxAccel)
}

// Alignment matches the mean velocity of perceived neighbours.
func (c *Controller) Alignment(a *agent.Agent) geom.Vec2 {
	var sum geom.Vec2
	total := 0
	for _, other := range a.Perceived.Dynamic {
		if other != a && a.Pos.Dist(other.Pos) < a.Cone.Radius {
			sum = sum.Add(other.Vel)
			total++
		}
	}
	if total == 0 {
		return geom.Vec2{}
	}
	desired := sum.Scale(1 / float64(total)).SetMag(a.MaxSpeed)
	return desired.Sub(a.Vel).Scale(c.tickRate).Limit(a.MaxAccel)
}

// AvoidStatic casts a centre ray and two edge rays and pushes away from the
// first obstacle found on each.
func (c *Controller) AvoidStatic(a *agent.Agent) geom.Vec2 {
	if c.env == nil {
		return geom.Vec2{}
	}
	r := a.Cone.Radius
	speed := a.Vel.Len()
	stopDist := speed * speed / (2 * a.MaxAccel)
	rayLength := geom.Map(speed, a.MinSpeed, a.MaxSpeed, r*0.5, r*1.2)
	rayLength = math.Min(math.Max(rayLength, stopDist), r*1.2)
	if rayLength <= 0 {
		return geom.Vec2{}
	}

	dir := a.Vel
	if dir.IsZero() {
		dir = geom.V(1, 0)
	}
	half := a.Cone.HalfAngle
	var steering geom.Vec2
	hits := 0
	centreHit := false
	for _, angle := range [3]float64{0, -half, half} {
		ahead := a.Pos.Add(dir.SetMag(rayLength).Rotate(angle))
		weight := 1.0
		if angle != 0 {
			weight = sideRayWeight
		}
		for i := 0; i <= raySamples; i++ {
			sample := a.Pos.Lerp(ahead, float64(i)/raySamples)
			if !c.env.IsObstacle(sample.X, sample.Y) {
				continue
			}
			d := a.Pos.Dist(sample)
			strength := geom.Map(d, 0, rayLength, a.MaxAccel, 0)
			steering = steering.Add(a.Pos.Sub(sample).SetMag(strength * weight))
			hits++
			centreHit = centreHit || angle == 0
			break
		}
	}
	if hits == 0 {
		return geom.Vec2{}
	}
	if centreHit && hits == 1 {
		// A head-on repulsion can only brake; turn towards the open side.
		side := c.openSide(a, dir, rayLength)
		steering = steering.Add(dir.Normalize().Rotate(side * math.Pi / 2).Scale(a.MaxAccel))
	}
	return steering.Scale(1 / float64(hits)).Limit(a.MaxAccel)
}

// openSide returns +1 or -1 for the rotation sense whose half-cone ray runs
// further before meeting an obstacle.
func (c *Controller) openSide(a *agent.Agent, dir geom.Vec2, length float64) float64 {
	quarter := a.Cone.HalfAngle / 2
	left := c.clearDistance(a.Pos, dir.SetMag(length).Rotate(-quarter))
	right := c.clearDistance(a.Pos, dir.SetMag(length).Rotate(quarter))
	if left > right {
		return -1
	}
	return 1
}

// clearDistance walks from along ray and returns the distance to the first
// obstacle, or the ray length when it is clear.
func (c *Controller) clearDistance(from, ray geom.Vec2) float64 {
	to := from.Add(ray)
	for i := 0; i <= raySamples; i++ {
		p := from.Lerp(to, float64(i)/raySamples)
		if c.env.IsObstacle(p.X, p.Y) {
			return from.Dist(p)
		}
	}
	return ray.Len()
}

// Clearance pushes a slow or stationary agent away from blocked cells within
// one body length in any direction.
func (c *Controller) Clearance(a *agent.Agent) geom.Vec2 {
	if c.env == nil {
		return geom.Vec2{}
	}
	reach := a.Major
	var steering geom.Vec2
	for i := 0; i < clearanceRays; i++ {
		dir := geom.FromAngle(float64(i) * 2 * math.Pi / clearanceRays)
		for step := 1; step <= 3; step++ {
			d := reach * float64(step) / 3
			p := a.Pos.Add(dir.Scale(d))
			if world.Blocked(c.env, p) {
				steering = steering.Add(dir.Scale(-geom.Map(d, 0, reach, a.MaxAccel, 0)))
				break
			}
		}
	}
	return finite(steering.Limit(a.MaxAccel))
}

// EvaluateObstacles predicts neighbour positions over a speed-dependent
// horizon and pushes away from the nearest prediction.
func (c *Controller) EvaluateObstacles(a *agent.Agent) geom.Vec2 {
	if len(a.Perceived.Dynamic) == 0 {
		return geom.Vec2{}
	}
	horizon := geom.Clamp(geom.Map(a.Vel.Len(), a.MinSpeed, a.MaxSpeed, minHorizonTicks, maxHorizonTicks), minHorizonTicks, maxHorizonTicks)
	lookahead := horizon * c.dt

	var predicted geom.Vec2
	minD := math.Inf(1)
	for _, other := range a.Perceived.Dynamic {
		if other == a {
			continue
		}
		future := other.Pos.Add(other.Vel.Scale(lookahead))
		if d := a.Pos.Dist(future); d < minD {
			minD = d
			predicted = future
		}
	}
	if math.IsInf(minD, 1) || minD >= a.Cone.Radius {
		return geom.Vec2{}
	}
	strength := a.MaxAccel * avoidCap
	if minD > 0 {
		strength = math.Min(a.MaxAccel*a.Major/minD, strength)
	}
	return a.Pos.Sub(predicted).SetMag(strength)
}

// Wander adds a slowly drifting sideways component.
func (c *Controller) Wander(a *agent.Agent) geom.Vec2 {
	r := a.Cone.Radius
	point := a.Pos.Add(a.Vel.SetMag(r))
	angle := a.WanderTheta + a.Vel.Heading()
	point = point.Add(geom.FromAngle(angle).Scale(r * 0.5))
	force := point.Sub(a.Pos).SetMag(a.MaxAccel * wanderForceRatio)
	a.WanderTheta += world.RandomBetween(c.rng, -wanderRange, wanderRange)
	return force
}

// Bounds pushes back from the edges of the space.
func (c *Controller) Bounds(a *agent.Agent) geom.Vec2 {
	if c.env == nil {
		return geom.Vec2{}
	}
	margin := a.SeeingDistance()
	var steer geom.Vec2
	if a.Pos.X < margin {
		steer.X = a.MaxAccel
	} else if a.Pos.X > c.env.Width()-margin {
		steer.X = -a.MaxAccel
	}
	if a.Pos.Y < margin {
		steer.Y = a.MaxAccel
	} else if a.Pos.Y > c.env.Height()-margin {
		steer.Y = -a.MaxAccel
	}
	return steer
}

// GiveWay nudges a stationary agent away from neighbours inside its circle.
func (c *Controller) GiveWay(a *agent.Agent) geom.Vec2 {
	r := a.Circle.Radius
	var steering geom.Vec2
	total := 0
	for _, other := range a.Perceived.WithinCircle {
		if other == a {
			continue
		}
		offset := a.Pos.Sub(other.Pos)
		d := offset.Len()
		if d <= 0 || d >= r {
			continue
		}
		steering = steering.Add(offset.SetMag(geom.Map(d, 0, r, a.MaxAccel, 0)))
		total++
	}
	if total == 0 {
		return geom.Vec2{}
	}
	return steering.Scale(1 / float64(total)).Limit(a.MaxAccel * giveWayLimit)
}

// ReturnToGoal drifts a displaced stationary agent back to anchor.
func (c *Controller) ReturnToGoal(a *agent.Agent, anchor geom.Vec2) geom.Vec2 {
	desired := anchor.Sub(a.Pos)
	d := desired.Len()
	if d < 1 {
		return geom.Vec2{}
	}
	r := a.Circle.Radius
	speed := a.MaxSpeed * returnSpeedRatio
	if r > 0 {
		speed = geom.Map(math.Min(d, r), 0, r, 0, speed)
	}
	return desired.SetMag(speed).Sub(a.Vel).Limit(a.MaxAccel * returnLimit)
}

// Jitter kicks the agent in a random direction to break a deadlock.
func (c *Controller) Jitter(a *agent.Agent, strength float64) {
	kick := geom.FromAngle(world.RandomAngle(c.rng)).Scale(a.MaxSpeed * strength)
	a.Vel = a.Vel.Add(kick).Limit(a.MaxSpeed)
}

// Integrate applies semi-implicit Euler: velocity first, clamped to
// [minSpeed, maxSpeed], then position. Acceleration is consumed.
func Integrate(a *agent.Agent, dt, minSpeed, maxSpeed float64) {
	a.Vel = a.Vel.Add(a.Acc.Scale(dt)).Limit(maxSpeed)
	if minSpeed > 0 && a.Vel.Len() < minSpeed {
		if a.Vel.IsZero() {
			a.Vel = geom.FromAngle(a.Heading).Scale(minSpeed)
		} else {
			a.Vel = a.Vel.SetMag(minSpeed)
		}
	}
	a.Pos = a.Pos.Add(a.Vel.Scale(dt))
	a.Acc = geom.Vec2{}
}

// Confine undoes the part of the last step that ended inside an obstacle.
// Axes are resolved separately so agents slide along walls; a blocked axis
// loses its velocity component. An agent that started the step blocked is
// left free to walk out.
func (c *Controller) Confine(a *agent.Agent, from geom.Vec2) bool {
	env := c.env
	if env == nil || !world.Blocked(env, a.Pos) || world.Blocked(env, from) {
		return false
	}
	to := a.Pos
	pos := from
	if x := geom.V(to.X, from.Y); !world.Blocked(env, x) {
		pos = x
	} else {
		a.Vel.X = 0
	}
	if y := geom.V(pos.X, to.Y); !world.Blocked(env, y) {
		pos = y
	} else {
		a.Vel.Y = 0
	}
	a.Pos = pos
	return true
}

func finite(v geom.Vec2) geom.Vec2 {
	if !v.Finite() {
		return geom.Vec2{}
	}
	return v
}
