// Package metric publishes execution counters of pipeline components
// through expvar.
package metric

import (
	"expvar"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"
)

const componentsLabel = "flow.components"

const (
	// ExecutionCounter measures number of successful executions.
	ExecutionCounter = "Executions"
	// FailureCounter measures number of failed executions.
	FailureCounter = "Failures"
	// FrameCounter measures number of produced frames.
	FrameCounter = "Frames"
	// LatencyCounter measures duration of the latest execution.
	LatencyCounter = "Latency"
	// DurationCounter measures total time spent in executions.
	DurationCounter = "Duration"
	// ComponentCounter counts number of metered components.
	ComponentCounter = "Components"
)

var (
	components = metrics{
		m: make(map[string]metric),
	}

	counters = []string{
		ExecutionCounter,
		FailureCounter,
		FrameCounter,
		LatencyCounter,
		DurationCounter,
		ComponentCounter,
	}
)

// Get metrics values for provided component type.
func Get(component interface{}) map[string]string {
	return getCounters(getType(component))
}

// GetAll returns counters for all measured components.
func GetAll() map[string]map[string]string {
	m := make(map[string]map[string]string)
	components.Lock()
	defer components.Unlock()
	for component := range components.m {
		m[component] = getCounters(component)
	}
	return m
}

func getCounters(componentType string) map[string]string {
	m := make(map[string]string)
	for _, counter := range counters {
		v := expvar.Get(key(componentType, counter))
		if v != nil {
			m[counter] = v.String()
		}
	}
	return m
}

// Meter captures counters of a single component. Counters are aggregated
// per component type.
type Meter struct {
	metric metric
}

// New registers the component and returns its meter.
func New(component interface{}) *Meter {
	m := components.get(getType(component))
	m.components.Add(1)
	return &Meter{metric: m}
}

// Execution captures a finished execution which started at provided time.
func (m *Meter) Execution(start time.Time, err error) {
	if m == nil {
		return
	}
	elapsed := time.Since(start)
	if err != nil {
		m.metric.failures.Add(1)
	} else {
		m.metric.executions.Add(1)
	}
	m.metric.latency.set(elapsed)
	m.metric.duration.add(elapsed)
}

// Frame captures a produced frame.
func (m *Meter) Frame() {
	if m == nil {
		return
	}
	m.metric.frames.Add(1)
}

type metrics struct {
	sync.Mutex
	m map[string]metric
}

func (m *metrics) get(componentType string) metric {
	m.Lock()
	defer m.Unlock()
	if metric, ok := m.m[componentType]; ok {
		// return existing metric if available
		return metric
	}
	// create new metric
	metric := newMetric(componentType)
	m.m[componentType] = metric
	return metric
}

type metric struct {
	key        string
	components *expvar.Int
	executions *expvar.Int
	failures   *expvar.Int
	frames     *expvar.Int
	latency    *duration
	duration   *duration
}

func newMetric(componentType string) metric {
	m := metric{
		key:        componentType,
		components: expvar.NewInt(key(componentType, ComponentCounter)),
		executions: expvar.NewInt(key(componentType, ExecutionCounter)),
		failures:   expvar.NewInt(key(componentType, FailureCounter)),
		frames:     expvar.NewInt(key(componentType, FrameCounter)),
		latency:    &duration{},
		duration:   &duration{},
	}
	expvar.Publish(key(componentType, LatencyCounter), m.latency)
	expvar.Publish(key(componentType, DurationCounter), m.duration)
	return m
}

func key(componentType, counter string) string {
	return fmt.Sprintf("%s.%s.%s", componentsLabel, componentType, counter)
}

func getType(component interface{}) string {
	t := reflect.TypeOf(component)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.String()
}

// duration allows to format time.Duration metric values.
type duration struct {
	d int64
}

func (v *duration) String() string {
	return fmt.Sprintf("%q", time.Duration(atomic.LoadInt64(&v.d)).String())
}

func (v *duration) add(delta time.Duration) {
	atomic.AddInt64(&v.d, int64(delta))
}

func (v *duration) set(value time.Duration) {
	atomic.StoreInt64(&v.d, int64(value))
}
