package telemetry

import (
	"sync"
	"testing"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"mvave-bridge/bridge"
	"mvave-bridge/config"
	"mvave-bridge/logging"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func tags(p *write.Point) map[string]string {
	m := make(map[string]string)
	for _, t := range p.TagList() {
		m[t.Key] = t.Value
	}
	return m
}

func fields(p *write.Point) map[string]any {
	m := make(map[string]any)
	for _, f := range p.FieldList() {
		m[f.Key] = f.Value
	}
	return m
}

func TestInfluxRecorder_Points(t *testing.T) {
	w := &fakeWriter{}
	r := newInfluxRecorder(w, logging.Discard())
	r.now = fixedClock

	r.StateChanged("btn_3", true)
	r.StateChanged("btn_3", false)
	r.LearningProgress("btn_1", bridge.FieldInput, bridge.LearnWaiting)
	r.ConnectionChanged(true)

	if len(w.points) != 4 {
		t.Fatalf("wrote %d points, want 4", len(w.points))
	}

	tests := []struct {
		name        string
		point       *write.Point
		measurement string
		tags        map[string]string
		fields      map[string]any
	}{
		{
			name:        "switch on",
			point:       w.points[0],
			measurement: MeasurementSwitch,
			tags:        map[string]string{"control_id": "btn_3"},
			fields:      map[string]any{"on": true, "value": int64(127)},
		},
		{
			name:        "switch off",
			point:       w.points[1],
			measurement: MeasurementSwitch,
			tags:        map[string]string{"control_id": "btn_3"},
			fields:      map[string]any{"on": false, "value": int64(0)},
		},
		{
			name:        "learning",
			point:       w.points[2],
			measurement: MeasurementLearning,
			tags:        map[string]string{"control_id": "btn_1", "field": "input"},
			fields:      map[string]any{"status": "waiting"},
		},
		{
			name:        "connection",
			point:       w.points[3],
			measurement: MeasurementConnection,
			tags:        map[string]string{},
			fields:      map[string]any{"connected": true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.Name(); got != tt.measurement {
				t.Errorf("Name() = %q, want %q", got, tt.measurement)
			}
			gotTags := tags(tt.point)
			if len(gotTags) != len(tt.tags) {
				t.Errorf("tags = %v, want %v", gotTags, tt.tags)
			}
			for k, v := range tt.tags {
				if gotTags[k] != v {
					t.Errorf("tag %s = %q, want %q", k, gotTags[k], v)
				}
			}
			gotFields := fields(tt.point)
			for k, v := range tt.fields {
				if gotFields[k] != v {
					t.Errorf("field %s = %#v, want %#v", k, gotFields[k], v)
				}
			}
			if !tt.point.Time().Equal(fixedClock()) {
				t.Errorf("Time() = %v", tt.point.Time())
			}
		})
	}
}

func TestInfluxRecorder_CloseFlushes(t *testing.T) {
	w := &fakeWriter{}
	r := newInfluxRecorder(w, nil)
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes = %d, want 1", w.flushes)
	}
}

func TestConnectInflux_Disabled(t *testing.T) {
	_, err := ConnectInflux(config.InfluxDBConfig{Enabled: false}, nil)
	if err != ErrDisabled {
		t.Errorf("ConnectInflux() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(config.MQTTConfig{Enabled: false}, nil)
	if err != ErrDisabled {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}
