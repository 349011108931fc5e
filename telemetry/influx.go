package telemetry

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"mvave-bridge/bridge"
	"mvave-bridge/config"
	"mvave-bridge/logging"
)

const (
	pingTimeout          = 5 * time.Second
	defaultBatchSize     = 100
	defaultFlushInterval = 1000 // milliseconds
)

// Measurement names written by InfluxRecorder.
const (
	MeasurementSwitch     = "switch_state"
	MeasurementLearning   = "learning"
	MeasurementConnection = "connection"
)

// pointWriter is the subset of api.WriteAPI the recorder uses.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// InfluxRecorder writes every observer notification as a point. Writes
// are non-blocking and batched by the client.
type InfluxRecorder struct {
	client influxdb2.Client
	writer pointWriter
	logger *logging.Logger
	now    func() time.Time
}

// ConnectInflux creates the client, checks the server and starts draining
// asynchronous write errors into the log.
func ConnectInflux(cfg config.InfluxDBConfig, logger *logging.Logger) (*InfluxRecorder, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(uint(batch)).
			SetFlushInterval(uint(flush)))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb ping: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: influxdb not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	r := newInfluxRecorder(writeAPI, logger)
	r.client = client

	go func() {
		for err := range writeAPI.Errors() {
			r.logger.Warn("write failed", "error", err)
		}
	}()
	return r, nil
}

func newInfluxRecorder(w pointWriter, logger *logging.Logger) *InfluxRecorder {
	return &InfluxRecorder{
		writer: w,
		logger: logging.OrDefault(logger).Category("influxdb"),
		now:    time.Now,
	}
}

func (r *InfluxRecorder) StateChanged(controlID string, on bool) {
	value := 0
	if on {
		value = 127
	}
	r.writer.WritePoint(write.NewPoint(MeasurementSwitch,
		map[string]string{"control_id": controlID},
		map[string]any{"on": on, "value": value},
		r.now()))
}

func (r *InfluxRecorder) LearningProgress(controlID string, field bridge.Field, status bridge.LearnStatus) {
	r.writer.WritePoint(write.NewPoint(MeasurementLearning,
		map[string]string{"control_id": controlID, "field": field.String()},
		map[string]any{"status": status.String()},
		r.now()))
}

func (r *InfluxRecorder) ConnectionChanged(connected bool) {
	r.writer.WritePoint(write.NewPoint(MeasurementConnection,
		nil,
		map[string]any{"connected": connected},
		r.now()))
}

// Close flushes pending points and closes the client.
func (r *InfluxRecorder) Close() error {
	r.writer.Flush()
	if r.client != nil {
		r.client.Close()
	}
	return nil
}
