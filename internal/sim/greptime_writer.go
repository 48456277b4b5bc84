package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table"
	"github.com/GreptimeTeam/greptimedb-ingester-go/table/types"
	gpb "github.com/GreptimeTeam/greptime-proto/go/greptime/v1"

	"ghostlan-sim/internal/anticheat"
	"ghostlan-sim/internal/event"
)

const defaultGreptimePort = 4001

// greptimeClient is the subset of the ingester client the writer needs.
type greptimeClient interface {
	Write(ctx context.Context, tables ...*table.Table) (*gpb.GreptimeResponse, error)
}

// GreptimeDBWriter writes events and detections to GreptimeDB via the ingester client.
type GreptimeDBWriter struct {
	client         greptimeClient
	eventTable     string
	detectionTable string
	log            *slog.Logger
}

// NewGreptimeDBWriter connects to endpoint ("host" or "host:port"). Empty
// table names fall back to event.EventTableName and event.DetectionTableName.
func NewGreptimeDBWriter(endpoint, database, eventTable, detectionTable string, log *slog.Logger) (*GreptimeDBWriter, error) {
	host, port := endpoint, defaultGreptimePort
	if h, p, err := net.SplitHostPort(endpoint); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid GreptimeDB port %q: %w", p, err)
		}
		host, port = h, n
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(database)
	client, err := greptime.NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if eventTable == "" {
		eventTable = event.EventTableName
	}
	if detectionTable == "" {
		detectionTable = event.DetectionTableName
	}
	if log == nil {
		log = slog.Default()
	}
	return &GreptimeDBWriter{client: client, eventTable: eventTable, detectionTable: detectionTable, log: log}, nil
}

// WriteEvent inserts a single event.
func (w *GreptimeDBWriter) WriteEvent(ev event.Event) error {
	return w.WriteEvents([]event.Event{ev})
}

// WriteEvents inserts multiple events. The typed body is stored as JSON.
func (w *GreptimeDBWriter) WriteEvents(evs []event.Event) error {
	if len(evs) == 0 {
		return nil
	}
	tbl, err := table.New(w.eventTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("match_id", types.STRING)
	tbl.AddTagColumn("event_type", types.STRING)
	tbl.AddFieldColumn("event_id", types.INT64)
	tbl.AddFieldColumn("tick", types.INT64)
	tbl.AddFieldColumn("data", types.JSON)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, ev := range evs {
		data, err := json.Marshal(ev.Data)
		if err != nil {
			return err
		}
		if err := tbl.AddRow(ev.MatchID, string(ev.Type), ev.ID, int64(ev.Tick), string(data), ev.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, w.eventTable, len(evs))
}

// WriteDetection inserts a single detection.
func (w *GreptimeDBWriter) WriteDetection(d anticheat.Detection) error {
	return w.WriteDetections([]anticheat.Detection{d})
}

// WriteDetections inserts multiple detections.
func (w *GreptimeDBWriter) WriteDetections(ds []anticheat.Detection) error {
	if len(ds) == 0 {
		return nil
	}
	tbl, err := table.New(w.detectionTable)
	if err != nil {
		return err
	}
	tbl.AddTagColumn("match_id", types.STRING)
	tbl.AddTagColumn("player_id", types.STRING)
	tbl.AddFieldColumn("detection_id", types.STRING)
	tbl.AddFieldColumn("player_name", types.STRING)
	tbl.AddFieldColumn("cheat_type", types.STRING)
	tbl.AddFieldColumn("severity", types.STRING)
	tbl.AddFieldColumn("confidence", types.FLOAT64)
	tbl.AddFieldColumn("rule_id", types.STRING)
	tbl.AddFieldColumn("evidence", types.JSON)
	tbl.AddFieldColumn("tick", types.INT64)
	tbl.AddTimestampColumn("ts", types.TIMESTAMP_MILLISECOND)

	for _, d := range ds {
		evidence, err := json.Marshal(d.Evidence)
		if err != nil {
			return err
		}
		if err := tbl.AddRow(d.MatchID, d.PlayerID, d.ID, d.PlayerName, string(d.CheatType), string(d.Severity),
			d.Confidence, d.RuleID, string(evidence), int64(d.Tick), d.Timestamp); err != nil {
			return err
		}
	}
	return w.write(tbl, w.detectionTable, len(ds))
}

func (w *GreptimeDBWriter) write(tbl *table.Table, name string, n int) error {
	if _, err := w.client.Write(context.Background(), tbl); err != nil {
		w.log.Error("greptime write failed", "table", name, "err", err)
		return err
	}
	w.log.Debug("greptime rows written", "table", name, "rows", n)
	return nil
}
