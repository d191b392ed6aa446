// Package downlink mirrors telemetry samples to the ground gateway.
package downlink

import (
	"time"

	"github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/kubisat/flight.go/pkg/telemetry"
)

// Topic is the topic of telemetry messages relative to the node prefix.
const Topic = "telemetry"

// Publisher sends samples as protobuf encoded Struct messages.
type Publisher interface {
	Publish(telemetry.TelemetryRecord, telemetry.SensorRecord) error
}

// Sink publishes an encoded message.
type Sink interface {
	Pub(topic string, payload []byte) error
}

// MQTTPublisher publishes samples to <node>/telemetry.
type MQTTPublisher struct {
	Sink Sink
	Node string
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(tr telemetry.TelemetryRecord, sr telemetry.SensorRecord) error {
	payload, err := Encode(p.Node, tr, sr)
	if err != nil {
		return err
	}
	return p.Sink.Pub(p.Node+"/"+Topic, payload)
}

func number(v float32) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: float64(v)}}
}

func text(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

// Encode renders a sample pair as a protobuf Struct.
func Encode(node string, tr telemetry.TelemetryRecord, sr telemetry.SensorRecord) ([]byte, error) {
	ts, err := ptypes.TimestampProto(time.Unix(int64(tr.Timestamp), 0))
	if err != nil {
		return nil, err
	}
	msg := &structpb.Struct{Fields: map[string]*structpb.Value{
		"node":      text(node),
		"timestamp": text(ptypes.TimestampString(ts)),
		"build":     number(float32(tr.Build)),
		"power": {Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{
			Fields: map[string]*structpb.Value{
				"battery_v":    number(tr.BatteryVoltage),
				"system_v":     number(tr.SystemVoltage),
				"usb_ma":       number(tr.USBCurrent),
				"solar_ma":     number(tr.SolarCurrent),
				"discharge_ma": number(tr.DischargeCurrent),
			},
		}}},
		"gps": {Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{
			Fields: map[string]*structpb.Value{
				"time":        text(tr.Time),
				"latitude":    text(tr.Latitude + tr.LatDir),
				"longitude":   text(tr.Longitude + tr.LonDir),
				"speed_mps":   text(tr.Speed),
				"course_deg":  text(tr.Course),
				"date":        text(tr.Date),
				"fix_quality": text(tr.FixQuality),
				"satellites":  text(tr.Satellites),
				"altitude_m":  text(tr.Altitude),
			},
		}}},
		"sensors": {Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{
			Fields: map[string]*structpb.Value{
				"temperature": number(sr.Temperature),
				"pressure":    number(sr.Pressure),
				"humidity":    number(sr.Humidity),
				"light":       number(sr.Light),
			},
		}}},
	}}
	return proto.Marshal(msg)
}
