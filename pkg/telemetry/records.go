// Package telemetry samples power, GPS and environment data and persists
// it as CSV.
package telemetry

import (
	"fmt"
	"strconv"
)

// CSV headers of the telemetry files.
const (
	TelemetryHeader = "timestamp,build,battery_v,system_v,usb_ma,solar_ma,discharge_ma," +
		"gps_time,latitude,lat_dir,longitude,lon_dir,speed_mps,course_deg,date," +
		"fix_quality,satellites,altitude_m"
	SensorHeader = "timestamp,temperature,pressure,humidity,light"
)

// KnotsToMPS converts speed in knots to m/s.
const KnotsToMPS = 0.514444

// TelemetryRecord is one sample of power and GPS data.
type TelemetryRecord struct {
	Timestamp uint32
	Build     int

	BatteryVoltage   float32
	SystemVoltage    float32
	USBCurrent       float32
	SolarCurrent     float32
	DischargeCurrent float32

	Time       string
	Latitude   string
	LatDir     string
	Longitude  string
	LonDir     string
	Speed      string
	Course     string
	Date       string
	FixQuality string
	Satellites string
	Altitude   string
}

// CSV renders the record as a row without line terminator.
func (r TelemetryRecord) CSV() string {
	return fmt.Sprintf("%d,%d,%.3f,%.3f,%.3f,%.3f,%.3f,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s",
		r.Timestamp, r.Build,
		r.BatteryVoltage, r.SystemVoltage, r.USBCurrent, r.SolarCurrent, r.DischargeCurrent,
		r.Time, r.Latitude, r.LatDir, r.Longitude, r.LonDir, r.Speed, r.Course, r.Date,
		r.FixQuality, r.Satellites, r.Altitude)
}

// SensorRecord is one sample of the environment sensors.
type SensorRecord struct {
	Timestamp   uint32
	Temperature float32
	Pressure    float32
	Humidity    float32
	Light       float32
}

// CSV renders the record as a row without line terminator.
func (r SensorRecord) CSV() string {
	return fmt.Sprintf("%d,%.3f,%.3f,%.3f,%.3f",
		r.Timestamp, r.Temperature, r.Pressure, r.Humidity, r.Light)
}

func token(tokens []string, index int, def string) string {
	if index < len(tokens) && tokens[index] != "" {
		return tokens[index]
	}
	return def
}

// fillGPS copies the fields of interest from RMC and GGA tokens. Short or
// missing sentences leave defaults.
func (r *TelemetryRecord) fillGPS(rmc, gga []string) {
	if len(rmc) < 12 {
		rmc = nil
	}
	if len(gga) < 15 {
		gga = nil
	}
	r.Time = token(rmc, 1, "0")
	r.Latitude = token(rmc, 3, "0")
	r.LatDir = token(rmc, 4, "N")
	r.Longitude = token(rmc, 5, "0")
	r.LonDir = token(rmc, 6, "E")
	r.Speed = "0"
	if knots, err := strconv.ParseFloat(token(rmc, 7, ""), 64); err == nil {
		r.Speed = strconv.FormatFloat(knots*KnotsToMPS, 'f', 2, 64)
	}
	r.Course = token(rmc, 8, "0")
	r.Date = token(rmc, 9, "0")
	r.FixQuality = token(gga, 6, "0")
	r.Satellites = token(gga, 7, "0")
	r.Altitude = token(gga, 9, "0")
}
