package sh

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kubisat/flight.go/pkg/protocol"
)

func TestSerialConfig(t *testing.T) {
	testCases := []struct {
		target  string
		device  string
		baud    int
		invalid bool
	}{
		{target: "/dev/ttyACM0", device: "/dev/ttyACM0", baud: 115200},
		{target: "serial:///dev/ttyUSB1", device: "/dev/ttyUSB1", baud: 115200},
		{target: "serial:///dev/ttyUSB1?baud=9600", device: "/dev/ttyUSB1", baud: 9600},
		{target: "serial:///dev/ttyUSB1?baud=fast", invalid: true},
	}
	for _, tc := range testCases {
		t.Run(tc.target, func(t *testing.T) {
			cfg, err := serialConfig(tc.target, 115200)
			if tc.invalid {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.device, cfg.Device)
			require.Equal(t, tc.baud, cfg.Baud)
		})
	}
}

func TestFormatFrame(t *testing.T) {
	require.Equal(t, "VAL 2.2 3.90 V",
		FormatFrame(protocol.ValFrame(2, 2, "3.90", protocol.Volt)))
	require.Equal(t, "ERR 3.1 PARAM_INVALID",
		FormatFrame(protocol.ErrCode(3, 1, protocol.ParamInvalid)))
}

func TestFramesJSON(t *testing.T) {
	frames := []protocol.Frame{
		protocol.SeqFrame(1, 0, "1.0,1.1"),
		protocol.SeqDone(1, 0),
	}
	out, err := json.Marshal(FramesJSON(frames))
	require.NoError(t, err)
	require.JSONEq(t, `[
		{"op":"SEQ","group":1,"command":0,"value":"1.0,1.1"},
		{"op":"VAL","group":1,"command":0,"value":"SEQ_DONE"}
	]`, string(out))
}
