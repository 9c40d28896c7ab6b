package event_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/signalforge/decisioncore/event"
)

func validRaw() event.Raw {
	ts := int64(1_700_000_000_000)
	return event.Raw{
		CorrelationID: "c1",
		EventType:     "ict_signal",
		Symbol:        "EURUSD",
		Timeframe:     "15m",
		Signal:        map[string]any{"type": "CHoCH"},
		TsMs:          &ts,
	}
}

func TestValidate_AcceptsWellFormedRaw(t *testing.T) {
	ev, err := event.Validate(validRaw())
	require.NoError(t, err)
	require.Equal(t, "c1", ev.CorrelationID)
	require.Equal(t, int64(1_700_000_000_000), ev.TsMs)
}

func TestValidate_AssignsCorrelationIDWhenAbsent(t *testing.T) {
	raw := validRaw()
	raw.CorrelationID = ""
	ev, err := event.Validate(raw)
	require.NoError(t, err)
	require.NotEmpty(t, ev.CorrelationID)
}

func TestValidate_RejectsMissingRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*event.Raw)
	}{
		{"event_type", func(r *event.Raw) { r.EventType = "" }},
		{"symbol", func(r *event.Raw) { r.Symbol = "" }},
		{"signal", func(r *event.Raw) { r.Signal = nil }},
		{"ts_ms", func(r *event.Raw) { r.TsMs = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validRaw()
			tc.mutate(&raw)
			_, err := event.Validate(raw)
			require.Error(t, err)
			var verr *event.ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidate_RejectsNegativeTsMs(t *testing.T) {
	raw := validRaw()
	neg := int64(-1)
	raw.TsMs = &neg
	_, err := event.Validate(raw)
	require.Error(t, err)
}

func TestValidate_ClonesMetadataSoCallerMutationIsIsolated(t *testing.T) {
	raw := validRaw()
	raw.Metadata = map[string]any{"source": "backtest"}
	ev, err := event.Validate(raw)
	require.NoError(t, err)

	raw.Metadata["source"] = "mutated"
	require.Equal(t, "backtest", ev.Metadata["source"], "Event.Metadata must not alias the caller's map")
}

func TestValidate_EmptyMetadataStaysNil(t *testing.T) {
	ev, err := event.Validate(validRaw())
	require.NoError(t, err)
	require.Nil(t, ev.Metadata)
}

func TestCompileSignalSchema_ValidatesSignalShape(t *testing.T) {
	doc := []byte(`{
		"type": "object",
		"required": ["type"],
		"properties": {"type": {"type": "string"}}
	}`)
	schema, err := event.CompileSignalSchema("ichoc", doc)
	require.NoError(t, err)

	ev, err := event.Validate(validRaw())
	require.NoError(t, err)
	require.NoError(t, schema.ValidateSignal(ev))

	ev.Signal = map[string]any{"wrong": true}
	err = schema.ValidateSignal(ev)
	require.Error(t, err)
	var verr *event.ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestCompileSignalSchema_RejectsMalformedDocument(t *testing.T) {
	_, err := event.CompileSignalSchema("bad", []byte(`not json`))
	require.Error(t, err)
}

func TestSignalSchema_NilReceiverAlwaysValidates(t *testing.T) {
	var schema *event.SignalSchema
	ev, err := event.Validate(validRaw())
	require.NoError(t, err)
	require.NoError(t, schema.ValidateSignal(ev))
}

func TestRaw_RoundTripsThroughJSON(t *testing.T) {
	raw := validRaw()
	b, err := json.Marshal(raw)
	require.NoError(t, err)

	var decoded event.Raw
	require.NoError(t, json.Unmarshal(b, &decoded))
	require.Equal(t, raw.EventType, decoded.EventType)
	require.Equal(t, *raw.TsMs, *decoded.TsMs)
}
