package wireproto

import (
	"strings"
	"testing"

	"pretrade-risk-engine/internal/riskerr"
)

func msg(pairs ...string) []byte {
	return []byte(strings.Join(pairs, string(rune(FieldDelim))))
}

func TestDecodeNewOrderSingle(t *testing.T) {
	t.Parallel()

	raw := msg("35=D", "11=ord1", "55=XYZ", "54=1", "38=5000", "44=100")
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	nos, err := DecodeNewOrderSingle(m)
	if err != nil {
		t.Fatalf("DecodeNewOrderSingle() error = %v", err)
	}
	if nos.ClOrdID != "ord1" || nos.Symbol != "XYZ" {
		t.Errorf("nos = %+v", nos)
	}
	if !nos.Price.Equal(dec(100)) || !nos.OrderQty.Equal(dec(5000)) {
		t.Errorf("nos price/qty = %s/%s", nos.Price, nos.OrderQty)
	}
}

func TestDecodeMissingRequiredField(t *testing.T) {
	t.Parallel()

	// NewOrderSingle missing Price (44).
	raw := msg("35=D", "11=ord1", "55=XYZ", "54=1", "38=5000")
	_, err := Decode(raw)
	if err == nil {
		t.Fatal("expected a parse error for missing Price field")
	}

	var rerr *riskerr.Error
	if !asRiskErr(err, &rerr) {
		t.Fatalf("expected *riskerr.Error, got %T", err)
	}
	if rerr.Kind != riskerr.KindParse {
		t.Errorf("Kind = %s, want %s", rerr.Kind, riskerr.KindParse)
	}
	if rerr.Field != "Price" {
		t.Errorf("Field = %q, want Price", rerr.Field)
	}
}

func TestDecodeMalformedField(t *testing.T) {
	t.Parallel()

	raw := msg("35=D", "not-a-pair")
	if _, err := Decode(raw); err == nil {
		t.Fatal("expected an error for a malformed tag=value pair")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	raw := msg("35=8", "11=ord1", "150=2", "39=2", "151=0", "14=100", "32=100", "31=10.5")
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	encoded := Encode(m)
	again, err := Decode(encoded)
	if err != nil {
		t.Fatalf("re-Decode() error = %v", err)
	}
	if again.MsgType != m.MsgType {
		t.Errorf("MsgType = %s, want %s", again.MsgType, m.MsgType)
	}
	for tag, v := range m.Fields {
		if again.Fields[tag] != v {
			t.Errorf("tag %d = %q, want %q", tag, again.Fields[tag], v)
		}
	}
}

func TestDecodeExecutionReportWithFill(t *testing.T) {
	t.Parallel()

	raw := msg("35=8", "11=ord1", "150=1", "39=1", "151=60", "14=40", "32=40", "31=10.25")
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	er, err := DecodeExecutionReport(m)
	if err != nil {
		t.Fatalf("DecodeExecutionReport() error = %v", err)
	}
	if er.ExecType != ExecPartial {
		t.Errorf("ExecType = %s, want %s", er.ExecType, ExecPartial)
	}
	if !er.HasLast || !er.LastQty.Equal(dec(40)) {
		t.Errorf("LastQty = %s, HasLast = %v", er.LastQty, er.HasLast)
	}
}

func TestDecodeOrderCancelReplace(t *testing.T) {
	t.Parallel()

	raw := msg("35=G", "11=ord1R", "41=ord1", "38=150", "44=12")
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	rep, err := DecodeOrderCancelReplace(m)
	if err != nil {
		t.Fatalf("DecodeOrderCancelReplace() error = %v", err)
	}
	if rep.OrigClOrdID != "ord1" || rep.ClOrdID != "ord1R" {
		t.Errorf("rep = %+v", rep)
	}
}

func TestDecodeWrongMessageClass(t *testing.T) {
	t.Parallel()

	raw := msg("35=D", "11=ord1", "55=XYZ", "54=1", "38=5000", "44=100")
	m, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err := DecodeOrderCancelReplace(m); err == nil {
		t.Fatal("expected an error decoding a NewOrderSingle as an OrderCancelReplace")
	}
}
