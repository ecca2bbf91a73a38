// Package wireproto is the tag/value wire codec described in spec §6: a
// pure function over byte buffers, external to the risk-engine core. The
// core never imports this package directly — internal/riskengine consumes
// already-decoded typed events — but the codec ships as a real,
// independently-tested component so the CLI harness and integration tests
// have something concrete to replay, the same way the teacher's
// exchange.Client request/response shapes are concrete even though the
// engine only ever talks to an interface-shaped client.
package wireproto

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pretrade-risk-engine/internal/riskerr"
	"pretrade-risk-engine/pkg/types"
)

// FieldDelim is the tag/value pair separator: the SOH control byte 0x01,
// as in the real protocol — callers feed us raw bytes.
const FieldDelim = 0x01

// Tag numbers used by this protocol (spec §6).
const (
	TagMsgType          = 35
	TagClOrdID          = 11
	TagOrigClOrdID      = 41
	TagSymbol           = 55
	TagSide             = 54
	TagOrderQty         = 38
	TagPrice            = 44
	TagExecType         = 150
	TagOrdStatus        = 39
	TagLeavesQty        = 151
	TagCumQty           = 14
	TagLastQty          = 32
	TagLastPx           = 31
	TagCxlRejResponseTo = 434
)

// Message classes (tag 35 values).
const (
	MsgNewOrderSingle     = "D"
	MsgOrderCancelReplace = "G"
	MsgOrderCancelRequest = "F"
	MsgExecutionReport    = "8"
	MsgOrderCancelReject  = "9"
)

// Enumerations (spec §6).
const (
	sideBid = "1"
	sideAsk = "2"

	ordStatusNew      = "0"
	ordStatusPartial  = "1"
	ordStatusFilled   = "2"
	ordStatusCanceled = "4"
	ordStatusRejected = "8"

	execTypeNew       = "0"
	execTypePartial   = "1"
	execTypeFill      = "2"
	execTypeCanceled  = "4"
	execTypeReplaced  = "5"
	execTypeRejected  = "8"
)

var requiredFields = map[string][]int{
	MsgNewOrderSingle:     {TagClOrdID, TagSymbol, TagSide, TagOrderQty, TagPrice},
	MsgOrderCancelReplace: {TagClOrdID, TagOrigClOrdID, TagOrderQty, TagPrice},
	MsgOrderCancelRequest: {TagClOrdID, TagOrigClOrdID},
	MsgExecutionReport:    {TagClOrdID, TagExecType, TagOrdStatus, TagLeavesQty, TagCumQty},
	MsgOrderCancelReject:  {TagClOrdID, TagOrigClOrdID, TagCxlRejResponseTo},
}

var tagNames = map[int]string{
	TagMsgType:          "MsgType",
	TagClOrdID:          "ClOrdID",
	TagOrigClOrdID:      "OrigClOrdID",
	TagSymbol:           "Symbol",
	TagSide:             "Side",
	TagOrderQty:         "OrderQty",
	TagPrice:            "Price",
	TagExecType:         "ExecType",
	TagOrdStatus:        "OrdStatus",
	TagLeavesQty:        "LeavesQty",
	TagCumQty:           "CumQty",
	TagLastQty:          "LastQty",
	TagLastPx:           "LastPx",
	TagCxlRejResponseTo: "CxlRejResponseTo",
}

func tagName(tag int) string {
	if n, ok := tagNames[tag]; ok {
		return n
	}
	return strconv.Itoa(tag)
}

// Message is a decoded tag/value message: the message class plus its raw
// field map. Decode also validates required fields are present for the
// recognized classes; Fields retains every tag seen, known or not.
type Message struct {
	MsgType string
	Fields  map[int]string
}

// Get returns the raw string value for tag, and whether it was present.
func (m Message) Get(tag int) (string, bool) {
	v, ok := m.Fields[tag]
	return v, ok
}

// Decode parses one tag/value message from buf. Fields are separated by
// FieldDelim; each field is "tag=value". A malformed field, or a
// recognized message class missing a required field, produces a
// *riskerr.Error of KindParse naming the offending tag.
func Decode(buf []byte) (Message, error) {
	raw := strings.Split(string(buf), string(rune(FieldDelim)))
	fields := make(map[int]string)

	for _, part := range raw {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		eq := strings.IndexByte(part, '=')
		if eq < 0 {
			return Message{}, riskerr.Parse(part, "malformed tag=value pair")
		}
		tagStr, val := part[:eq], part[eq+1:]
		tag, err := strconv.Atoi(tagStr)
		if err != nil {
			return Message{}, riskerr.Parse(tagStr, "non-numeric tag")
		}
		fields[tag] = val
	}

	msgType, ok := fields[TagMsgType]
	if !ok {
		return Message{}, riskerr.Parse(tagName(TagMsgType), "missing message type")
	}

	if required, known := requiredFields[msgType]; known {
		for _, tag := range required {
			if _, ok := fields[tag]; !ok {
				return Message{}, riskerr.Parse(tagName(tag), "missing required field for "+msgType)
			}
		}
	}

	return Message{MsgType: msgType, Fields: fields}, nil
}

// Encode serializes a message back to tag/value wire form. Field order is
// the map's natural ascending tag order, so Encode is deterministic.
func Encode(m Message) []byte {
	tags := make([]int, 0, len(m.Fields)+1)
	tags = append(tags, TagMsgType)
	for tag := range m.Fields {
		tags = append(tags, tag)
	}
	sort.Ints(tags)

	var b strings.Builder
	seenMsgType := false
	for _, tag := range tags {
		if tag == TagMsgType {
			if seenMsgType {
				continue
			}
			seenMsgType = true
			fmt.Fprintf(&b, "%d=%s%c", TagMsgType, m.MsgType, FieldDelim)
			continue
		}
		fmt.Fprintf(&b, "%d=%s%c", tag, m.Fields[tag], FieldDelim)
	}
	return []byte(b.String())
}

// ————————————————————————————————————————————————————————————————————————
// Typed decode helpers — translate a Message into the lifecycle events
// internal/riskengine actually consumes.
// ————————————————————————————————————————————————————————————————————————

func parseSide(v string) (types.Side, error) {
	switch v {
	case sideBid:
		return types.Bid, nil
	case sideAsk:
		return types.Ask, nil
	default:
		return "", riskerr.Parse(tagName(TagSide), "unrecognized side value "+v)
	}
}

func parseDecimal(tag int, v string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Decimal{}, riskerr.Parse(tagName(tag), "not a number: "+v)
	}
	return d, nil
}

// NewOrderSingle is the decoded "D" message.
type NewOrderSingle struct {
	ClOrdID  types.OrderKey
	Symbol   string
	Side     types.Side
	OrderQty decimal.Decimal
	Price    decimal.Decimal
}

// DecodeNewOrderSingle decodes and type-checks a NewOrderSingle message.
func DecodeNewOrderSingle(m Message) (NewOrderSingle, error) {
	if m.MsgType != MsgNewOrderSingle {
		return NewOrderSingle{}, riskerr.Parse(tagName(TagMsgType), "not a NewOrderSingle")
	}
	side, err := parseSide(m.Fields[TagSide])
	if err != nil {
		return NewOrderSingle{}, err
	}
	qty, err := parseDecimal(TagOrderQty, m.Fields[TagOrderQty])
	if err != nil {
		return NewOrderSingle{}, err
	}
	px, err := parseDecimal(TagPrice, m.Fields[TagPrice])
	if err != nil {
		return NewOrderSingle{}, err
	}
	return NewOrderSingle{
		ClOrdID:  types.OrderKey(m.Fields[TagClOrdID]),
		Symbol:   m.Fields[TagSymbol],
		Side:     side,
		OrderQty: qty,
		Price:    px,
	}, nil
}

// OrderCancelReplace is the decoded "G" message.
type OrderCancelReplace struct {
	ClOrdID     types.OrderKey
	OrigClOrdID types.OrderKey
	OrderQty    decimal.Decimal
	Price       decimal.Decimal
}

// DecodeOrderCancelReplace decodes and type-checks an OrderCancelReplace message.
func DecodeOrderCancelReplace(m Message) (OrderCancelReplace, error) {
	if m.MsgType != MsgOrderCancelReplace {
		return OrderCancelReplace{}, riskerr.Parse(tagName(TagMsgType), "not an OrderCancelReplace")
	}
	qty, err := parseDecimal(TagOrderQty, m.Fields[TagOrderQty])
	if err != nil {
		return OrderCancelReplace{}, err
	}
	px, err := parseDecimal(TagPrice, m.Fields[TagPrice])
	if err != nil {
		return OrderCancelReplace{}, err
	}
	return OrderCancelReplace{
		ClOrdID:     types.OrderKey(m.Fields[TagClOrdID]),
		OrigClOrdID: types.OrderKey(m.Fields[TagOrigClOrdID]),
		OrderQty:    qty,
		Price:       px,
	}, nil
}

// OrderCancelRequest is the decoded "F" message.
type OrderCancelRequest struct {
	ClOrdID     types.OrderKey
	OrigClOrdID types.OrderKey
}

// DecodeOrderCancelRequest decodes and type-checks an OrderCancelRequest message.
func DecodeOrderCancelRequest(m Message) (OrderCancelRequest, error) {
	if m.MsgType != MsgOrderCancelRequest {
		return OrderCancelRequest{}, riskerr.Parse(tagName(TagMsgType), "not an OrderCancelRequest")
	}
	return OrderCancelRequest{
		ClOrdID:     types.OrderKey(m.Fields[TagClOrdID]),
		OrigClOrdID: types.OrderKey(m.Fields[TagOrigClOrdID]),
	}, nil
}

// ExecType enumerates tag 150.
type ExecType string

const (
	ExecNew      ExecType = "NEW"
	ExecPartial  ExecType = "PARTIAL_FILL"
	ExecFill     ExecType = "FILL"
	ExecCanceled ExecType = "CANCELED"
	ExecReplaced ExecType = "REPLACED"
	ExecRejected ExecType = "REJECTED"
)

// ExecutionReport is the decoded "8" message.
type ExecutionReport struct {
	ClOrdID   types.OrderKey
	ExecType  ExecType
	LeavesQty decimal.Decimal
	CumQty    decimal.Decimal
	LastQty   decimal.Decimal
	LastPx    decimal.Decimal
	HasLast   bool
}

var execTypeNames = map[string]ExecType{
	execTypeNew:      ExecNew,
	execTypePartial:  ExecPartial,
	execTypeFill:     ExecFill,
	execTypeCanceled: ExecCanceled,
	execTypeReplaced: ExecReplaced,
	execTypeRejected: ExecRejected,
}

// DecodeExecutionReport decodes and type-checks an ExecutionReport message.
func DecodeExecutionReport(m Message) (ExecutionReport, error) {
	if m.MsgType != MsgExecutionReport {
		return ExecutionReport{}, riskerr.Parse(tagName(TagMsgType), "not an ExecutionReport")
	}
	execType, ok := execTypeNames[m.Fields[TagExecType]]
	if !ok {
		return ExecutionReport{}, riskerr.Parse(tagName(TagExecType), "unrecognized exec type")
	}
	leaves, err := parseDecimal(TagLeavesQty, m.Fields[TagLeavesQty])
	if err != nil {
		return ExecutionReport{}, err
	}
	cum, err := parseDecimal(TagCumQty, m.Fields[TagCumQty])
	if err != nil {
		return ExecutionReport{}, err
	}

	report := ExecutionReport{
		ClOrdID:   types.OrderKey(m.Fields[TagClOrdID]),
		ExecType:  execType,
		LeavesQty: leaves,
		CumQty:    cum,
	}

	if lastQtyStr, ok := m.Fields[TagLastQty]; ok {
		lastQty, err := parseDecimal(TagLastQty, lastQtyStr)
		if err != nil {
			return ExecutionReport{}, err
		}
		lastPx, err := parseDecimal(TagLastPx, m.Fields[TagLastPx])
		if err != nil {
			return ExecutionReport{}, err
		}
		report.LastQty = lastQty
		report.LastPx = lastPx
		report.HasLast = true
	}

	return report, nil
}

// OrderCancelReject is the decoded "9" message.
type OrderCancelReject struct {
	ClOrdID           types.OrderKey
	OrigClOrdID       types.OrderKey
	CxlRejResponseTo  string
}

// DecodeOrderCancelReject decodes and type-checks an OrderCancelReject message.
func DecodeOrderCancelReject(m Message) (OrderCancelReject, error) {
	if m.MsgType != MsgOrderCancelReject {
		return OrderCancelReject{}, riskerr.Parse(tagName(TagMsgType), "not an OrderCancelReject")
	}
	return OrderCancelReject{
		ClOrdID:          types.OrderKey(m.Fields[TagClOrdID]),
		OrigClOrdID:      types.OrderKey(m.Fields[TagOrigClOrdID]),
		CxlRejResponseTo: m.Fields[TagCxlRejResponseTo],
	}, nil
}
