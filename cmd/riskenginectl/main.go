// riskenginectl replays a tag/value lifecycle-event stream through the
// pre-trade risk engine and reports the pre-trade Decision for every
// NewOrderSingle it sees.
//
// Architecture:
//
//	main.go                    — entry point: loads config, builds the engine, replays a message stream
//	internal/config            — viper-layered YAML config, metric/limit registration
//	internal/instrument        — symbol -> InstrumentRecord reference data
//	internal/book              — per-order lifecycle state machine
//	internal/aggregation       — bucketed, grouped, per-metric rolling aggregates
//	internal/limits            — metric/bucket -> cap evaluation
//	internal/riskengine        — orchestrator binding book + aggregation + limits
//	internal/sharding          — N independent engines partitioned by order key
//	internal/telemetry         — read-only websocket/REST live view of engine state
//	pkg/wireproto              — tag/value wire codec for the replayed stream
//
// Exit code is 1 if any NewOrderSingle in the stream was rejected by the
// pre-trade check, so riskenginectl can gate a CI replay of a captured
// session the way a linter gates a build.
package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"pretrade-risk-engine/internal/config"
	"pretrade-risk-engine/internal/riskengine"
	"pretrade-risk-engine/internal/telemetry"
	"pretrade-risk-engine/pkg/types"
	"pretrade-risk-engine/pkg/wireproto"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("RISKENGINE_CONFIG_PATH"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	built, err := config.Build(cfg)
	if err != nil {
		logger.Error("failed to build engine", "error", err)
		os.Exit(1)
	}
	engine := riskengine.New(built.Aggregator, built.Limits, built.Instruments, logger)

	var telemetryServer *telemetry.Server
	if cfg.Telemetry.Enabled {
		telemetryServer = telemetry.NewServer(cfg.Telemetry, engine, logger)
		engine.SetSink(telemetryServer.Hub())
		go func() {
			if err := telemetryServer.Start(); err != nil {
				logger.Error("telemetry server failed", "error", err)
			}
		}()
		logger.Info("telemetry dashboard started", "port", cfg.Telemetry.Port)
	}

	rejected, err := replay(os.Stdin, engine, logger)
	if err != nil {
		logger.Error("replay failed", "error", err)
		os.Exit(1)
	}

	if telemetryServer != nil {
		logger.Info("replay complete, telemetry server still serving; send SIGINT/SIGTERM to stop")
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		if err := telemetryServer.Stop(); err != nil {
			logger.Error("failed to stop telemetry server", "error", err)
		}
	}

	if rejected {
		os.Exit(1)
	}
}

// replay decodes one tag/value message per line from r and drives engine
// through the corresponding lifecycle transition, printing each pre-trade
// Decision to stdout. It returns true if any NewOrderSingle was rejected.
func replay(r io.Reader, engine *riskengine.Engine, logger *slog.Logger) (bool, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	rejected := false
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		msg, err := wireproto.Decode(line)
		if err != nil {
			return rejected, fmt.Errorf("decode: %w", err)
		}

		reject, err := applyMessage(msg, engine, logger)
		if err != nil {
			return rejected, fmt.Errorf("apply %s: %w", msg.MsgType, err)
		}
		rejected = rejected || reject
	}
	if err := scanner.Err(); err != nil {
		return rejected, fmt.Errorf("scan: %w", err)
	}
	return rejected, nil
}

func applyMessage(msg wireproto.Message, engine *riskengine.Engine, logger *slog.Logger) (bool, error) {
	switch msg.MsgType {
	case wireproto.MsgNewOrderSingle:
		nos, err := wireproto.DecodeNewOrderSingle(msg)
		if err != nil {
			return false, err
		}
		decision, err := engine.Submit(riskengine.SubmitRequest{
			Key:      nos.ClOrdID,
			Symbol:   nos.Symbol,
			Side:     nos.Side,
			Quantity: nos.OrderQty,
			Price:    nos.Price,
		})
		if err != nil {
			return false, err
		}
		if decision.Accepted {
			fmt.Printf("ACCEPT %s\n", nos.ClOrdID)
			return false, nil
		}
		fmt.Printf("REJECT %s metric=%s bucket=%s projected=%s cap=%s\n",
			nos.ClOrdID, decision.Breach.MetricName, decision.Breach.BucketKey,
			decision.Breach.Projected, decision.Breach.Cap)
		return true, nil

	case wireproto.MsgOrderCancelReplace:
		ocr, err := wireproto.DecodeOrderCancelReplace(msg)
		if err != nil {
			return false, err
		}
		return false, engine.StartReplace(ocr.OrigClOrdID, ocr.ClOrdID, ocr.Price, ocr.OrderQty)

	case wireproto.MsgOrderCancelRequest:
		ocx, err := wireproto.DecodeOrderCancelRequest(msg)
		if err != nil {
			return false, err
		}
		return false, engine.StartCancel(ocx.OrigClOrdID, ocx.ClOrdID)

	case wireproto.MsgExecutionReport:
		er, err := wireproto.DecodeExecutionReport(msg)
		if err != nil {
			return false, err
		}
		return false, applyExecutionReport(er, msg, engine)

	case wireproto.MsgOrderCancelReject:
		ocj, err := wireproto.DecodeOrderCancelReject(msg)
		if err != nil {
			return false, err
		}
		if ocj.CxlRejResponseTo == "2" {
			return false, engine.RejectReplace(ocj.OrigClOrdID)
		}
		return false, engine.RejectCancel(ocj.OrigClOrdID)

	default:
		logger.Warn("ignoring unrecognized message type", "msg_type", msg.MsgType)
		return false, nil
	}
}

func applyExecutionReport(er wireproto.ExecutionReport, msg wireproto.Message, engine *riskengine.Engine) error {
	switch er.ExecType {
	case wireproto.ExecNew:
		return engine.Acknowledge(er.ClOrdID)
	case wireproto.ExecPartial, wireproto.ExecFill:
		_, err := engine.Fill(er.ClOrdID, er.LastQty)
		return err
	case wireproto.ExecCanceled:
		return engine.CompleteCancel(er.ClOrdID)
	case wireproto.ExecReplaced:
		if orig, ok := msg.Get(wireproto.TagOrigClOrdID); ok {
			return engine.CompleteReplace(types.OrderKey(orig))
		}
		return engine.CompleteReplace(er.ClOrdID)
	case wireproto.ExecRejected:
		return engine.Reject(er.ClOrdID)
	default:
		return nil
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
