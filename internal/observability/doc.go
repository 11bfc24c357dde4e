// Package observability provides logging and metrics support for the
// thematic screener service.
//
// # Logging
//
// Create a logger from configuration:
//
//	logger := observability.NewLogger(observability.LoggingConfig{
//	    Level:  "info",
//	    Format: "json",
//	    Output: "stdout",
//	})
//	logger = observability.WithScreeningContext(logger, requestID, theme)
//	logger.Info().Msg("screening started")
//
// # Metrics
//
// Metrics are registered on creation:
//
//	metrics := observability.NewMetrics("thematic_screener")
//	metrics.RecordScreeningStarted()
//	metrics.RecordBigdataRequest("knowledge_graph", err, elapsed.Seconds())
//
// # Standard Fields
//
//   - request_id: screening request identifier
//   - correlation_id: caller supplied correlation identifier
//   - theme: main theme being screened
//   - operation: Bigdata API operation label on request metrics
//   - component: emitting component
package observability
