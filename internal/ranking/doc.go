// Package ranking scores canonical events against the activity request and
// the personalization profile.
//
// Basic Usage:
//
//	// Load calibration (typically at startup)
//	weights, err := ranking.LoadCalibration("configs/ranking.calibration.json")
//	if err != nil {
//		log.Warn("using default weights", "error", err)
//	}
//
//	rules := ranking.NewRuleRanker(weights)
//	var ranker ranking.Ranker = rules
//	if backend != nil {
//		ranker = ranking.NewModelRanker(backend, rules, logger)
//	}
//
//	ranked, diag := ranker.Rank(ctx, events, ranking.Request{
//		Activity: "comedy show tonight",
//		Profile:  &p,
//	})
//	results := ranking.Filter(ranked, ranking.DefaultFilterConfig())
//
// Weight Functions:
//
// All sub-score functions return values in the [0, 1] range. The rule-based
// ranker combines them with the calibrated Weights and caps the total at 1.
//
// Strategies:
//
// RuleRanker is deterministic and always available. ModelRanker asks a
// text-ranking backend to judge the candidates and falls back to RuleRanker
// for the whole candidate set whenever the backend errors or returns a
// response it cannot fully trust.
//
// Calibration:
//
// Weights are tuned via a JSON file loaded at startup. See
// configs/ranking.calibration.json for the default configuration.
package ranking
